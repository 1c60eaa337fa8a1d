package httpd

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/harrowgate/reactord/internal/logging"
	"github.com/harrowgate/reactord/internal/reactor"
)

// Listener is the accept-side receiver: it owns the bound, non-blocking
// TCP listening fd and hands each accepted connection to the shared
// RequestContext receiver.
type Listener struct {
	fd  int
	ctx *RequestContext
}

// Addr is the address the reactor listens on.
const Addr = "127.0.0.1"

// Port is the port the reactor listens on.
const Port = 8000

// NewListener binds addr:port, registers it with r, and returns the
// receiver. ctx is shared (not cloned) across every accepted connection,
// since the request-context actor is the single receiver for all client
// fds.
func NewListener(r *reactor.Reactor, ctx *RequestContext, addr string, port int) (*Listener, error) {
	fd, err := bindListener(addr, port)
	if err != nil {
		return nil, err
	}
	l := &Listener{fd: fd, ctx: ctx}
	if err := r.AddInterest(fd, reactor.Read, l); err != nil {
		return nil, err
	}
	return l, nil
}

func bindListener(addr string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrap(err, "socket")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "setsockopt SO_REUSEADDR")
	}
	ip4 := net.ParseIP(addr).To4()
	if ip4 == nil {
		_ = unix.Close(fd)
		return -1, errors.Errorf("not an IPv4 address: %q", addr)
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip4)
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "bind")
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		_ = unix.Close(fd)
		return -1, errors.Wrap(err, "listen")
	}
	return fd, nil
}

// OnReady accepts at most one connection per wakeup (one-shot
// registration means the kernel won't tell us about another until we
// re-arm), adds it to the reactor under the shared request-context
// receiver, and re-arms itself for read.
func (l *Listener) OnReady(state reactor.State, fd int, pending *reactor.PendingActions) error {
	nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			logging.AcceptFailed(err)
		}
	} else {
		logging.Accepted(nfd, remoteAddr(sa))
		pending.Add(reactor.Add(nfd, reactor.Read, l.ctx))
	}
	pending.Add(reactor.Modify(l.fd, reactor.Read))
	return nil
}

func remoteAddr(sa unix.Sockaddr) string {
	inet4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "unknown"
	}
	a := inet4.Addr
	return strconv.Itoa(int(a[0])) + "." + strconv.Itoa(int(a[1])) + "." + strconv.Itoa(int(a[2])) + "." +
		strconv.Itoa(int(a[3])) + ":" + strconv.Itoa(inet4.Port)
}
