//go:build linux

package reactor

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// poller is a thin, fallible wrapper over the kernel epoll family. It
// never interprets fds beyond what it needs to shuttle them in and out of
// the kernel; the reactor owns all policy.
type poller struct {
	epfd int
}

const maxEvents = 1024

func newPoller() (*poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "epoll_create1")
	}
	return &poller{epfd: fd}, nil
}

func (p *poller) add(fd int, flags Flags) error {
	ev := unix.EpollEvent{Events: uint32(flags), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.Wrapf(err, "epoll_ctl add fd %d", fd)
	}
	return nil
}

func (p *poller) modify(fd int, flags Flags) error {
	ev := unix.EpollEvent{Events: uint32(flags), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return errors.Wrapf(err, "epoll_ctl mod fd %d", fd)
	}
	return nil
}

func (p *poller) remove(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrapf(err, "epoll_ctl del fd %d", fd)
	}
	return nil
}

// wait blocks until at least one fd is ready, with no timeout, and
// returns the ready batch. EINTR is retried transparently.
func (p *poller) wait(buf []unix.EpollEvent) ([]unix.EpollEvent, error) {
	for {
		n, err := unix.EpollWait(p.epfd, buf, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, errors.Wrap(err, "epoll_wait")
		}
		return buf[:n], nil
	}
}

func (p *poller) close() error {
	return errors.Wrap(unix.Close(p.epfd), "close epoll fd")
}
