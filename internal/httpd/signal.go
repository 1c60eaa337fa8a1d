package httpd

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/harrowgate/reactord/internal/reactor"
)

// signalfdSiginfoSize is sizeof(struct signalfd_siginfo) on Linux; the
// listener only needs to drain the bytes, not interpret them.
const signalfdSiginfoSize = 128

// SignalListener owns a signalfd armed for SIGINT, with SIGINT blocked
// process-wide so it is only ever delivered here instead of interrupting
// the epoll_wait syscall or killing the process directly.
type SignalListener struct {
	fd int
}

// NewSignalListener blocks SIGINT, creates the signalfd, and registers it
// with r.
func NewSignalListener(r *reactor.Reactor) (*SignalListener, error) {
	var mask unix.Sigset_t
	addSignal(&mask, unix.SIGINT)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &mask, nil); err != nil {
		return nil, errors.Wrap(err, "sigprocmask")
	}

	fd, err := unix.Signalfd(-1, &mask, unix.SFD_NONBLOCK|unix.SFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "signalfd")
	}

	l := &SignalListener{fd: fd}
	if err := r.AddInterest(fd, reactor.Read, l); err != nil {
		return nil, err
	}
	return l, nil
}

// addSignal sets sig's bit in a POSIX sigset_t: word (sig-1)/64, bit
// (sig-1)%64, per the standard bitmask layout unix.Sigset_t.Val follows.
func addSignal(set *unix.Sigset_t, sig unix.Signal) {
	s := uint(sig) - 1
	set.Val[s/64] |= 1 << (s % 64)
}

// OnReady drains the pending signalfd_siginfo record and asks the
// reactor to exit. It never re-arms: an Exit ends the loop before another
// wakeup for this fd could matter.
func (l *SignalListener) OnReady(state reactor.State, fd int, pending *reactor.PendingActions) error {
	var info [signalfdSiginfoSize]byte
	if _, err := unix.Read(l.fd, info[:]); err != nil && err != unix.EAGAIN {
		return errors.Wrap(err, "read signalfd")
	}
	pending.Add(reactor.Exit())
	return nil
}
