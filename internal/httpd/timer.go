package httpd

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/harrowgate/reactord/internal/reactor"
)

// TimerListener owns a monotonic timerfd that fires once a second and
// asks the reactor to print its stats line.
type TimerListener struct {
	fd int
}

// NewTimerListener creates and arms the timerfd, then registers it with
// r.
func NewTimerListener(r *reactor.Reactor) (*TimerListener, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "timerfd_create")
	}

	spec := &unix.ItimerSpec{
		Interval: unix.NsecToTimespec(int64(1e9)),
		Value:    unix.NsecToTimespec(int64(1e9)),
	}
	if err := unix.TimerfdSettime(fd, 0, spec, nil); err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrap(err, "timerfd_settime")
	}

	l := &TimerListener{fd: fd}
	if err := r.AddInterest(fd, reactor.Read, l); err != nil {
		return nil, err
	}
	return l, nil
}

// OnReady drains the 8-byte expiration counter, asks the reactor to print
// its stats, and re-arms for the next tick.
func (l *TimerListener) OnReady(state reactor.State, fd int, pending *reactor.PendingActions) error {
	var n [8]byte
	if _, err := unix.Read(l.fd, n[:]); err != nil && err != unix.EAGAIN {
		return errors.Wrap(err, "read timerfd")
	}
	pending.Add(reactor.PrintStats())
	pending.Add(reactor.Modify(l.fd, reactor.Read))
	return nil
}
