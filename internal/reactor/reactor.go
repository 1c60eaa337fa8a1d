// Package reactor implements a single-threaded, readiness-based event
// loop: register a fd's interest with the kernel, get woken when it's
// ready, dispatch to whichever Receiver owns that fd, and apply whatever
// interest-set mutations the receiver asked for once the whole batch has
// run.
//
// Nothing here spawns a goroutine. Run occupies the calling goroutine for
// as long as the loop is alive; every receiver callback, every registry
// mutation, and every actor mailbox drain happens on that one goroutine.
package reactor

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/harrowgate/reactord/internal/logging"
)

// Reactor owns the epoll fd and the fd -> Receiver registry. It is not
// safe for concurrent use; every method (including the callbacks it
// drives) is expected to run on a single goroutine.
type Reactor struct {
	poller    *poller
	receivers map[int]Receiver
	events    []unix.EpollEvent
}

// New creates the epoll object and an empty registry.
func New() (*Reactor, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return &Reactor{
		poller:    p,
		receivers: make(map[int]Receiver),
		events:    make([]unix.EpollEvent, maxEvents),
	}, nil
}

// AddInterest registers fd with the kernel under flags and stores
// receiver as the fd's dispatch target.
func (r *Reactor) AddInterest(fd int, flags Flags, receiver Receiver) error {
	if err := r.poller.add(fd, flags); err != nil {
		return err
	}
	r.receivers[fd] = receiver
	return nil
}

// ModifyInterest re-arms fd with new flags. The fd must already be
// registered.
func (r *Reactor) ModifyInterest(fd int, flags Flags) error {
	return r.poller.modify(fd, flags)
}

// Remover is an optional capability a Receiver can implement when it
// keeps fd-keyed state beyond the registry itself (the request-context
// actor's per-connection buffer and content-length maps). RemoveInterest
// calls OnRemove after the fd is unregistered and closed, so the receiver
// can drop its own entries before the fd number can be reused by a later
// accept().
type Remover interface {
	OnRemove(fd int)
}

// RemoveInterest unregisters fd, drops its receiver, and closes it. The
// reactor owns every registered fd for the purpose of closing it: callers
// must never close a registered fd themselves.
func (r *Reactor) RemoveInterest(fd int) error {
	if err := r.poller.remove(fd); err != nil {
		return err
	}
	receiver, ok := r.receivers[fd]
	delete(r.receivers, fd)
	err := errors.Wrapf(unix.Close(fd), "close fd %d", fd)
	if ok {
		if remover, ok := receiver.(Remover); ok {
			remover.OnRemove(fd)
		}
	}
	return err
}

// Run drives the dispatch loop until an Exit action is applied or a
// receiver callback returns a fatal error. verbose controls whether
// routine traffic (accepts, content-length sets, completions, the
// per-second stats line) is logged; warnings and errors always surface.
func (r *Reactor) Run(verbose bool) error {
	logging.SetVerbose(verbose)

	for {
		ready, err := r.poller.wait(r.events)
		if err != nil {
			return err
		}

		var pending PendingActions
		for _, ev := range ready {
			fd := int(ev.Fd)
			state := stateFromEvents(ev.Events)

			receiver, ok := r.receivers[fd]
			if !ok {
				logging.UnexpectedFd(fd)
				continue
			}

			if !state.Actionable() {
				// Shutdown-class event: deregister directly rather than
				// through the pending list, so a duplicate wakeup for the
				// same fd later in this batch finds it already gone.
				if err := r.RemoveInterest(fd); err != nil {
					return err
				}
				continue
			}

			if err := receiver.OnReady(state, fd, &pending); err != nil {
				return err
			}
		}

		exit, err := r.apply(pending.drain())
		if err != nil {
			return err
		}
		if exit {
			logging.Exited()
			return nil
		}
	}
}

// apply drains a batch's pending actions in FIFO order. Add/Modify/Remove
// mutate the registry; PrintStats logs; Exit reports that Run should stop
// once the rest of the batch has been applied.
func (r *Reactor) apply(actions []Action) (exit bool, err error) {
	for _, a := range actions {
		switch a.Kind {
		case ActionAdd:
			if err := r.AddInterest(a.Fd, a.Flags, a.Receiver); err != nil {
				return false, err
			}
		case ActionModify:
			if err := r.ModifyInterest(a.Fd, a.Flags); err != nil {
				return false, err
			}
		case ActionRemove:
			if err := r.RemoveInterest(a.Fd); err != nil {
				return false, err
			}
		case ActionPrintStats:
			logging.ReceiversInFlight(len(r.receivers))
		case ActionExit:
			exit = true
		}
	}
	return exit, nil
}

// Close unregisters every remaining fd best-effort (it does not attempt
// to close them: ownership of an unregistered fd reverts to whoever
// created it) and closes the epoll object itself.
func (r *Reactor) Close() error {
	for fd := range r.receivers {
		_ = r.poller.remove(fd)
		delete(r.receivers, fd)
	}
	return r.poller.close()
}
