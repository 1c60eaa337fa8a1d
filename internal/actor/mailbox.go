// Package actor provides the cross-actor message-passing primitive used
// by the HTTP echo demo: a clonable Handle backed by a counting-semaphore
// eventfd, so any number of producers can enqueue work for an actor and
// be sure the reactor wakes it at least once per enqueue, without locks,
// recursion, or a data race on the shared FIFO (everything still runs on
// the single reactor goroutine).
package actor

import (
	"container/list"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/harrowgate/reactord/internal/reactor"
)

// mailboxFlags arms the wake fd read-interest, one-shot, like every other
// reactor registration.
const mailboxFlags = reactor.Read

// mailbox is the generic FIFO + wake-fd pair backing a Handle[M]. It is
// not exported on its own: actors bind to it through Handle, and drain it
// through Handle.Drain.
type mailbox[M any] struct {
	efd   int
	queue list.List
}

// Handle is the clonable producer side of an actor's mailbox. Cloning a
// Handle (a plain struct copy; every field is a reference type or an int)
// lets many call sites enqueue onto the same actor without sharing
// anything beyond the mailbox itself.
type Handle[M any] struct {
	mbox *mailbox[M]
}

// New creates a mailbox, its wake fd, and a Handle for it. The caller is
// responsible for registering the returned fd with a reactor (typically
// by wrapping the bound actor so its OnReady calls Drain on this fd) and
// for eventually calling Close once the program is shutting down.
func New[M any]() (Handle[M], int, error) {
	efd, err := unix.Eventfd(0, unix.EFD_SEMAPHORE|unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return Handle[M]{}, -1, errors.Wrap(err, "eventfd")
	}
	return Handle[M]{mbox: &mailbox[M]{efd: efd}}, efd, nil
}

// Fd returns the mailbox's wake fd.
func (h Handle[M]) Fd() int {
	return h.mbox.efd
}

// Enqueue pushes msg onto the FIFO, then bumps the semaphore by one so
// the reactor wakes the bound receiver at least once. Because the
// semaphore is counting (EFD_SEMAPHORE), every enqueue leaves one token
// and so one wake; a burst of enqueues between wakeups is never
// under-woken, and since a drain always empties the whole FIFO, not just
// one token's worth, the first wake delivers the whole burst and the
// wakes for the remaining tokens find the FIFO empty.
func (h Handle[M]) Enqueue(msg M) error {
	h.mbox.queue.PushBack(msg)
	_, err := unix.Write(h.mbox.efd, []byte{1, 0, 0, 0, 0, 0, 0, 0})
	return errors.Wrap(err, "eventfd_write")
}

// Close closes the mailbox's wake fd. Only the owner that created the
// Handle via New should call this, once, after the reactor is no longer
// registered for the fd.
func (h Handle[M]) Close() error {
	return errors.Wrap(unix.Close(h.mbox.efd), "close eventfd")
}

// Drain reads one semaphore token (clearing the one-shot readiness) and
// returns every message currently queued, in FIFO order, clearing the
// queue. It is meant to be called from inside a bound actor's OnReady
// when its mailbox fd becomes readable.
func (h Handle[M]) Drain() ([]M, error) {
	var token [8]byte
	if _, err := unix.Read(h.mbox.efd, token[:]); err != nil && err != unix.EAGAIN {
		return nil, errors.Wrap(err, "eventfd_read")
	}

	if h.mbox.queue.Len() == 0 {
		return nil, nil
	}
	out := make([]M, 0, h.mbox.queue.Len())
	for e := h.mbox.queue.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(M))
	}
	h.mbox.queue.Init()
	return out, nil
}
