package reactor

import "golang.org/x/sys/unix"

// Flags is the epoll interest bitset a receiver is registered under.
// One-shot is mandatory: every Add or Modify carries unix.EPOLLONESHOT,
// so the kernel disarms the fd after one delivery and the receiver must
// explicitly re-arm with a Modify action.
type Flags uint32

const (
	// Read arms a fd for readability, one-shot.
	Read Flags = unix.EPOLLIN | unix.EPOLLONESHOT
	// Write arms a fd for writability, one-shot.
	Write Flags = unix.EPOLLOUT | unix.EPOLLONESHOT
)

const shutdownMask = unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLPRI

// State reports why a receiver was woken.
type State struct {
	Readable bool
	Writable bool
	Shutdown bool
}

// Actionable is true when the wakeup is a normal read or write delivery.
func (s State) Actionable() bool {
	return s.Readable || s.Writable
}

func stateFromEvents(events uint32) State {
	return State{
		Readable: events&unix.EPOLLIN != 0,
		Writable: events&unix.EPOLLOUT != 0,
		Shutdown: events&shutdownMask != 0,
	}
}

// Receiver is the single capability every registered fd dispatches
// through. The reactor passes fd because one receiver instance may be
// registered under several fds at once (the request-context actor owns
// both its mailbox fd and every accepted client fd).
type Receiver interface {
	OnReady(state State, fd int, pending *PendingActions) error
}
