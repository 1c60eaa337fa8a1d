package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// recordingReceiver captures every OnReady call it gets and, if queue is
// non-empty, appends the next queued action to the batch.
type recordingReceiver struct {
	calls []State
	queue []Action
}

func (r *recordingReceiver) OnReady(state State, fd int, pending *PendingActions) error {
	r.calls = append(r.calls, state)
	if len(r.queue) > 0 {
		pending.Add(r.queue[0])
		r.queue = r.queue[1:]
	}
	return nil
}

func pipe(t *testing.T) (r, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	return fds[0], fds[1]
}

func TestAddInterestDispatchesOnReadability(t *testing.T) {
	rx, err := New()
	require.NoError(t, err)
	defer rx.Close()

	pr, pw := pipe(t)
	defer unix.Close(pw)

	recv := &recordingReceiver{queue: []Action{Exit()}}
	require.NoError(t, rx.AddInterest(pr, Read, recv))

	_, err = unix.Write(pw, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, rx.Run(false))
	require.Len(t, recv.calls, 1)
	require.True(t, recv.calls[0].Readable)
}

// TestRemoveInterestClosesFd exercises the Add-then-Remove round trip
// directly: once RemoveInterest returns, the fd is gone from the registry
// and the descriptor itself has been closed, so using it again fails with
// EBADF.
func TestRemoveInterestClosesFd(t *testing.T) {
	rx, err := New()
	require.NoError(t, err)
	defer rx.Close()

	pr, pw := pipe(t)
	defer unix.Close(pw)

	require.NoError(t, rx.AddInterest(pr, Read, &recordingReceiver{}))
	require.NoError(t, rx.RemoveInterest(pr))
	_, ok := rx.receivers[pr]
	require.False(t, ok)

	_, err = unix.Write(pr, []byte("x"))
	require.ErrorIs(t, err, unix.EBADF)
}

// TestAddThenRemoveSameBatchLeavesRegistryUnchanged applies an Add
// immediately followed by a Remove for the same fd within a single batch.
// The net effect must be as if neither ran: no registry entry survives,
// and the fd ends up closed.
func TestAddThenRemoveSameBatchLeavesRegistryUnchanged(t *testing.T) {
	rx, err := New()
	require.NoError(t, err)
	defer rx.Close()

	pr, pw := pipe(t)
	defer unix.Close(pw)

	var pending PendingActions
	pending.Add(Add(pr, Read, &recordingReceiver{}))
	pending.Add(Remove(pr))

	exit, err := rx.apply(pending.drain())
	require.NoError(t, err)
	require.False(t, exit)

	_, ok := rx.receivers[pr]
	require.False(t, ok)

	_, err = unix.Write(pr, []byte("x"))
	require.ErrorIs(t, err, unix.EBADF)
}

// TestSecondModifyWinsWithinABatch applies two Modify actions against the
// same fd in one batch (Write, then Read). The kernel keeps only the
// result of the second epoll_ctl call, so the fd ends up armed for
// readability, not writability.
func TestSecondModifyWinsWithinABatch(t *testing.T) {
	rx, err := New()
	require.NoError(t, err)
	defer rx.Close()

	pr, pw := pipe(t)
	defer unix.Close(pw)

	recv := &recordingReceiver{queue: []Action{Exit()}}
	require.NoError(t, rx.AddInterest(pr, Write, recv))

	var pending PendingActions
	pending.Add(Modify(pr, Write))
	pending.Add(Modify(pr, Read))
	exit, err := rx.apply(pending.drain())
	require.NoError(t, err)
	require.False(t, exit)

	_, err = unix.Write(pw, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, rx.Run(false))
	require.Len(t, recv.calls, 1)
	require.True(t, recv.calls[0].Readable)
	require.False(t, recv.calls[0].Writable)
}

// TestShutdownClassEventRemovesWithoutDispatch confirms that a
// non-actionable (hangup-only) wakeup is unregistered directly by the
// reactor rather than handed to the receiver's OnReady.
func TestShutdownClassEventRemovesWithoutDispatch(t *testing.T) {
	rx, err := New()
	require.NoError(t, err)
	defer rx.Close()

	pr, pw := pipe(t)

	recv := &recordingReceiver{}
	require.NoError(t, rx.AddInterest(pr, Read, recv))

	// Closing the write end with no data pending delivers EPOLLHUP, not
	// EPOLLIN, on the read end.
	require.NoError(t, unix.Close(pw))

	stopR, stopW := pipe(t)
	defer unix.Close(stopW)
	require.NoError(t, rx.AddInterest(stopR, Read, &recordingReceiver{queue: []Action{Exit()}}))
	_, err = unix.Write(stopW, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, rx.Run(false))
	require.Empty(t, recv.calls)
	_, ok := rx.receivers[pr]
	require.False(t, ok)
}
