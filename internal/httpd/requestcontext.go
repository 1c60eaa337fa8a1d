package httpd

import (
	"golang.org/x/sys/unix"

	"github.com/harrowgate/reactord/internal/actor"
	"github.com/harrowgate/reactord/internal/logging"
	"github.com/harrowgate/reactord/internal/reactor"
)

// httpResponse is the fixed 68-byte payload every accepted connection
// eventually receives, exactly once.
var httpResponse = []byte("HTTP/1.1 200 OK\r\ncontent-type: text/html\r\ncontent-length: 5\r\n\r\nHello")

const readChunk = 4096

// connState is one accepted client fd's progress through
// Reading -> ReadingKnown -> Writing. A fd never appears in conns once it
// has reached Writing and been removed: RequestContext.OnRemove (called
// by the reactor right after it closes the fd) deletes the entry so a
// later accept() that happens to reuse the same fd number starts clean.
type connState struct {
	buf    []byte
	length int
	known  bool
}

// readyToRespond reports whether enough bytes have arrived to answer.
// A connection with no known content-length (length defaults to 0) and no
// header match is ready immediately, matching the content-length actor's
// "no header found" -> 0 convention.
func (c *connState) readyToRespond() bool {
	return len(c.buf) >= c.length
}

// RequestContext is the receiver for every accepted client fd and for its
// own mailbox fd. It owns the per-connection buffers and drives each
// connection's read/write state machine; the content-length actor only
// ever talks back to it through contentLengthResponse messages.
type RequestContext struct {
	conns      map[int]*connState
	mailbox    reqMailbox
	mailboxFd  int
	contentFds clMailbox
}

// NewRequestContext creates the actor, registers its mailbox fd with r,
// and returns both the receiver, which the accept listener registers
// under each accepted client fd, and the mailbox Handle the content-length
// actor uses to send its responses back.
func NewRequestContext(r *reactor.Reactor) (*RequestContext, reqMailbox, error) {
	mailbox, fd, err := actor.New[contentLengthResponse]()
	if err != nil {
		return nil, reqMailbox{}, err
	}
	rc := &RequestContext{
		conns:     make(map[int]*connState),
		mailbox:   mailbox,
		mailboxFd: fd,
	}
	if err := r.AddInterest(fd, reactor.Read, rc); err != nil {
		return nil, reqMailbox{}, err
	}
	return rc, mailbox, nil
}

// BindContentLengthActor wires the handle used to forward raw request
// bytes to the content-length actor. Kept separate from NewRequestContext to break the
// startup cycle (the content-length actor's constructor needs this
// actor's mailbox handle first).
func (rc *RequestContext) BindContentLengthActor(h clMailbox) {
	rc.contentFds = h
}

// OnReady dispatches on which fd fired: the mailbox drains queued
// content-length responses, any other fd is a client connection in its
// read or write phase.
func (rc *RequestContext) OnReady(state reactor.State, fd int, pending *reactor.PendingActions) error {
	if fd == rc.mailboxFd {
		return rc.onMailbox(pending)
	}
	if state.Writable {
		return rc.onWritable(fd, pending)
	}
	return rc.onReadable(fd, pending)
}

// OnRemove drops a client fd's buffer and content-length state once the
// reactor has unregistered and closed it, per the invariant that removal
// always erases both map entries together.
func (rc *RequestContext) OnRemove(fd int) {
	delete(rc.conns, fd)
}

func (rc *RequestContext) onMailbox(pending *reactor.PendingActions) error {
	msgs, err := rc.mailbox.Drain()
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		rc.handleContentLengthResponse(msg, pending)
	}
	pending.Add(reactor.Modify(rc.mailboxFd, reactor.Read))
	return nil
}

func (rc *RequestContext) handleContentLengthResponse(msg contentLengthResponse, pending *reactor.PendingActions) {
	c, ok := rc.conns[msg.receiver]
	if !ok {
		logging.UnexpectedFd(msg.receiver)
		return
	}
	c.length = msg.contentLength
	c.known = true
	if c.readyToRespond() {
		logging.GotAllData(msg.receiver, len(c.buf))
		pending.Add(reactor.Modify(msg.receiver, reactor.Write))
		return
	}
	pending.Add(reactor.Modify(msg.receiver, reactor.Read))
}

// onReadable accumulates bytes for fd. Partial reads are normal: a short
// read just leaves the connection armed for more; EAGAIN is benign and
// leaves state untouched; a read error or a zero-byte read tears the
// connection down via Remove rather than propagating, so one bad peer
// never takes down the reactor.
func (rc *RequestContext) onReadable(fd int, pending *reactor.PendingActions) error {
	buf := make([]byte, readChunk)
	n, err := unix.Read(fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		pending.Add(reactor.Remove(fd))
		return nil
	}
	if n == 0 {
		pending.Add(reactor.Remove(fd))
		return nil
	}
	buf = buf[:n]

	c, ok := rc.conns[fd]
	if !ok {
		c = &connState{}
		rc.conns[fd] = c
	}
	c.buf = append(c.buf, buf...)

	if !c.known {
		if err := rc.contentFds.Enqueue(contentLengthRequest{req: string(c.buf), sender: fd}); err != nil {
			return err
		}
		pending.Add(reactor.Modify(fd, reactor.Read))
		return nil
	}

	if c.readyToRespond() {
		logging.GotAllData(fd, len(c.buf))
		pending.Add(reactor.Modify(fd, reactor.Write))
		return nil
	}
	pending.Add(reactor.Modify(fd, reactor.Read))
	return nil
}

// onWritable sends the fixed response exactly once, shuts the socket down
// for both directions, and requests the fd's removal regardless of
// whether the write succeeded: a failed answer still needs to release
// the connection.
func (rc *RequestContext) onWritable(fd int, pending *reactor.PendingActions) error {
	if _, err := unix.Write(fd, httpResponse); err != nil {
		logging.AnswerFailed(fd, err)
	} else {
		logging.Answered(fd)
	}
	_ = unix.Shutdown(fd, unix.SHUT_RDWR)
	pending.Add(reactor.Remove(fd))
	return nil
}
