package httpd

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/harrowgate/reactord/internal/actor"
	"github.com/harrowgate/reactord/internal/logging"
	"github.com/harrowgate/reactord/internal/reactor"
)

const contentLengthPrefix = "content-length: "

// ContentLengthActor scans accumulated request bytes for a
// "content-length: " header and reports the parsed value back to the
// request-context actor that asked. It never touches a client fd
// directly; its only registered fd is its own mailbox.
type ContentLengthActor struct {
	mailbox clMailbox
	fd      int
	req     reqMailbox
}

// NewContentLengthActor creates the actor and registers its mailbox fd
// with r. req is the request-context actor's handle, used to deliver
// contentLengthResponse messages back.
func NewContentLengthActor(r *reactor.Reactor, req reqMailbox) (clMailbox, error) {
	mailbox, fd, err := actor.New[contentLengthRequest]()
	if err != nil {
		return clMailbox{}, err
	}
	a := &ContentLengthActor{mailbox: mailbox, fd: fd, req: req}
	if err := r.AddInterest(fd, reactor.Read, a); err != nil {
		return clMailbox{}, err
	}
	return mailbox, nil
}

// OnReady drains every queued scan request, handles each, and re-arms
// its own mailbox fd for read.
func (a *ContentLengthActor) OnReady(state reactor.State, fd int, pending *reactor.PendingActions) error {
	msgs, err := a.mailbox.Drain()
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		if err := a.handle(msg); err != nil {
			return err
		}
	}
	pending.Add(reactor.Modify(a.fd, reactor.Read))
	return nil
}

func (a *ContentLengthActor) handle(msg contentLengthRequest) error {
	length, err := parseContentLength(msg.req)
	if err != nil {
		return errors.Wrapf(err, "parse content-length for fd %d", msg.sender)
	}
	logging.ContentLengthSet(msg.sender, length)
	return a.req.Enqueue(contentLengthResponse{receiver: msg.sender, contentLength: length})
}

// parseContentLength is the header-scanning heuristic: it only looks at
// all once the accumulated text contains "HTTP" (a cheap
// way to avoid scanning a request body that happens to contain the
// substring "content-length: "), then looks for a line whose prefix
// case-insensitively matches "content-length: ". A non-matching input is
// not an error: it yields length 0, which the request-context actor reads
// as "ready to respond immediately".
func parseContentLength(data string) (int, error) {
	if !strings.Contains(data, "HTTP") {
		return 0, nil
	}
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if len(line) <= len(contentLengthPrefix) {
			continue
		}
		if !strings.EqualFold(line[:len(contentLengthPrefix)], contentLengthPrefix) {
			continue
		}
		n, err := strconv.Atoi(line[len(contentLengthPrefix):])
		if err != nil || n < 0 {
			return 0, errors.Errorf("invalid content-length value %q", line[len(contentLengthPrefix):])
		}
		return n, nil
	}
	return 0, nil
}
