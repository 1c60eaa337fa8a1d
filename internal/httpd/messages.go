// Package httpd is the toy HTTP echo demo built on top of the reactor: a
// request-context actor that owns per-connection buffers and drives each
// connection's read/write state machine, and a content-length actor that
// scans request bytes for a content-length header and reports back. The
// two actors share this package (rather than importing each other) so
// each can hold a Handle to the other's mailbox without a Go import
// cycle.
package httpd

import "github.com/harrowgate/reactord/internal/actor"

// contentLengthRequest asks the content-length actor to scan req (the
// bytes accumulated so far for sender) for a content-length header.
type contentLengthRequest struct {
	req    string
	sender int
}

// contentLengthResponse reports the parsed content length for receiver
// back to the request-context actor. A length of 0 means "no header was
// found, or the header said zero": both read as "ready to respond now"
// under the buffer-length >= content-length test.
type contentLengthResponse struct {
	receiver      int
	contentLength int
}

type reqMailbox = actor.Handle[contentLengthResponse]
type clMailbox = actor.Handle[contentLengthRequest]
