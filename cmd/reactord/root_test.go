package main

import (
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const wantResponse = "HTTP/1.1 200 OK\r\ncontent-type: text/html\r\ncontent-length: 5\r\n\r\nHello"

// TestEchoServer starts the reactor loop once, in a background goroutine,
// and runs every end-to-end scenario against that single instance as
// subtests: Close only unregisters fds rather than closing the listening
// socket (see reactor.Reactor.Close), so a second run() in the same
// process can't rebind the same port once this one has started.
func TestEchoServer(t *testing.T) {
	done := make(chan error, 1)
	go func() { done <- run(false) }()

	var dialErr error
	for i := 0; i < 200; i++ {
		conn, err := net.Dial("tcp", "127.0.0.1:8000")
		if err == nil {
			conn.Close()
			dialErr = nil
			break
		}
		dialErr = err
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, dialErr)

	t.Run("responds once content-length is satisfied", func(t *testing.T) {
		conn, err := net.Dial("tcp", "127.0.0.1:8000")
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte("POST / HTTP/1.1\r\ncontent-length: 5\r\n\r\nhello"))
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		got, err := io.ReadAll(conn)
		require.NoError(t, err)
		require.Equal(t, wantResponse, string(got))
	})

	t.Run("responds immediately without a content-length header", func(t *testing.T) {
		conn, err := net.Dial("tcp", "127.0.0.1:8000")
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte("GET / HTTP/1.1\r\nhost: example.com\r\n\r\n"))
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		got, err := io.ReadAll(conn)
		require.NoError(t, err)
		require.Equal(t, wantResponse, string(got))
	})

	// Sends the request header and body in two separate writes, exercising
	// the partial-read / re-arm path rather than the single-read happy
	// path the other subtests hit.
	t.Run("tolerates a request split across two writes", func(t *testing.T) {
		conn, err := net.Dial("tcp", "127.0.0.1:8000")
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte("POST / HTTP/1.1\r\ncontent-length: 5\r\n\r\n"))
		require.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		_, err = conn.Write([]byte("hello"))
		require.NoError(t, err)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		got, err := io.ReadAll(conn)
		require.NoError(t, err)
		require.Equal(t, wantResponse, string(got))
	})

	// Connects and closes without sending anything. The reactor must tear
	// the connection down quietly and keep serving everyone else.
	t.Run("an immediate peer hangup does not take down the loop", func(t *testing.T) {
		conn, err := net.Dial("tcp", "127.0.0.1:8000")
		require.NoError(t, err)
		require.NoError(t, conn.Close())

		time.Sleep(50 * time.Millisecond)

		other, err := net.Dial("tcp", "127.0.0.1:8000")
		require.NoError(t, err)
		defer other.Close()
		_, err = other.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
		require.NoError(t, err)
		require.NoError(t, other.SetReadDeadline(time.Now().Add(2*time.Second)))
		got, err := io.ReadAll(other)
		require.NoError(t, err)
		require.Equal(t, wantResponse, string(got))
	})

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reactor did not exit after SIGINT")
	}
}

// TestMalformedContentLengthIsFatal sends a content-length value that
// doesn't parse as a non-negative integer and checks that the error
// propagates all the way out of the reactor loop. This needs its own
// runOn instance on a different port: the loop this kills leaves its
// listening fd open (Reactor.Close only unregisters, it doesn't close),
// so it can't share a port with TestEchoServer.
func TestMalformedContentLengthIsFatal(t *testing.T) {
	const addr, port = "127.0.0.1", 8001

	done := make(chan error, 1)
	go func() { done <- runOn(false, addr, port) }()

	var dialErr error
	var conn net.Conn
	for i := 0; i < 200; i++ {
		conn, dialErr = net.Dial("tcp", "127.0.0.1:8001")
		if dialErr == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, dialErr)
	defer conn.Close()

	_, err := conn.Write([]byte("POST / HTTP/1.1\r\ncontent-length: notanumber\r\n\r\n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reactor did not terminate on a malformed content-length")
	}
}
