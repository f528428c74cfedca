package httpx_test

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// mockRoundTripper replays one scripted outcome per attempt, so retry logic
// can be tested without a network.
type mockRoundTripper struct {
	responses []func(*http.Request) (*http.Response, error)
	attempt   int
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Running out of outcomes means more attempts were made than scripted.
	if m.attempt >= len(m.responses) {
		return nil, errors.New("mockRoundTripper: too many attempts")
	}

	responseFunc := m.responses[m.attempt]
	m.attempt++
	return responseFunc(req)
}

// closeTracker records whether a body has been closed.
type closeTracker struct {
	mu     sync.Mutex
	closed bool
}

// markClosed records the close and reports whether it was the first one.
func (c *closeTracker) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	first := !c.closed
	c.closed = true
	return first
}

func (c *closeTracker) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// mockReadCloser is a response body backed by an arbitrary reader.
type mockReadCloser struct {
	closeTracker
	reader io.Reader
}

// newMockReadCloser creates a new mock body from a string.
func newMockReadCloser(data string) *mockReadCloser {
	return &mockReadCloser{reader: strings.NewReader(data)}
}

func (m *mockReadCloser) Read(p []byte) (int, error) { return m.reader.Read(p) }

func (m *mockReadCloser) Close() error {
	m.markClosed()
	return nil
}

// blockingReadCloser simulates a connection on which the server never sends
// anything. Read blocks until Close is called, then fails like a closed socket.
type blockingReadCloser struct {
	closeTracker
	closeChan chan struct{}
}

func newBlockingReadCloser() *blockingReadCloser {
	return &blockingReadCloser{closeChan: make(chan struct{})}
}

func (m *blockingReadCloser) Read([]byte) (int, error) {
	<-m.closeChan
	return 0, io.ErrClosedPipe
}

func (m *blockingReadCloser) Close() error {
	if m.markClosed() {
		close(m.closeChan)
	}
	return nil
}

// pacedReadCloser delivers one chunk per Read, waiting interval before every
// chunk after the first, like a server generating tokens.
type pacedReadCloser struct {
	closeTracker
	chunks   []string
	interval time.Duration
	next     int
}

func (m *pacedReadCloser) Read(p []byte) (int, error) {
	if m.next >= len(m.chunks) {
		return 0, io.EOF
	}
	if m.next > 0 {
		time.Sleep(m.interval)
	}

	n := copy(p, m.chunks[m.next])
	m.next++
	return n, nil
}

func (m *pacedReadCloser) Close() error {
	m.markClosed()
	return nil
}

// errorReader is a helper that implements io.Reader and always returns an error.
type errorReader struct {
	err error
}

func (e *errorReader) Read([]byte) (n int, err error) {
	return 0, e.err
}
