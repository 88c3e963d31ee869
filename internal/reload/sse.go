package reload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// SSEConn is a server-sent event stream.
type SSEConn struct {
	mutex sync.Mutex
	w     http.ResponseWriter
	rc    *http.ResponseController
}

// NewSSEConn writes the event-stream headers and flushes them.
func NewSSEConn(w http.ResponseWriter) (*SSEConn, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		return nil, fmt.Errorf("event stream not supported: %w", err)
	}
	return &SSEConn{w: w, rc: rc}, nil
}

// Transport implements Conn.
func (c *SSEConn) Transport() string { return TransportSSE }

// Send writes one `data:` event and flushes it.
func (c *SSEConn) Send(ctx context.Context, path string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}

	if _, err := fmt.Fprint(c.w, FormatEvent(path)); err != nil {
		return err
	}
	return c.rc.Flush()
}

// FormatEvent encodes path as a server-sent event. Embedded line breaks
// become additional data lines.
func FormatEvent(path string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(path, "\r\n", "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
