// Package reload pushes change notifications to open browser connections.
//
// A Hub owns the set of subscribed clients. Each client has its own buffered
// queue and is drained by its own Subscribe call, so a slow or broken
// connection never delays or drops notifications for the others.
package reload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/devserve/internal/logging"
	"github.com/google/uuid"
)

const (
	defaultQueueSize    = 16
	defaultWriteTimeout = 10 * time.Second
)

// Conn is one transport-level notification stream.
type Conn interface {
	// Send writes one notification carrying path.
	Send(ctx context.Context, path string) error
	// Transport names the realization, e.g. "sse" or "websocket".
	Transport() string
}

// Client is a subscribed connection.
type Client struct {
	ID        string
	Transport string
	Connected time.Time

	conn  Conn
	queue chan string
}

// Options configures a Hub.
type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
}

// Hub tracks live clients and fans notifications out to them.
type Hub struct {
	mutex   sync.RWMutex
	clients map[string]*Client

	queueSize    int
	writeTimeout time.Duration
	logger       logging.Logger

	closing   chan struct{}
	closeOnce sync.Once

	broadcasts int64
	dropped    int64
}

// NewHub creates an empty hub.
func NewHub(opts Options, logger logging.Logger) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Hub{
		clients:      make(map[string]*Client),
		queueSize:    opts.QueueSize,
		writeTimeout: opts.WriteTimeout,
		logger:       logger.WithComponent("reload"),
		closing:      make(chan struct{}),
	}
}

// Subscribe registers conn and blocks, writing notifications to it, until ctx
// is done, the hub is closed or a write fails. The client is removed from the
// active set before Subscribe returns. Only a write failure is returned.
func (h *Hub) Subscribe(ctx context.Context, conn Conn) error {
	client := &Client{
		ID:        uuid.NewString(),
		Transport: conn.Transport(),
		Connected: time.Now(),
		conn:      conn,
		queue:     make(chan string, h.queueSize),
	}

	h.mutex.Lock()
	h.clients[client.ID] = client
	total := len(h.clients)
	h.mutex.Unlock()
	h.logger.Debug(ctx, "Client connected", "client", client.ID, "transport", client.Transport, "total", total)

	defer h.remove(ctx, client)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.closing:
			return nil
		case path := <-client.queue:
			writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Send(writeCtx, path)
			cancel()
			if err != nil {
				h.logger.Warn(ctx, err, "Reload notification failed", "client", client.ID, "path", path)
				return err
			}
		}
	}
}

func (h *Hub) remove(ctx context.Context, client *Client) {
	h.mutex.Lock()
	delete(h.clients, client.ID)
	total := len(h.clients)
	h.mutex.Unlock()
	h.logger.Debug(ctx, "Client disconnected", "client", client.ID, "total", total)
}

// Broadcast queues a notification for path on every client subscribed at the
// time of the call and returns how many clients it was queued for. A client
// whose queue is full misses this notification; others are unaffected.
func (h *Hub) Broadcast(path string) int {
	atomic.AddInt64(&h.broadcasts, 1)

	h.mutex.RLock()
	snapshot := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mutex.RUnlock()

	queued := 0
	for _, c := range snapshot {
		select {
		case c.queue <- path:
			queued++
		default:
			atomic.AddInt64(&h.dropped, 1)
			h.logger.Warn(context.Background(), nil, "Reload queue full, dropping notification",
				"client", c.ID, "path", path)
		}
	}
	return queued
}

// Clients returns the number of subscribed clients.
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Broadcasts returns how many times Broadcast was called.
func (h *Hub) Broadcasts() int64 {
	return atomic.LoadInt64(&h.broadcasts)
}

// Dropped returns how many per-client notifications were dropped.
func (h *Hub) Dropped() int64 {
	return atomic.LoadInt64(&h.dropped)
}

// CloseAll ends every subscription, current and future. It is safe to call
// more than once.
func (h *Hub) CloseAll() {
	h.closeOnce.Do(func() { close(h.closing) })
}
