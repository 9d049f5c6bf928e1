package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const sseKeepAliveInterval = 30 * time.Second

// SSEConn writes one listener's translation stream. Events are JSON data
// frames; keepalives are JSON messages too so clients on proxies that strip
// comments still see traffic.
type SSEConn struct {
	writer    http.ResponseWriter
	flusher   http.Flusher
	clientID  string
	send      chan Event
	done      chan struct{}
	closeOnce sync.Once
}

func NewSSEConn(w http.ResponseWriter, clientID string) (*SSEConn, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, http.ErrNotSupported
	}
	return &SSEConn{
		writer:   w,
		flusher:  flusher,
		clientID: clientID,
		send:     make(chan Event, 128),
		done:     make(chan struct{}),
	}, nil
}

func (c *SSEConn) ClientID() string {
	return c.clientID
}

func (c *SSEConn) Send(ctx context.Context, ev Event) error {
	select {
	case <-c.done:
		return http.ErrServerClosed
	default:
	}

	select {
	case c.send <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return http.ErrServerClosed
	}
}

func (c *SSEConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Run drains the send channel onto the wire until the context ends or the
// connection closes.
func (c *SSEConn) Run(ctx context.Context) error {
	ticker := time.NewTicker(sseKeepAliveInterval)
	defer ticker.Stop()
	defer func() { _ = c.Close() }()

	for {
		select {
		case ev := <-c.send:
			if err := c.writeEvent(ev); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.writeEvent(Event{Keepalive: true}); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		}
	}
}

func (c *SSEConn) writeEvent(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	if _, err := c.writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := c.writer.Write(data); err != nil {
		return err
	}
	if _, err := c.writer.Write([]byte("\n\n")); err != nil {
		return err
	}

	c.flusher.Flush()
	return nil
}
