package listener

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

type StreamStatus string

const (
	StreamConnected StreamStatus = "connected"
	StreamLost      StreamStatus = "connection lost"
)

// StreamMessage is one server-push payload on the translation stream.
type StreamMessage struct {
	Keepalive   bool   `json:"keepalive,omitempty"`
	BroadcastID string `json:"broadcast_id,omitempty"`
	Translation string `json:"translation,omitempty"`
}

type StreamConfig struct {
	Language    string
	BroadcastID string
	ClientID    string
}

type StreamHandlers struct {
	OnFragment func(text string)
	OnStatus   func(StreamStatus)
}

// StreamClient holds one live SSE connection to the translation stream.
// There is no automatic reconnect: a lost connection stays lost until the
// caller opens a new one (language change or explicit restart).
type StreamClient struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger

	mu     sync.Mutex
	body   io.ReadCloser
	closed bool
}

func NewStreamClient(baseURL string, httpClient *http.Client, log *slog.Logger) *StreamClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &StreamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log.With("component", "stream"),
	}
}

// Open connects and starts the read loop. Any previous connection is closed
// first.
func (c *StreamClient) Open(ctx context.Context, cfg StreamConfig, h StreamHandlers) error {
	c.Close()

	q := url.Values{}
	q.Set("client_id", cfg.ClientID)
	q.Set("role", "listener")
	q.Set("broadcast_id", cfg.BroadcastID)

	endpoint := fmt.Sprintf("%s/stream_translation/%s?%s", c.baseURL, url.PathEscape(cfg.Language), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("open translation stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("open translation stream: unexpected status %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.body = resp.Body
	c.closed = false
	c.mu.Unlock()

	if h.OnStatus != nil {
		h.OnStatus(StreamConnected)
	}

	go c.readLoop(resp.Body, cfg, h)
	return nil
}

func (c *StreamClient) readLoop(body io.ReadCloser, cfg StreamConfig, h StreamHandlers) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var msg StreamMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			c.log.Warn("discarding unparseable stream message", "error", err)
			continue
		}

		if msg.Keepalive {
			continue
		}

		// Guards against stale or cross-broadcast delivery.
		if msg.BroadcastID != "" && msg.BroadcastID != cfg.BroadcastID {
			c.log.Debug("discarding fragment for other broadcast", "broadcast_id", msg.BroadcastID)
			continue
		}

		if msg.Translation != "" && h.OnFragment != nil {
			h.OnFragment(msg.Translation)
		}
	}

	c.mu.Lock()
	wasClosed := c.closed
	c.mu.Unlock()

	if !wasClosed {
		if err := scanner.Err(); err != nil {
			c.log.Error("translation stream failed", "error", err)
		}
		if h.OnStatus != nil {
			h.OnStatus(StreamLost)
		}
	}
}

// Close tears the connection down. Safe to call on an unopened client.
func (c *StreamClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.body != nil {
		_ = c.body.Close()
		c.body = nil
	}
}
