package listener

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// sseServer serves a canned sequence of SSE data lines and then ends the
// stream.
func sseServer(t *testing.T, payloads []string, gotRequest chan<- *http.Request) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotRequest != nil {
			gotRequest <- r
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, p := range payloads {
			fmt.Fprintf(w, "data: %s\n\n", p)
			flusher.Flush()
		}
	}))
}

type fragmentRecorder struct {
	mu        sync.Mutex
	fragments []string
	statuses  []StreamStatus
}

func (r *fragmentRecorder) handlers() StreamHandlers {
	return StreamHandlers{
		OnFragment: func(text string) {
			r.mu.Lock()
			r.fragments = append(r.fragments, text)
			r.mu.Unlock()
		},
		OnStatus: func(s StreamStatus) {
			r.mu.Lock()
			r.statuses = append(r.statuses, s)
			r.mu.Unlock()
		},
	}
}

func (r *fragmentRecorder) snapshot() ([]string, []StreamStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fragments...), append([]StreamStatus(nil), r.statuses...)
}

func TestStreamClient_ForwardsMatchingFragments(t *testing.T) {
	srv := sseServer(t, []string{
		`{"keepalive": true}`,
		`{"broadcast_id": "other", "translation": "stale text"}`,
		`{"broadcast_id": "bcast_1", "translation": "the Lord is good"}`,
		`{"broadcast_id": "bcast_1", "translation": "good all the time"}`,
	}, nil)
	defer srv.Close()

	rec := &fragmentRecorder{}
	c := NewStreamClient(srv.URL, nil, discardLogger())

	err := c.Open(context.Background(), StreamConfig{
		Language:    "en",
		BroadcastID: "bcast_1",
		ClientID:    "client_1",
	}, rec.handlers())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	waitFor(t, time.Second, func() bool {
		frags, _ := rec.snapshot()
		return len(frags) == 2
	}, "fragments never arrived")

	frags, statuses := rec.snapshot()
	if frags[0] != "the Lord is good" || frags[1] != "good all the time" {
		t.Errorf("fragments = %v", frags)
	}
	// Keepalives and cross-broadcast messages produce nothing.
	if len(frags) != 2 {
		t.Errorf("got %d fragments, want 2", len(frags))
	}
	if len(statuses) == 0 || statuses[0] != StreamConnected {
		t.Errorf("statuses = %v, want connected first", statuses)
	}
}

func TestStreamClient_SendsSessionIdentifiers(t *testing.T) {
	gotRequest := make(chan *http.Request, 1)
	srv := sseServer(t, nil, gotRequest)
	defer srv.Close()

	c := NewStreamClient(srv.URL, nil, discardLogger())
	err := c.Open(context.Background(), StreamConfig{
		Language:    "es",
		BroadcastID: "bcast_9",
		ClientID:    "client_9",
	}, StreamHandlers{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer c.Close()

	req := <-gotRequest
	if got := req.URL.Path; got != "/stream_translation/es" {
		t.Errorf("path = %q", got)
	}
	q := req.URL.Query()
	if q.Get("client_id") != "client_9" || q.Get("broadcast_id") != "bcast_9" || q.Get("role") != "listener" {
		t.Errorf("query = %v", q)
	}
}

func TestStreamClient_SurfacesConnectionLost(t *testing.T) {
	srv := sseServer(t, []string{`{"broadcast_id": "b", "translation": "hi"}`}, nil)
	defer srv.Close()

	rec := &fragmentRecorder{}
	c := NewStreamClient(srv.URL, nil, discardLogger())
	if err := c.Open(context.Background(), StreamConfig{Language: "en", BroadcastID: "b"}, rec.handlers()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// The server ends the stream after its canned payloads; that is a
	// transport loss from the client's point of view.
	waitFor(t, time.Second, func() bool {
		_, statuses := rec.snapshot()
		return len(statuses) == 2
	}, "lost status never surfaced")

	_, statuses := rec.snapshot()
	if statuses[1] != StreamLost {
		t.Errorf("statuses = %v, want lost second", statuses)
	}
}

func TestStreamClient_CloseSuppressesLostStatus(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	rec := &fragmentRecorder{}
	c := NewStreamClient(srv.URL, nil, discardLogger())
	if err := c.Open(context.Background(), StreamConfig{Language: "en", BroadcastID: "b"}, rec.handlers()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	c.Close()
	time.Sleep(50 * time.Millisecond)

	_, statuses := rec.snapshot()
	for _, s := range statuses {
		if s == StreamLost {
			t.Error("explicit Close must not surface a lost status")
		}
	}
}

func TestStreamClient_RejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such broadcast", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewStreamClient(srv.URL, nil, discardLogger())
	err := c.Open(context.Background(), StreamConfig{Language: "en", BroadcastID: "b"}, StreamHandlers{})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
