package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type lifecycleRecorder struct {
	mu     sync.Mutex
	starts []map[string]string
	stops  []map[string]string
}

func (l *lifecycleRecorder) record(r *http.Request, into *[]map[string]string) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	l.mu.Lock()
	*into = append(*into, body)
	l.mu.Unlock()
}

func newRelayStub(t *testing.T, lifecycle *lifecycleRecorder, fragments []string, hold <-chan struct{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/start_stream", func(w http.ResponseWriter, r *http.Request) {
		lifecycle.record(r, &lifecycle.starts)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/stop_stream", func(w http.ResponseWriter, r *http.Request) {
		lifecycle.record(r, &lifecycle.stops)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/stream_translation/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, p := range fragments {
			fmt.Fprintf(w, "data: %s\n\n", p)
			flusher.Flush()
		}
		if hold != nil {
			<-hold
		}
	})
	return httptest.NewServer(mux)
}

func TestSession_EndToEnd(t *testing.T) {
	lifecycle := &lifecycleRecorder{}
	hold := make(chan struct{})

	srv := newRelayStub(t, lifecycle, []string{
		`{"broadcast_id": "bcast_1", "translation": "Hello"}`,
		`{"broadcast_id": "bcast_1", "translation": "Hello world"}`,
		`{"keepalive": true}`,
		`{"broadcast_id": "bcast_1", "translation": "Hello world today"}`,
	}, hold)
	defer srv.Close()
	defer close(hold)

	synth := &fakeSynth{}
	player := &fakePlayer{}

	var mu sync.Mutex
	var transcript string
	sess := NewSession(SessionConfig{
		BaseURL:    srv.URL,
		Info:       NewSessionInfo("bcast_1", "church_1", "user_1"),
		TargetLang: "en",
		SourceLang: "en",
		Player:     player,
		Synth:      synth,
		Log:        discardLogger(),
		OnTranscript: func(text string) {
			mu.Lock()
			transcript = text
			mu.Unlock()
		},
	})

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(player.playedTexts()) == 3 }, "clips never played")

	// The keepalive and the re-sent prefixes produce no extra jobs.
	calls := synth.callTexts()
	want := []string{"Hello", "world", "today"}
	if len(calls) != 3 {
		t.Fatalf("synthesis calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, calls[i], want[i])
		}
	}

	played := player.playedTexts()
	for i := range want {
		if played[i] != want[i] {
			t.Errorf("played[%d] = %q, want %q", i, played[i], want[i])
		}
	}

	mu.Lock()
	finalTranscript := transcript
	mu.Unlock()
	if finalTranscript != "Hello world today" {
		t.Errorf("transcript = %q, want %q", finalTranscript, "Hello world today")
	}

	if err := sess.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	lifecycle.mu.Lock()
	defer lifecycle.mu.Unlock()
	if len(lifecycle.starts) != 1 || len(lifecycle.stops) != 1 {
		t.Fatalf("lifecycle calls: %d starts, %d stops", len(lifecycle.starts), len(lifecycle.stops))
	}
	start := lifecycle.starts[0]
	if start["role"] != "listener" || start["broadcastId"] != "bcast_1" || start["churchId"] != "church_1" {
		t.Errorf("start_stream body = %v", start)
	}
	if start["clientId"] == "" {
		t.Error("start_stream missing clientId")
	}
	if !player.closed {
		t.Error("player not released on Stop")
	}
}

func TestSession_ClientIDStableAcrossCalls(t *testing.T) {
	lifecycle := &lifecycleRecorder{}
	srv := newRelayStub(t, lifecycle, nil, nil)
	defer srv.Close()

	sess := NewSession(SessionConfig{
		BaseURL: srv.URL,
		Info:    NewSessionInfo("bcast_1", "church_1", ""),
		Player:  &fakePlayer{},
		Synth:   &fakeSynth{},
		Log:     discardLogger(),
	})

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sess.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	lifecycle.mu.Lock()
	defer lifecycle.mu.Unlock()
	if lifecycle.starts[0]["clientId"] != lifecycle.stops[0]["clientId"] {
		t.Error("clientId changed between start_stream and stop_stream")
	}
}

func TestNewSessionInfo_MintsClientID(t *testing.T) {
	a := NewSessionInfo("b", "c", "u")
	b := NewSessionInfo("b", "c", "u")
	if a.ClientID == "" {
		t.Fatal("empty ClientID")
	}
	if a.ClientID == b.ClientID {
		t.Error("ClientID must be unique per session")
	}
	if a.BroadcastID != "b" || a.ChurchID != "c" || a.UserID != "u" {
		t.Errorf("identifiers not carried: %+v", a)
	}
}
