package listener

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sermoncast/sermoncast/internal/synthesis"
)

// fakePlayer records played clips and tracks concurrent playback.
type fakePlayer struct {
	mu            sync.Mutex
	played        []string
	playing       int
	maxConcurrent int
	stops         int
	closed        bool

	gate     chan struct{} // when non-nil, Play blocks until the gate closes
	playTime time.Duration
	err      error
}

func (p *fakePlayer) Play(ctx context.Context, data []byte) error {
	p.mu.Lock()
	p.playing++
	if p.playing > p.maxConcurrent {
		p.maxConcurrent = p.playing
	}
	p.played = append(p.played, string(data))
	gate := p.gate
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	if p.playTime > 0 {
		time.Sleep(p.playTime)
	}

	p.mu.Lock()
	p.playing--
	p.mu.Unlock()
	return p.err
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayer) playedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

// fakeSynth returns deterministic audio bytes per text and can fail
// selected texts.
type fakeSynth struct {
	mu       sync.Mutex
	calls    []synthesis.Request
	fail     map[string]bool
	delay    map[string]time.Duration
	inFlight int
	maxInFl  int
}

func (f *fakeSynth) Synthesize(ctx context.Context, req synthesis.Request) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.inFlight++
	if f.inFlight > f.maxInFl {
		f.maxInFl = f.inFlight
	}
	delay := f.delay[req.Text]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight--
	failed := f.fail[req.Text]
	f.mu.Unlock()

	if failed {
		return nil, errors.New("synthesis unavailable")
	}
	return []byte(req.Text), nil
}

func (f *fakeSynth) inFlightNow() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

func (f *fakeSynth) callTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Text
	}
	return out
}

// fakeSink collects clips handed over by the synthesis queue.
type fakeSink struct {
	mu    sync.Mutex
	clips []Clip
}

func (s *fakeSink) Enqueue(ctx context.Context, clip Clip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips = append(s.clips, clip)
}

func (s *fakeSink) collected() []Clip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Clip(nil), s.clips...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}
