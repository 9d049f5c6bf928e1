package listener

import (
	"context"
	"log/slog"
	"sync"
)

const (
	defaultMaxDepth   = 5
	defaultKeepRecent = 3
)

// Clip is one synthesized audio segment awaiting playback, tagged with the
// text and sequence id that produced it so the UI can highlight along.
type Clip struct {
	Data []byte
	Text string
	Seq  int
}

// Player abstracts the audio output. Play blocks until the clip's natural
// end; Stop cuts whatever is currently sounding.
type Player interface {
	Play(ctx context.Context, data []byte) error
	Stop()
	Close() error
}

type PlaybackConfig struct {
	Player Player
	// MaxDepth is the enqueue threshold past which the backlog is
	// truncated to the KeepRecent newest clips, trading completeness for
	// latency.
	MaxDepth   int
	KeepRecent int
	OnStart    func(text string, seq int)
	OnEnd      func(seq int)
	Log        *slog.Logger
}

// PlaybackManager is a single-consumer FIFO over clips. At most one clip is
// sounding at any time; the drain goroutine is the only code that touches
// the player.
type PlaybackManager struct {
	player     Player
	maxDepth   int
	keepRecent int
	onStart    func(text string, seq int)
	onEnd      func(seq int)
	log        *slog.Logger

	mu         sync.Mutex
	queue      []Clip
	processing bool
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewPlaybackManager(cfg PlaybackConfig) *PlaybackManager {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	keepRecent := cfg.KeepRecent
	if keepRecent <= 0 {
		keepRecent = defaultKeepRecent
	}
	return &PlaybackManager{
		player:     cfg.Player,
		maxDepth:   maxDepth,
		keepRecent: keepRecent,
		onStart:    cfg.OnStart,
		onEnd:      cfg.OnEnd,
		log:        log.With("component", "playback"),
	}
}

func (m *PlaybackManager) Enqueue(ctx context.Context, clip Clip) {
	m.mu.Lock()
	m.queue = append(m.queue, clip)
	if len(m.queue) > m.maxDepth {
		dropped := len(m.queue) - m.keepRecent
		m.queue = append([]Clip(nil), m.queue[dropped:]...)
		m.log.Debug("playback backlog truncated", "dropped", dropped)
	}
	start := !m.processing
	var drainCtx context.Context
	if start {
		m.processing = true
		m.ctx, m.cancel = context.WithCancel(ctx)
		drainCtx = m.ctx
	}
	m.mu.Unlock()

	if start {
		go m.drain(drainCtx)
	}
}

func (m *PlaybackManager) drain(ctx context.Context) {
	for {
		// A cancelled drain hands the queue to its successor untouched.
		if ctx.Err() != nil {
			return
		}

		m.mu.Lock()
		if len(m.queue) == 0 {
			m.processing = false
			cancel := m.cancel
			m.cancel = nil
			m.mu.Unlock()
			// Release the context derived for this drain.
			if cancel != nil {
				cancel()
			}
			return
		}
		clip := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		m.player.Stop()

		if m.onStart != nil {
			m.onStart(clip.Text, clip.Seq)
		}

		if err := m.player.Play(ctx, clip.Data); err != nil {
			m.log.Error("clip playback failed", "seq", clip.Seq, "error", err)
		}

		// Fires even after a decode/play error so the UI never stays
		// highlighting stale text.
		if m.onEnd != nil {
			m.onEnd(clip.Seq)
		}
	}
}

// Clear abandons the backlog and stops the current clip.
func (m *PlaybackManager) Clear() {
	m.mu.Lock()
	m.queue = nil
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.processing = false
	m.mu.Unlock()

	m.player.Stop()
}

func (m *PlaybackManager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *PlaybackManager) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processing || len(m.queue) > 0
}
