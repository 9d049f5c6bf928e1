package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sermoncast/sermoncast/internal/shared"
	"github.com/sermoncast/sermoncast/internal/synthesis"
)

// SessionInfo carries the identifiers every stream-control and synthesis
// request reuses. ClientID is minted once per session and never changes.
type SessionInfo struct {
	ClientID    string
	BroadcastID string
	ChurchID    string
	UserID      string
}

func NewSessionInfo(broadcastID, churchID, userID string) SessionInfo {
	return SessionInfo{
		ClientID:    uuid.NewString(),
		BroadcastID: broadcastID,
		ChurchID:    churchID,
		UserID:      userID,
	}
}

type SessionConfig struct {
	BaseURL    string
	Info       SessionInfo
	TargetLang string
	SourceLang string
	// Gender is the broadcaster's, used to keep the translated voice
	// matched to the speaker.
	Gender shared.Gender

	Player Player
	Synth  synthesis.Synthesizer
	HTTP   *http.Client
	Log    *slog.Logger

	Dedup    DeduperConfig
	Playback PlaybackConfig
	ErrorTTL time.Duration

	OnTranscript    func(transcript string)
	OnStatus        func(StreamStatus)
	OnError         func(msg string)
	OnPlaybackStart func(text string, seq int)
	OnPlaybackEnd   func(seq int)
}

// Session is one listener's live-sermon pipeline: stream client feeding the
// de-duplicator, de-duplicated deltas feeding the synthesis queue, clips
// feeding the playback manager.
type Session struct {
	baseURL string
	info    SessionInfo
	lang    string
	http    *http.Client
	log     *slog.Logger

	stream   *StreamClient
	dedup    *Deduper
	queue    *SynthQueue
	playback *PlaybackManager
	player   Player

	onTranscript func(string)
	onStatus     func(StreamStatus)
}

func NewSession(cfg SessionConfig) *Session {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "session", "broadcast_id", cfg.Info.BroadcastID)

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	playbackCfg := cfg.Playback
	playbackCfg.Player = cfg.Player
	playbackCfg.OnStart = cfg.OnPlaybackStart
	playbackCfg.OnEnd = cfg.OnPlaybackEnd
	playbackCfg.Log = log

	s := &Session{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		info:         cfg.Info,
		lang:         cfg.TargetLang,
		http:         httpClient,
		log:          log,
		stream:       NewStreamClient(cfg.BaseURL, httpClient, log),
		dedup:        NewDeduper(cfg.Dedup),
		playback:     NewPlaybackManager(playbackCfg),
		player:       cfg.Player,
		onTranscript: cfg.OnTranscript,
		onStatus:     cfg.OnStatus,
	}

	s.queue = NewSynthQueue(SynthQueueConfig{
		Synth:       cfg.Synth,
		Sink:        s.playback,
		TargetLang:  cfg.TargetLang,
		SourceLang:  cfg.SourceLang,
		Gender:      cfg.Gender,
		ChurchID:    cfg.Info.ChurchID,
		BroadcastID: cfg.Info.BroadcastID,
		OnError:     cfg.OnError,
		ErrorTTL:    cfg.ErrorTTL,
		Log:         log,
	})

	return s
}

// Start registers the listener server-side and opens the translation stream.
func (s *Session) Start(ctx context.Context) error {
	if err := s.postLifecycle(ctx, "/start_stream"); err != nil {
		return err
	}
	return s.openStream(ctx)
}

// SetLanguage is the one sanctioned reconnect path: it tears the stream
// down and reopens it for the new target language.
func (s *Session) SetLanguage(ctx context.Context, lang string) error {
	s.stream.Close()
	s.playback.Clear()
	s.dedup.Reset()
	s.queue.clearPending()
	s.lang = lang
	s.queue.setLanguage(lang)
	return s.openStream(ctx)
}

// Restart reopens the stream after a "connection lost" status. Only ever
// triggered by an explicit user action.
func (s *Session) Restart(ctx context.Context) error {
	s.stream.Close()
	return s.openStream(ctx)
}

// Stop tears the session down: stream closed, backlog abandoned, player
// released, listener deregistered. In-flight work is left to finish or fail
// on its own.
func (s *Session) Stop(ctx context.Context) error {
	s.stream.Close()
	s.playback.Clear()
	if s.player != nil {
		if err := s.player.Close(); err != nil {
			s.log.Warn("player close failed", "error", err)
		}
	}
	return s.postLifecycle(ctx, "/stop_stream")
}

// Transcript returns the current running display text.
func (s *Session) Transcript() string {
	return s.dedup.Transcript()
}

func (s *Session) openStream(ctx context.Context) error {
	cfg := StreamConfig{
		Language:    s.lang,
		BroadcastID: s.info.BroadcastID,
		ClientID:    s.info.ClientID,
	}
	return s.stream.Open(ctx, cfg, StreamHandlers{
		OnFragment: func(text string) { s.handleFragment(ctx, text) },
		OnStatus:   s.onStatus,
	})
}

func (s *Session) handleFragment(ctx context.Context, text string) {
	delta := s.dedup.Append(text)
	if delta == "" {
		return
	}
	if s.onTranscript != nil {
		s.onTranscript(s.dedup.Transcript())
	}
	s.queue.Enqueue(ctx, delta)
}

func (s *Session) postLifecycle(ctx context.Context, path string) error {
	payload, err := json.Marshal(map[string]string{
		"clientId":    s.info.ClientID,
		"role":        shared.RoleListener.String(),
		"broadcastId": s.info.BroadcastID,
		"churchId":    s.info.ChurchID,
	})
	if err != nil {
		return fmt.Errorf("encode lifecycle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build lifecycle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}
