package listener

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sermoncast/sermoncast/internal/shared"
	"github.com/sermoncast/sermoncast/internal/synthesis"
	"github.com/sermoncast/sermoncast/internal/voices"
)

const defaultErrorTTL = 4 * time.Second

// SynthJob pairs a de-duplicated fragment with the per-session sequence id
// that later correlates its playback to the transcript.
type SynthJob struct {
	Text string
	Seq  int
}

// PlaybackSink receives synthesized clips. Satisfied by PlaybackManager.
type PlaybackSink interface {
	Enqueue(ctx context.Context, clip Clip)
}

type SynthQueueConfig struct {
	Synth       synthesis.Synthesizer
	Sink        PlaybackSink
	TargetLang  string
	SourceLang  string
	Gender      shared.Gender
	ChurchID    string
	BroadcastID string
	// OnError surfaces a transient synthesis failure to the UI; it is
	// called again with "" when the banner should clear.
	OnError  func(msg string)
	ErrorTTL time.Duration
	Log      *slog.Logger
}

// SynthQueue serializes speech synthesis: jobs are processed strictly in
// enqueue order, one remote call in flight at a time. A failed job is
// dropped, never retried, and never blocks its successors.
type SynthQueue struct {
	synth       synthesis.Synthesizer
	sink        PlaybackSink
	targetLang  string
	sourceLang  string
	gender      shared.Gender
	churchID    string
	broadcastID string
	onError     func(string)
	errorTTL    time.Duration
	log         *slog.Logger

	mu       sync.Mutex
	queue    []SynthJob
	inFlight bool
	nextSeq  int
	gen      int
	lastErr  string
	errTimer *time.Timer
}

func NewSynthQueue(cfg SynthQueueConfig) *SynthQueue {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	errorTTL := cfg.ErrorTTL
	if errorTTL <= 0 {
		errorTTL = defaultErrorTTL
	}
	return &SynthQueue{
		synth:       cfg.Synth,
		sink:        cfg.Sink,
		targetLang:  cfg.TargetLang,
		sourceLang:  cfg.SourceLang,
		gender:      cfg.Gender,
		churchID:    cfg.ChurchID,
		broadcastID: cfg.BroadcastID,
		onError:     cfg.OnError,
		errorTTL:    errorTTL,
		log:         log.With("component", "synth_queue"),
	}
}

// Enqueue accepts one fragment and returns its sequence id.
func (q *SynthQueue) Enqueue(ctx context.Context, text string) int {
	q.mu.Lock()
	seq := q.nextSeq
	q.nextSeq++
	q.queue = append(q.queue, SynthJob{Text: text, Seq: seq})
	start := !q.inFlight
	if start {
		q.inFlight = true
	}
	q.mu.Unlock()

	if start {
		go q.drain(ctx)
	}
	return seq
}

func (q *SynthQueue) drain(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.inFlight = false
			q.mu.Unlock()
			return
		}
		job := q.queue[0]
		q.queue = q.queue[1:]
		targetLang := q.targetLang
		gen := q.gen
		q.mu.Unlock()

		if ctx.Err() != nil {
			q.mu.Lock()
			q.queue = nil
			q.inFlight = false
			q.mu.Unlock()
			return
		}

		voiceID := voices.Resolve(targetLang, q.sourceLang, q.gender)

		audio, err := q.synth.Synthesize(ctx, synthesis.Request{
			Text:        job.Text,
			Language:    targetLang,
			VoiceID:     voiceID,
			ChurchID:    q.churchID,
			BroadcastID: q.broadcastID,
		})
		if err != nil {
			q.log.Error("synthesis failed, dropping job", "seq", job.Seq, "error", err)
			q.reportError("speech synthesis failed")
			continue
		}

		q.mu.Lock()
		stale := q.gen != gen
		q.mu.Unlock()
		// The queue was cleared while this job was in flight; its clip
		// belongs to the old language and is dropped.
		if stale {
			continue
		}

		q.sink.Enqueue(ctx, Clip{Data: audio, Text: job.Text, Seq: job.Seq})
	}
}

// clearPending abandons every queued job and marks the in-flight one, if
// any, so its result is discarded.
func (q *SynthQueue) clearPending() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = nil
	q.gen++
}

func (q *SynthQueue) reportError(msg string) {
	q.mu.Lock()
	q.lastErr = msg
	if q.errTimer != nil {
		q.errTimer.Stop()
	}
	q.errTimer = time.AfterFunc(q.errorTTL, q.clearError)
	onError := q.onError
	q.mu.Unlock()

	if onError != nil {
		onError(msg)
	}
}

func (q *SynthQueue) clearError() {
	q.mu.Lock()
	q.lastErr = ""
	onError := q.onError
	q.mu.Unlock()

	if onError != nil {
		onError("")
	}
}

// Err returns the currently displayed transient error, if any.
func (q *SynthQueue) Err() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

func (q *SynthQueue) setLanguage(lang string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.targetLang = lang
}

func (q *SynthQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}
