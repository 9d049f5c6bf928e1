package listener

import (
	"strings"
	"sync"
	"unicode"
)

const (
	defaultOverlapWindow   = 50
	defaultTranscriptWords = 400
)

// Deduper reconciles the transcription stream's habit of re-sending a
// growing prefix of earlier text instead of pure deltas. Each incoming
// fragment is compared against the previous raw fragment and the shared
// overlap is stripped before the remainder joins the running transcript.
type Deduper struct {
	window   int
	maxWords int

	mu    sync.Mutex
	prev  []rune
	words []string
}

type DeduperConfig struct {
	// OverlapWindow bounds the overlap search, in characters.
	OverlapWindow int
	// MaxWords caps the running transcript; past it the oldest ~30% of
	// words are dropped. A display-size cap, not a correctness mechanism.
	MaxWords int
}

func NewDeduper(cfg DeduperConfig) *Deduper {
	window := cfg.OverlapWindow
	if window <= 0 {
		window = defaultOverlapWindow
	}
	maxWords := cfg.MaxWords
	if maxWords <= 0 {
		maxWords = defaultTranscriptWords
	}
	return &Deduper{window: window, maxWords: maxWords}
}

// Append ingests one raw fragment and returns the de-duplicated delta, or
// "" when the fragment adds nothing new.
func (d *Deduper) Append(fragment string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := []rune(fragment)
	prev := d.prev
	d.prev = next

	delta := strings.TrimSpace(string(stripOverlap(prev, next, d.window)))
	if delta == "" {
		return ""
	}

	d.words = append(d.words, strings.Fields(delta)...)
	if len(d.words) > d.maxWords {
		drop := len(d.words) * 3 / 10
		d.words = append([]string(nil), d.words[drop:]...)
	}

	return delta
}

// Transcript returns the running display text.
func (d *Deduper) Transcript() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.words, " ")
}

func (d *Deduper) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prev = nil
	d.words = nil
}

// stripOverlap finds the longest suffix of prev that is also a prefix of
// next, bounded by window and anchored at a whitespace boundary, and
// returns next with that overlap removed.
func stripOverlap(prev, next []rune, window int) []rune {
	if len(prev) == 0 || len(next) == 0 {
		return next
	}

	max := window
	if len(prev) < max {
		max = len(prev)
	}
	if len(next) < max {
		max = len(next)
	}

	for k := max; k > 0; k-- {
		if string(prev[len(prev)-k:]) != string(next[:k]) {
			continue
		}
		if !overlapAtBoundary(prev, next, k) {
			continue
		}
		return next[k:]
	}
	return next
}

// overlapAtBoundary rejects overlaps that would split a word: both ends of
// the overlap must sit at whitespace or a string edge.
func overlapAtBoundary(prev, next []rune, k int) bool {
	beforeOK := len(prev) == k || unicode.IsSpace(prev[len(prev)-k-1])
	afterOK := len(next) == k || unicode.IsSpace(next[k])
	return beforeOK && afterOK
}
