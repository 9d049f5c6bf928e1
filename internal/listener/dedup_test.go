package listener

import (
	"strings"
	"testing"
)

func TestDeduper_FirstFragmentPassesThrough(t *testing.T) {
	d := NewDeduper(DeduperConfig{})
	if got := d.Append("Hello"); got != "Hello" {
		t.Errorf("expected %q, got %q", "Hello", got)
	}
	if got := d.Transcript(); got != "Hello" {
		t.Errorf("transcript = %q, want %q", got, "Hello")
	}
}

func TestDeduper_StripsWordBoundaryOverlap(t *testing.T) {
	d := NewDeduper(DeduperConfig{})
	d.Append("the Lord is")

	got := d.Append("is good")
	if got != "good" {
		t.Errorf("delta = %q, want %q", got, "good")
	}
	if transcript := d.Transcript(); transcript != "the Lord is good" {
		t.Errorf("transcript = %q, want %q", transcript, "the Lord is good")
	}
}

func TestDeduper_GrowingPrefixResend(t *testing.T) {
	d := NewDeduper(DeduperConfig{})

	deltas := []string{}
	for _, frag := range []string{"Hello", "Hello world", "Hello world today"} {
		if delta := d.Append(frag); delta != "" {
			deltas = append(deltas, delta)
		}
	}

	want := []string{"Hello", "world", "today"}
	if len(deltas) != len(want) {
		t.Fatalf("deltas = %v, want %v", deltas, want)
	}
	for i := range want {
		if deltas[i] != want[i] {
			t.Errorf("delta[%d] = %q, want %q", i, deltas[i], want[i])
		}
	}
	if transcript := d.Transcript(); transcript != "Hello world today" {
		t.Errorf("transcript = %q, want %q", transcript, "Hello world today")
	}
}

func TestDeduper_IdenticalResendYieldsNothing(t *testing.T) {
	d := NewDeduper(DeduperConfig{})
	d.Append("peace be with you")
	if got := d.Append("peace be with you"); got != "" {
		t.Errorf("expected empty delta for identical resend, got %q", got)
	}
}

func TestDeduper_NoOverlapAppendsUnmodified(t *testing.T) {
	d := NewDeduper(DeduperConfig{})
	d.Append("grace and")
	if got := d.Append("mercy follow"); got != "mercy follow" {
		t.Errorf("delta = %q, want %q", got, "mercy follow")
	}
}

func TestDeduper_MidWordMatchRejected(t *testing.T) {
	d := NewDeduper(DeduperConfig{})
	d.Append("a blessing")

	// "g spoken" shares the single letter "g" with the previous fragment's
	// tail, but that boundary splits a word on both sides.
	if got := d.Append("g spoken"); got != "g spoken" {
		t.Errorf("delta = %q, want %q", got, "g spoken")
	}
}

func TestDeduper_OverlapWindowBounds(t *testing.T) {
	d := NewDeduper(DeduperConfig{OverlapWindow: 4})
	d.Append("sing unto the Lord")

	// The full overlap is longer than the window, so only a window-sized
	// tail can match; "Lord" fits.
	if got := d.Append("Lord a new song"); got != "a new song" {
		t.Errorf("delta = %q, want %q", got, "a new song")
	}
}

func TestDeduper_TranscriptTrimsOldestWords(t *testing.T) {
	d := NewDeduper(DeduperConfig{MaxWords: 10})

	for i := 0; i < 12; i++ {
		d.Append("word" + strings.Repeat("x", i))
	}

	words := strings.Fields(d.Transcript())
	if len(words) > 10 {
		t.Errorf("transcript holds %d words, cap is 10", len(words))
	}
	// The newest words survive.
	last := words[len(words)-1]
	if last != "word"+strings.Repeat("x", 11) {
		t.Errorf("newest word lost, got %q", last)
	}
}

func TestDeduper_Reset(t *testing.T) {
	d := NewDeduper(DeduperConfig{})
	d.Append("before reset")
	d.Reset()
	if got := d.Transcript(); got != "" {
		t.Errorf("transcript after reset = %q, want empty", got)
	}
	if got := d.Append("before reset"); got != "before reset" {
		t.Errorf("overlap state survived reset, delta = %q", got)
	}
}

func TestDeduper_UnicodeFragments(t *testing.T) {
	d := NewDeduper(DeduperConfig{})
	d.Append("Dios es")
	if got := d.Append("es fiel y justo"); got != "fiel y justo" {
		t.Errorf("delta = %q, want %q", got, "fiel y justo")
	}
	if transcript := d.Transcript(); transcript != "Dios es fiel y justo" {
		t.Errorf("transcript = %q", transcript)
	}
}
