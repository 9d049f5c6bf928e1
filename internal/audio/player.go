// Package audio implements the listener's speaker output on top of beep.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
)

// Player decodes MPEG clips and plays them through the default output
// device. The speaker is initialized lazily from the first clip's sample
// rate and owned for the lifetime of one listening session.
type Player struct {
	mu          sync.Mutex
	sampleRate  beep.SampleRate
	initialized bool
	closed      bool
}

func NewPlayer() *Player {
	return &Player{}
}

// Play blocks until the clip finishes sounding, the context is cancelled,
// or decoding fails.
func (p *Player) Play(ctx context.Context, data []byte) error {
	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return fmt.Errorf("decode clip: %w", err)
	}
	defer streamer.Close()

	if err := p.ensureSpeaker(format.SampleRate); err != nil {
		return err
	}

	var src beep.Streamer = streamer
	if format.SampleRate != p.sampleRate {
		src = beep.Resample(4, format.SampleRate, p.sampleRate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(src, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Stop cuts whatever is currently sounding.
func (p *Player) Stop() {
	p.mu.Lock()
	initialized := p.initialized
	p.mu.Unlock()

	if initialized {
		speaker.Clear()
	}
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.initialized {
		speaker.Close()
	}
	return nil
}

func (p *Player) ensureSpeaker(rate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("player is closed")
	}
	if p.initialized {
		return nil
	}
	if err := speaker.Init(rate, rate.N(playbackBufferLen)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	p.sampleRate = rate
	p.initialized = true
	return nil
}
