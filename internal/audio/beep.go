package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/speaker"
)

const sampleRate = beep.SampleRate(44100)

// rampDuration is the length of the fade-in/out applied to each tone so the
// chime does not click.
const rampDuration = 20 * time.Millisecond

// beepPlayer plays tones through the platform audio device via the beep
// speaker. Each player owns one speaker initialization.
type beepPlayer struct {
	closeOnce sync.Once
	closed    chan struct{}
}

// newBeepPlayer initializes the speaker and returns a player bound to it.
func newBeepPlayer() (TonePlayer, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(50*time.Millisecond)); err != nil {
		return nil, fmt.Errorf("initializing speaker: %w", err)
	}
	return &beepPlayer{closed: make(chan struct{})}, nil
}

// PlayTone synthesizes a sine tone with a fade envelope and blocks until
// playback completes.
func (p *beepPlayer) PlayTone(freq float64, d time.Duration, volume float64) error {
	tone, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		return fmt.Errorf("generating %0.f Hz tone: %w", freq, err)
	}

	total := sampleRate.N(d)
	shaped := fadeInOut(beep.Take(total, tone), sampleRate.N(rampDuration), total)

	gain := &effects.Volume{
		Streamer: shaped,
		Base:     2,
		Volume:   volumeGain(volume),
		Silent:   volume <= 0,
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(gain, beep.Callback(func() {
		close(done)
	})))

	// Close drains the speaker queue, which drops the callback above, so an
	// interrupted tone would otherwise block here forever.
	select {
	case <-done:
	case <-p.closed:
	}

	return nil
}

// Close silences the speaker, releases the audio device, and unblocks any
// in-flight PlayTone.
func (p *beepPlayer) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		speaker.Clear()
		speaker.Close()
	})
	return nil
}

// volumeGain maps a linear volume in (0, MaxVolume] onto the exponential
// gain scale used by effects.Volume, with MaxVolume as unity gain.
func volumeGain(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log2(v / MaxVolume)
}

// fadeInOut wraps a finite streamer of total samples with a linear gain ramp
// of ramp samples at both ends.
func fadeInOut(s beep.Streamer, ramp, total int) beep.Streamer {
	if ramp <= 0 {
		return s
	}

	pos := 0
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		n, ok := s.Stream(samples)
		for i := 0; i < n; i++ {
			gain := 1.0
			if pos < ramp {
				gain = float64(pos) / float64(ramp)
			}
			if rem := total - pos; rem < ramp {
				gain = float64(rem) / float64(ramp)
			}
			samples[i][0] *= gain
			samples[i][1] *= gain
			pos++
		}
		return n, ok
	})
}
