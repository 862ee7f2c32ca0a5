package audio

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/velora/popdesk/internal/store"
)

const (
	// toneHigh and toneLow are the frequencies of the two-tone alert.
	toneHigh = 880.0
	toneLow  = 660.0

	// toneDuration is the length of each tone; toneGap separates them.
	toneDuration = 250 * time.Millisecond
	toneGap      = 300 * time.Millisecond

	// repeatInterval is how often the chime re-fires until stopped.
	repeatInterval = 7 * time.Second

	// MaxVolume caps the chime volume; DefaultVolume is used when no
	// preference is stored.
	MaxVolume     = 0.5
	DefaultVolume = 0.3
)

// TonePlayer produces a single audible tone. It abstracts the platform
// audio device so the chime logic is testable without one.
type TonePlayer interface {
	// PlayTone plays a sine tone of the given frequency and duration at the
	// given volume (0..MaxVolume), blocking until it finishes.
	PlayTone(freq float64, d time.Duration, volume float64) error

	// Close releases the audio device.
	Close() error
}

// Chime is a repeating two-tone audible alert. Play is idempotent while
// already playing, so triggers that fire close together cannot stack chimes.
// The volume preference is persisted through the KV store.
type Chime struct {
	kv        store.KV
	log       *zap.Logger
	newPlayer func() (TonePlayer, error)

	mu      sync.Mutex
	playing bool
	player  TonePlayer
	stopCh  chan struct{}
}

// NewChime creates a chime using the platform audio device.
func NewChime(kv store.KV, log *zap.Logger) *Chime {
	return &Chime{kv: kv, log: log, newPlayer: newBeepPlayer}
}

// NewChimeWithPlayer creates a chime with a custom tone player factory.
func NewChimeWithPlayer(
	kv store.KV,
	log *zap.Logger,
	newPlayer func() (TonePlayer, error),
) *Chime {
	return &Chime{kv: kv, log: log, newPlayer: newPlayer}
}

// Play starts the repeating alert. A second call while playing is a no-op.
// An unavailable audio device is logged, never surfaced: the chime simply
// stays silent and a later Play may try again.
func (c *Chime) Play() {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return
	}

	player, err := c.newPlayer()
	if err != nil {
		c.mu.Unlock()
		c.log.Warn("audio device unavailable", zap.Error(err))
		return
	}

	c.playing = true
	c.player = player
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	go c.loop(player, stopCh)
}

// Stop cancels the repeat timer, silences any in-flight tone, and releases
// the audio device. Safe to call when not playing.
func (c *Chime) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}

	close(c.stopCh)
	if err := c.player.Close(); err != nil {
		c.log.Warn("closing audio device", zap.Error(err))
	}
	c.player = nil
	c.playing = false
}

// Playing reports whether the chime is currently active.
func (c *Chime) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// SetVolume clamps v to [0, MaxVolume] and persists it as the preferred
// chime volume. It returns the clamped value.
func (c *Chime) SetVolume(v float64) float64 {
	v = clampVolume(v)
	if err := c.kv.Set(store.KeyChimeVolume, strconv.FormatFloat(v, 'f', -1, 64)); err != nil {
		c.log.Warn("persisting chime volume", zap.Error(err))
	}
	return v
}

// Volume returns the persisted volume preference, clamped, or DefaultVolume
// when no valid preference is stored.
func (c *Chime) Volume() float64 {
	raw, err := c.kv.Get(store.KeyChimeVolume)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultVolume
	}
	if err != nil {
		c.log.Warn("reading chime volume", zap.Error(err))
		return DefaultVolume
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return DefaultVolume
	}
	return clampVolume(v)
}

// loop rings immediately, then re-fires on the repeat interval until the
// stop channel closes or the device fails.
func (c *Chime) loop(player TonePlayer, stopCh chan struct{}) {
	if !c.ring(player, stopCh) {
		return
	}

	ticker := time.NewTicker(repeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !c.ring(player, stopCh) {
				return
			}
		}
	}
}

// ring plays the two-tone sequence once. It returns false when the loop
// should end, either because Stop was called or the device failed.
func (c *Chime) ring(player TonePlayer, stopCh chan struct{}) bool {
	volume := c.Volume()

	if err := player.PlayTone(toneHigh, toneDuration, volume); err != nil {
		c.fail(err)
		return false
	}

	select {
	case <-stopCh:
		return false
	case <-time.After(toneGap):
	}

	if err := player.PlayTone(toneLow, toneDuration, volume); err != nil {
		c.fail(err)
		return false
	}

	return true
}

// fail logs a playback error and resets the playing flag so a later Play
// is not permanently suppressed.
func (c *Chime) fail(err error) {
	c.log.Warn("chime playback failed", zap.Error(err))

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}
	if c.player != nil {
		_ = c.player.Close()
	}
	c.player = nil
	c.playing = false
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}
