package audio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/velora/popdesk/internal/store"
)

// fakePlayer records played tones instead of touching an audio device.
type fakePlayer struct {
	mu     sync.Mutex
	tones  []float64
	closed bool
	err    error
}

func (p *fakePlayer) PlayTone(freq float64, d time.Duration, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.tones = append(p.tones, freq)
	return nil
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayer) playedTones() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64{}, p.tones...)
}

func newTestKV(t *testing.T) store.KV {
	t.Helper()

	kv, err := store.NewSQLiteKV(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func newTestChime(t *testing.T) (*Chime, *fakePlayer, *int) {
	t.Helper()

	player := &fakePlayer{}
	creations := 0
	chime := NewChimeWithPlayer(newTestKV(t), zap.NewNop(), func() (TonePlayer, error) {
		creations++
		return player, nil
	})
	t.Cleanup(chime.Stop)
	return chime, player, &creations
}

func TestVolumeClampHigh(t *testing.T) {
	chime, _, _ := newTestChime(t)

	assert.Equal(t, MaxVolume, chime.SetVolume(0.9))
	assert.Equal(t, MaxVolume, chime.Volume())
}

func TestVolumeClampLow(t *testing.T) {
	chime, _, _ := newTestChime(t)

	assert.Equal(t, 0.0, chime.SetVolume(-1))
	assert.Equal(t, 0.0, chime.Volume())
}

func TestVolumeDefault(t *testing.T) {
	chime, _, _ := newTestChime(t)

	assert.Equal(t, DefaultVolume, chime.Volume())
}

func TestVolumePersistsAcrossInstances(t *testing.T) {
	kv := newTestKV(t)
	log := zap.NewNop()
	factory := func() (TonePlayer, error) { return &fakePlayer{}, nil }

	first := NewChimeWithPlayer(kv, log, factory)
	first.SetVolume(0.4)

	second := NewChimeWithPlayer(kv, log, factory)
	assert.Equal(t, 0.4, second.Volume())
}

func TestVolumeCorruptPreferenceFallsBack(t *testing.T) {
	kv := newTestKV(t)
	require.NoError(t, kv.Set(store.KeyChimeVolume, "loud"))

	chime := NewChimeWithPlayer(kv, zap.NewNop(), func() (TonePlayer, error) {
		return &fakePlayer{}, nil
	})
	assert.Equal(t, DefaultVolume, chime.Volume())
}

func TestPlayIdempotent(t *testing.T) {
	chime, _, creations := newTestChime(t)

	chime.Play()
	chime.Play()
	chime.Play()

	assert.True(t, chime.Playing())
	assert.Equal(t, 1, *creations)
}

func TestPlayRingsTwoTones(t *testing.T) {
	chime, player, _ := newTestChime(t)

	chime.Play()

	assert.Eventually(t, func() bool {
		tones := player.playedTones()
		return len(tones) >= 2 && tones[0] == toneHigh && tones[1] == toneLow
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopReleasesPlayer(t *testing.T) {
	chime, player, _ := newTestChime(t)

	chime.Play()
	require.True(t, chime.Playing())

	chime.Stop()
	assert.False(t, chime.Playing())

	player.mu.Lock()
	closed := player.closed
	player.mu.Unlock()
	assert.True(t, closed)
}

func TestStopWhenNotPlaying(t *testing.T) {
	chime, _, _ := newTestChime(t)

	chime.Stop()
	assert.False(t, chime.Playing())
}

func TestPlayDeviceUnavailable(t *testing.T) {
	chime := NewChimeWithPlayer(newTestKV(t), zap.NewNop(), func() (TonePlayer, error) {
		return nil, errors.New("no audio device")
	})

	chime.Play()
	assert.False(t, chime.Playing())
}

// blockingPlayer holds PlayTone open until Close, mimicking a device-backed
// player with a tone in flight.
type blockingPlayer struct {
	started  chan struct{}
	closed   chan struct{}
	returned chan struct{}
	once     sync.Once
}

func newBlockingPlayer() *blockingPlayer {
	return &blockingPlayer{
		started:  make(chan struct{}, 1),
		closed:   make(chan struct{}),
		returned: make(chan struct{}, 2),
	}
}

func (p *blockingPlayer) PlayTone(freq float64, d time.Duration, volume float64) error {
	select {
	case p.started <- struct{}{}:
	default:
	}
	<-p.closed
	p.returned <- struct{}{}
	return errors.New("device closed")
}

func (p *blockingPlayer) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func TestStopUnblocksInFlightTone(t *testing.T) {
	player := newBlockingPlayer()
	chime := NewChimeWithPlayer(newTestKV(t), zap.NewNop(), func() (TonePlayer, error) {
		return player, nil
	})

	chime.Play()

	select {
	case <-player.started:
	case <-time.After(2 * time.Second):
		t.Fatal("tone never started")
	}

	// Stop closes the player mid-tone; PlayTone must return instead of
	// stranding the ring goroutine.
	chime.Stop()

	select {
	case <-player.returned:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight tone not released by Stop")
	}
	assert.False(t, chime.Playing())
}

func TestPlaybackFailureResetsPlayingFlag(t *testing.T) {
	player := &fakePlayer{err: errors.New("device lost")}
	chime := NewChimeWithPlayer(newTestKV(t), zap.NewNop(), func() (TonePlayer, error) {
		return player, nil
	})

	chime.Play()

	// The flag resets so a later Play is not permanently suppressed.
	assert.Eventually(t, func() bool {
		return !chime.Playing()
	}, 2*time.Second, 10*time.Millisecond)
}
