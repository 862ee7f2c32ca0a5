package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora/popdesk/internal/model"
)

func sampleAnnouncement() model.PendingAnnouncement {
	return model.PendingAnnouncement{
		NotificationID:   "notif-42",
		Title:            "Maintenance window",
		Message:          "The CRM will be unavailable on Saturday night.",
		SenderName:       "Dana Ops",
		SenderRole:       "Platform Admin",
		Priority:         model.PriorityHigh,
		NotificationType: model.NotificationGeneral,
		Timestamp:        "2026-08-28 18:00",
	}
}

func TestAnnouncementRoundTrip(t *testing.T) {
	kv := newTestKV(t)
	saved := sampleAnnouncement()

	s := NewAnnouncementStore(kv)
	require.NoError(t, s.Save(saved))

	// A fresh store over the same KV simulates a restart.
	restarted := NewAnnouncementStore(kv)
	loaded, err := restarted.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, saved.NotificationID, loaded.NotificationID)
	assert.Equal(t, saved.Title, loaded.Title)
	assert.Equal(t, saved.Message, loaded.Message)
	assert.Equal(t, saved.Timestamp, loaded.Timestamp)
	assert.Equal(t, loaded, restarted.Current())
}

func TestAnnouncementSingleSlot(t *testing.T) {
	kv := newTestKV(t)
	s := NewAnnouncementStore(kv)

	first := sampleAnnouncement()
	second := sampleAnnouncement()
	second.NotificationID = "notif-43"
	second.Title = "Updated policy"

	require.NoError(t, s.Save(first))
	require.NoError(t, s.Save(second))

	assert.Equal(t, "notif-43", s.Current().NotificationID)

	loaded, err := NewAnnouncementStore(kv).Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "notif-43", loaded.NotificationID)
}

func TestAnnouncementLoadEmpty(t *testing.T) {
	s := NewAnnouncementStore(newTestKV(t))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
	assert.Nil(t, s.Current())
}

func TestAnnouncementLoadCorruptDiscards(t *testing.T) {
	kv := newTestKV(t)
	require.NoError(t, kv.Set(KeyPendingAnnouncement, "{not json"))

	s := NewAnnouncementStore(kv)
	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// The corrupt entry is gone, not just ignored.
	_, err = kv.Get(KeyPendingAnnouncement)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnnouncementCurrentReturnsCopy(t *testing.T) {
	s := NewAnnouncementStore(newTestKV(t))
	require.NoError(t, s.Save(sampleAnnouncement()))

	got := s.Current()
	require.NotNil(t, got)
	got.Title = "scribbled over"

	assert.Equal(t, "Maintenance window", s.Current().Title)
}

// The slot is written by the poll goroutine while the UI event loop clears
// and reads it. Run the two sides concurrently; the race detector flags any
// unsynchronized access to the in-memory value.
func TestAnnouncementConcurrentAccess(t *testing.T) {
	s := NewAnnouncementStore(newTestKV(t))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.Save(sampleAnnouncement())
			_ = s.Current()
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = s.Clear()
			_, _ = s.Load()
		}
	}()

	wg.Wait()

	// Whatever interleaving happened, the slot must be coherent: either
	// empty or holding the one announcement that was ever saved.
	if cur := s.Current(); cur != nil {
		assert.Equal(t, "notif-42", cur.NotificationID)
	}
}

func TestAnnouncementClearIdempotent(t *testing.T) {
	kv := newTestKV(t)
	s := NewAnnouncementStore(kv)

	require.NoError(t, s.Save(sampleAnnouncement()))
	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())

	assert.Nil(t, s.Current())
	_, err := kv.Get(KeyPendingAnnouncement)
	assert.ErrorIs(t, err, ErrNotFound)
}
