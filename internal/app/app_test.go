package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/velora/popdesk/internal/api"
	"github.com/velora/popdesk/internal/audio"
	"github.com/velora/popdesk/internal/model"
	"github.com/velora/popdesk/internal/poll"
	"github.com/velora/popdesk/internal/session"
	"github.com/velora/popdesk/internal/store"
	"github.com/velora/popdesk/tests/testutil"
)

// silentPlayer keeps the chime off the audio device.
type silentPlayer struct{}

func (silentPlayer) PlayTone(float64, time.Duration, float64) error { return nil }
func (silentPlayer) Close() error                                   { return nil }

func newTestApp(t *testing.T) (Model, *store.AnnouncementStore) {
	t.Helper()

	kv := testutil.NewTestKV(t)
	log := zap.NewNop()
	announcements := store.NewAnnouncementStore(kv)
	chime := audio.NewChimeWithPlayer(kv, log, func() (audio.TonePlayer, error) {
		return silentPlayer{}, nil
	})
	t.Cleanup(chime.Stop)

	sess := session.New("user-7", kv)
	notifications := api.NewNotificationService(api.NewClient("http://127.0.0.1:0", "token"))
	poller := poll.New(notifications, sess, announcements, kv, chime, log, poll.Options{})
	t.Cleanup(poller.Stop)

	return New(announcements, notifications, poller, chime, sess, log), announcements
}

func pending() model.PendingAnnouncement {
	return model.PendingAnnouncement{
		NotificationID: "n-1",
		Title:          "Maintenance window",
		Message:        "Back at 02:00 UTC.",
		Timestamp:      "2026-08-28 18:00",
	}
}

func TestRestorePendingReloadsSlot(t *testing.T) {
	m, announcements := newTestApp(t)
	require.NoError(t, announcements.Save(pending()))

	msg := m.restorePending()
	restored, ok := msg.(restoredAnnouncementMsg)
	require.True(t, ok)
	assert.Equal(t, "n-1", restored.announcement.NotificationID)
}

func TestRestorePendingEmptySlot(t *testing.T) {
	m, _ := newTestApp(t)
	assert.Nil(t, m.restorePending())
}

// A restored announcement never came over the poller's result channel, so
// handling it must not subscribe an extra reader there; only genuine poller
// messages re-subscribe.
func TestRestoredAnnouncementDoesNotResubscribe(t *testing.T) {
	m, _ := newTestApp(t)

	updated, cmd := m.Update(restoredAnnouncementMsg{announcement: pending()})
	m = updated.(Model)

	assert.Nil(t, cmd)
	assert.True(t, m.modal.Visible())
	assert.True(t, m.chime.Playing())
}

func TestShowAnnouncementResubscribes(t *testing.T) {
	m, _ := newTestApp(t)

	updated, cmd := m.Update(poll.ShowAnnouncementMsg{Announcement: pending()})
	m = updated.(Model)

	assert.NotNil(t, cmd)
	assert.True(t, m.modal.Visible())
}
