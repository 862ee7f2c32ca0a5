package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPendingAnnouncementProjectsFields(t *testing.T) {
	created := time.Date(2026, 8, 28, 17, 45, 0, 0, time.UTC)
	n := Notification{
		ID:               "n-9",
		Title:            "Quarterly all-hands",
		Message:          "Join at 16:00.",
		SenderName:       "Dana Ops",
		SenderRole:       "Platform Admin",
		NotificationType: NotificationGeneral,
		Priority:         PriorityHigh,
		AcceptanceStats:  AcceptanceStats{TotalUsers: 10, AcceptedCount: 4},
		CreatedAt:        created,
	}

	a := NewPendingAnnouncement(n, time.Now())

	assert.Equal(t, "n-9", a.NotificationID)
	assert.Equal(t, n.Title, a.Title)
	assert.Equal(t, n.Message, a.Message)
	assert.Equal(t, PriorityHigh, a.Priority)
	assert.Equal(t, 4, a.AcceptedCount)
	assert.False(t, a.IsAcknowledged)
	assert.Equal(t, created.Local().Format("2006-01-02 15:04"), a.Timestamp)
}

func TestNewPendingAnnouncementFallsBackToNow(t *testing.T) {
	now := time.Date(2026, 8, 28, 9, 30, 0, 0, time.Local)

	a := NewPendingAnnouncement(Notification{ID: "n-1"}, now)

	assert.Equal(t, "2026-08-28 09:30", a.Timestamp)
}

func TestIsComplete(t *testing.T) {
	assert.False(t, Notification{}.IsComplete())
	assert.False(t, Notification{
		AcceptanceStats: AcceptanceStats{TotalUsers: 5, AcceptedCount: 4},
	}.IsComplete())
	assert.True(t, Notification{
		AcceptanceStats: AcceptanceStats{TotalUsers: 5, AcceptedCount: 5},
	}.IsComplete())
}
