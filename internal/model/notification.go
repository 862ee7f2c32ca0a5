package model

import "time"

// Priority is the display priority of a broadcast notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// NotificationType distinguishes ordinary broadcasts from ones that force
// a logout when acknowledged.
type NotificationType string

const (
	NotificationGeneral NotificationType = "general"
	NotificationLogout  NotificationType = "logout"
)

// AcceptanceStats tracks how many recipients have acknowledged a broadcast.
type AcceptanceStats struct {
	TotalUsers    int `json:"total_users"`
	AcceptedCount int `json:"accepted_count"`
}

// Notification is a server-owned broadcast record as returned by the
// CRM backend's my-notifications endpoint.
type Notification struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	SenderName       string           `json:"sender_name"`
	SenderRole       string           `json:"sender_role"`
	NotificationType NotificationType `json:"notification_type"`
	Priority         Priority         `json:"priority"`
	AcceptanceStats  AcceptanceStats  `json:"acceptance_stats"`
	IsActive         bool             `json:"is_active"`
	Version          int              `json:"version"`
	CreatedAt        time.Time        `json:"created_at"`
}

// IsComplete reports whether every targeted recipient has acknowledged.
func (n Notification) IsComplete() bool {
	return n.AcceptanceStats.TotalUsers > 0 &&
		n.AcceptanceStats.AcceptedCount >= n.AcceptanceStats.TotalUsers
}

// PendingAnnouncement is the client-owned projection of the single
// notification currently being shown to the user. It is persisted so a
// restart cannot lose an unacknowledged broadcast.
//
// NotificationID is the sole identity used when deciding whether the
// announcement on screen still matches the server's active set; title and
// message equality are never checked.
type PendingAnnouncement struct {
	NotificationID   string           `json:"notification_id"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	SenderName       string           `json:"sender_name"`
	SenderRole       string           `json:"sender_role"`
	Priority         Priority         `json:"priority"`
	NotificationType NotificationType `json:"notification_type"`

	// Timestamp is the display-formatted send time, computed once when the
	// notification is first seen and never re-derived.
	Timestamp string `json:"timestamp"`

	AcceptedCount  int  `json:"accepted_count"`
	IsAcknowledged bool `json:"is_acknowledged"`
}

// NewPendingAnnouncement projects a server notification into the client-side
// record shown to the user. now supplies the wall clock used to format the
// displayed send time.
func NewPendingAnnouncement(n Notification, now time.Time) PendingAnnouncement {
	sent := n.CreatedAt
	if sent.IsZero() {
		sent = now
	}
	return PendingAnnouncement{
		NotificationID:   n.ID,
		Title:            n.Title,
		Message:          n.Message,
		SenderName:       n.SenderName,
		SenderRole:       n.SenderRole,
		Priority:         n.Priority,
		NotificationType: n.NotificationType,
		Timestamp:        sent.Local().Format("2006-01-02 15:04"),
		AcceptedCount:    n.AcceptanceStats.AcceptedCount,
	}
}
