package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/velora/popdesk/internal/model"
)

// NotificationService wraps the pop-notification endpoints of the CRM backend.
type NotificationService struct {
	client *Client
}

// NewNotificationService creates a notification service on top of an
// authenticated client.
func NewNotificationService(client *Client) *NotificationService {
	return &NotificationService{client: client}
}

// MyNotifications fetches the active broadcast notifications targeted at the
// given user. The cache_buster parameter defeats intermediate caches so a
// just-deactivated broadcast never comes back from a stale proxy.
func (s *NotificationService) MyNotifications(
	ctx context.Context,
	userID string,
) ([]model.Notification, error) {
	path := fmt.Sprintf(
		"/pop-notifications/my-notifications?user_id=%s&cache_buster=%d",
		url.QueryEscape(userID),
		time.Now().UnixMilli(),
	)

	var notifications []model.Notification
	if err := s.client.Get(ctx, path, &notifications); err != nil {
		return nil, fmt.Errorf("fetching notifications for %s: %w", userID, err)
	}

	return notifications, nil
}

// acceptRequest is the body of the accept endpoint.
type acceptRequest struct {
	NotificationID string `json:"notification_id"`
}

// Accept records the user's acknowledgment of a broadcast on the backend.
// The caller treats failures as log-only; the local acknowledgment is not
// rolled back.
func (s *NotificationService) Accept(
	ctx context.Context,
	userID string,
	notificationID string,
) error {
	path := fmt.Sprintf(
		"/pop-notifications/accept?user_id=%s",
		url.QueryEscape(userID),
	)

	req := acceptRequest{NotificationID: notificationID}
	if err := s.client.Post(ctx, path, req, nil); err != nil {
		return fmt.Errorf("accepting notification %s: %w", notificationID, err)
	}

	return nil
}
