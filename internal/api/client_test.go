package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora/popdesk/internal/model"
)

func TestClientSendsAuthHeaders(t *testing.T) {
	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token")
	var out map[string]interface{}
	require.NoError(t, client.Get(context.Background(), "/ping", &out))

	assert.Equal(t, "Bearer secret-token", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "no-cache", got.Get("Cache-Control"))
}

func TestClientUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "expired")
	err := client.Get(context.Background(), "/ping", nil)

	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestClientStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	err := client.Get(context.Background(), "/ping", nil)

	require.Error(t, err)
	assert.False(t, IsAuthError(err))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestClientRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	var out map[string]bool
	require.NoError(t, client.Get(context.Background(), "/ping", &out))

	assert.Equal(t, 2, attempts)
	assert.True(t, out["ok"])
}

func TestClientRateLimitExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	err := client.Get(context.Background(), "/ping", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")
}

func TestMyNotificationsQueryAndDecode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pop-notifications/my-notifications", r.URL.Path)
		assert.Equal(t, "user-7", r.URL.Query().Get("user_id"))
		assert.NotEmpty(t, r.URL.Query().Get("cache_buster"))

		json.NewEncoder(w).Encode([]model.Notification{
			{
				ID:       "n-1",
				Title:    "Scheduled maintenance",
				Message:  "Back at 02:00 UTC.",
				Priority: model.PriorityUrgent,
				IsActive: true,
			},
		})
	}))
	defer server.Close()

	svc := NewNotificationService(NewClient(server.URL, "token"))
	list, err := svc.MyNotifications(context.Background(), "user-7")
	require.NoError(t, err)

	require.Len(t, list, 1)
	assert.Equal(t, "n-1", list[0].ID)
	assert.Equal(t, model.PriorityUrgent, list[0].Priority)
}

func TestAcceptPostsNotificationID(t *testing.T) {
	var body acceptRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pop-notifications/accept", r.URL.Path)
		assert.Equal(t, "user-7", r.URL.Query().Get("user_id"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc := NewNotificationService(NewClient(server.URL, "token"))
	require.NoError(t, svc.Accept(context.Background(), "user-7", "n-1"))

	assert.Equal(t, "n-1", body.NotificationID)
}
