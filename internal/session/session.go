package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/99designs/keyring"

	"github.com/velora/popdesk/internal/store"
)

const serviceName = "popdesk"

// tokenKey is the keyring entry holding the CRM bearer token.
const tokenKey = "crm-api-token"

// profile is the cached user profile blob written by the login flow.
type profile struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Session holds the authenticated user's identity for the lifetime of a run
// and owns the logout signal. Logout is observed, not registered: callers
// subscribe once and the Done channel closes exactly once.
type Session struct {
	explicitID string
	kv         store.KV

	once sync.Once
	done chan struct{}
}

// New creates a session. explicitID may be empty; in that case the user id
// is resolved from the cached profile.
func New(explicitID string, kv store.KV) *Session {
	return &Session{
		explicitID: explicitID,
		kv:         kv,
		done:       make(chan struct{}),
	}
}

// UserID resolves the current user's id: the explicitly configured id first,
// then the cached profile. An empty result means no identity is available
// yet; callers treat that as "nothing to do", not an error.
func (s *Session) UserID() string {
	if s.explicitID != "" {
		return s.explicitID
	}

	raw, err := s.kv.Get(store.KeyProfile)
	if errors.Is(err, store.ErrNotFound) {
		return ""
	}
	if err != nil {
		return ""
	}

	var p profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return ""
	}
	return p.UserID
}

// Logout signals session teardown to every subscriber. Idempotent.
func (s *Session) Logout() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Done returns a channel that closes when the session logs out.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/popdesk/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("popdesk-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Token retrieves the CRM bearer token from the system keyring.
func Token() (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", tokenKey, err)
	}

	return string(item.Data), nil
}

// SetToken stores the CRM bearer token in the system keyring.
func SetToken(value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  tokenKey,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", tokenKey, err)
	}

	return nil
}

// DeleteToken removes the CRM bearer token from the system keyring.
func DeleteToken() error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(tokenKey)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", tokenKey, err)
	}

	return nil
}
