package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/velora/popdesk/internal/model"
)

// AnnouncementStore holds the single pending announcement. It is a slot,
// not a queue: saving overwrites whatever was there. The record is mirrored
// into the KV store so an unacknowledged broadcast survives a restart.
//
// The store is shared between the poll goroutine and the UI event loop, so
// every method is safe for concurrent use.
type AnnouncementStore struct {
	mu      sync.Mutex
	kv      KV
	current *model.PendingAnnouncement
}

// NewAnnouncementStore creates an announcement store backed by kv.
func NewAnnouncementStore(kv KV) *AnnouncementStore {
	return &AnnouncementStore{kv: kv}
}

// Save writes the announcement to the KV store and adopts it in memory,
// overwriting any prior value.
func (s *AnnouncementStore) Save(a model.PendingAnnouncement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling pending announcement: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(KeyPendingAnnouncement, string(data)); err != nil {
		return err
	}
	s.current = &a
	return nil
}

// Load reads any persisted announcement from the KV store and adopts it as
// the in-memory value. It returns a copy of the adopted announcement, or nil
// when the slot is empty. A corrupt record is discarded and the slot cleared;
// that is never escalated to the caller as an error.
func (s *AnnouncementStore) Load() (*model.PendingAnnouncement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(KeyPendingAnnouncement)
	if errors.Is(err, ErrNotFound) {
		s.current = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var a model.PendingAnnouncement
	if err := json.Unmarshal([]byte(raw), &a); err != nil || a.NotificationID == "" {
		_ = s.kv.Delete(KeyPendingAnnouncement)
		s.current = nil
		return nil, nil
	}

	s.current = &a
	loaded := a
	return &loaded, nil
}

// Clear removes the announcement from the KV store and memory. Idempotent.
func (s *AnnouncementStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(KeyPendingAnnouncement); err != nil {
		return err
	}
	s.current = nil
	return nil
}

// Current returns a copy of the in-memory announcement, or nil when none is
// pending. Callers get their own value; mutating it never touches the slot.
func (s *AnnouncementStore) Current() *model.PendingAnnouncement {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	c := *s.current
	return &c
}
