package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// triggerTTL is how long a poll trigger stays valid before it is treated
// as stale and discarded.
const triggerTTL = 30 * time.Second

// PollTrigger is a short-lived cross-component record asking the poller to
// run an immediate check. The producer (the admin-side broadcast flow)
// writes it; the poller consumes and deletes it.
type PollTrigger struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// WritePollTrigger records a fresh trigger in the KV store.
func WritePollTrigger(kv KV) error {
	t := PollTrigger{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling poll trigger: %w", err)
	}
	return kv.Set(KeyPollTrigger, string(data))
}

// ConsumePollTrigger reads and deletes the trigger record. It reports true
// only when a fresh trigger was present; a stale or corrupt record is
// deleted and reported as absent.
func ConsumePollTrigger(kv KV, now time.Time) (bool, error) {
	raw, err := kv.Get(KeyPollTrigger)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := kv.Delete(KeyPollTrigger); err != nil {
		return false, err
	}

	var t PollTrigger
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return false, nil
	}
	if now.Sub(t.CreatedAt) > triggerTTL {
		return false, nil
	}

	return true, nil
}
