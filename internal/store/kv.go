package store

import "errors"

// Well-known keys in the local state store.
const (
	// KeyPendingAnnouncement holds the JSON-serialized announcement
	// currently awaiting acknowledgment.
	KeyPendingAnnouncement = "announce.pending"

	// KeyLastSeen holds the JSON last-seen notification id + timestamp used
	// by the poller's grace-window logic.
	KeyLastSeen = "announce.last_seen"

	// KeyChimeVolume holds the chime volume preference as a numeric string.
	KeyChimeVolume = "audio.volume"

	// KeyPollTrigger holds a short-lived record asking the poller to run an
	// immediate check.
	KeyPollTrigger = "poll.trigger"

	// KeyProfile holds the cached user profile blob used as a fallback
	// identity source.
	KeyProfile = "session.profile"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("key not found")

// KV is a small persistent key-value store. Set and Delete are synchronous:
// when they return, the value is durable and no partial-write state is
// observable to other readers.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}
