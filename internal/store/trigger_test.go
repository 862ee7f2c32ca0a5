package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollTriggerConsumeFresh(t *testing.T) {
	kv := newTestKV(t)
	require.NoError(t, WritePollTrigger(kv))

	fresh, err := ConsumePollTrigger(kv, time.Now())
	require.NoError(t, err)
	assert.True(t, fresh)

	// Consuming deletes the record.
	fresh, err = ConsumePollTrigger(kv, time.Now())
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestPollTriggerStaleDiscarded(t *testing.T) {
	kv := newTestKV(t)

	old := PollTrigger{ID: "t-1", CreatedAt: time.Now().UTC().Add(-time.Minute)}
	data, err := json.Marshal(old)
	require.NoError(t, err)
	require.NoError(t, kv.Set(KeyPollTrigger, string(data)))

	fresh, err := ConsumePollTrigger(kv, time.Now())
	require.NoError(t, err)
	assert.False(t, fresh)

	_, err = kv.Get(KeyPollTrigger)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPollTriggerCorruptDiscarded(t *testing.T) {
	kv := newTestKV(t)
	require.NoError(t, kv.Set(KeyPollTrigger, "###"))

	fresh, err := ConsumePollTrigger(kv, time.Now())
	require.NoError(t, err)
	assert.False(t, fresh)
}
