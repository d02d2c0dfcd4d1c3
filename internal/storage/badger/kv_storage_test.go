package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/interfaces"
)

func TestKVSetGetDelete(t *testing.T) {
	kv := NewKVStorage(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "lastrequest_https://example.com/", "2026-09-01T10:00:00Z"))

	value, err := kv.Get(ctx, "lastrequest_https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "2026-09-01T10:00:00Z", value)

	require.NoError(t, kv.Delete(ctx, "lastrequest_https://example.com/"))
	_, err = kv.Get(ctx, "lastrequest_https://example.com/")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	// Deleting an absent key is not an error
	assert.NoError(t, kv.Delete(ctx, "lastrequest_https://example.com/"))
}

func TestKVKeysCaseInsensitive(t *testing.T) {
	kv := NewKVStorage(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "ActiveDownload_X", "true"))
	value, err := kv.Get(ctx, "activedownload_x")
	require.NoError(t, err)
	assert.Equal(t, "true", value)
}

func TestKVEntryExpires(t *testing.T) {
	kv := NewKVStorage(testDB(t), arbor.NewLogger())
	ctx := context.Background()

	// Badger truncates expiry to whole seconds, so a sub-second TTL can land
	// in the current second and read as already expired
	require.NoError(t, kv.SetWithTTL(ctx, "lastrequest_ttl", "now", 2*time.Second))

	value, err := kv.Get(ctx, "lastrequest_ttl")
	require.NoError(t, err)
	assert.Equal(t, "now", value)

	time.Sleep(3 * time.Second)
	_, err = kv.Get(ctx, "lastrequest_ttl")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound, "expired entry must read as absent")
}
