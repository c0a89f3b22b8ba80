package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "out/data.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://out/data.json", uri)

	payload[0] = 'C'
	stored, ok := store.Object("out/data.json")
	require.True(t, ok)
	require.Equal(t, "content", string(stored))

	stored[0] = 'X'
	again, _ := store.Object("out/data.json")
	require.Equal(t, "content", string(again))
}

func TestBlobStoreCountsOverwrites(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	ctx := context.Background()
	for _, body := range []string{"a", "bb", "ccc"} {
		_, err := store.PutObject(ctx, "progress.json", "", bytes.NewReader([]byte(body)))
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.Writes("progress.json"))
	data, ok := store.Object("progress.json")
	require.True(t, ok)
	require.Equal(t, "ccc", string(data))

	_, ok = store.Object("missing")
	require.False(t, ok)
}

func TestBlobStoreRejectsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBlobStore().PutObject(ctx, "x", "", bytes.NewReader(nil))
	require.ErrorIs(t, err, context.Canceled)
}
