package job

import (
	"context"
	"testing"

	"hlsladder/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateRequiresMasterManifest(t *testing.T) {
	store := storage.NewMemoryStore()
	gate := NewGate(storage.NewGateway(store, 0), testLayout)
	ctx := context.Background()

	ok, err := gate.AlreadyPublished(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Sub-playlists alone are a partial upload.
	store.Seed("hls/t1/low/index.m3u8", []byte("#EXTM3U\n"))
	store.Seed("hls/t1/low/segment_000.ts", []byte{0x47})
	ok, err = gate.AlreadyPublished(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	store.Seed("hls/t1/master.m3u8", []byte("#EXTM3U\n"))
	info, ok, err := gate.Published(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hls/t1/master.m3u8", info.Key)

	// A track whose id is a prefix of another is not confused with it.
	ok, err = gate.AlreadyPublished(ctx, "t")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGatePropagatesListErrors(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailList = func(string) error { return storage.ErrPermissionDenied }
	gate := NewGate(storage.NewGateway(store, 0), testLayout)

	_, err := gate.AlreadyPublished(context.Background(), "t1")
	assert.ErrorIs(t, err, storage.ErrPermissionDenied)
}
