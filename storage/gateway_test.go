package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayRetriesTransientThenSucceeds(t *testing.T) {
	store := NewMemoryStore()
	failures := 2
	store.FailPut = func(key string) error {
		if failures > 0 {
			failures--
			return ErrTransient
		}
		return nil
	}
	gw := NewGateway(store, 0)

	require.NoError(t, gw.Store(context.Background(), "hls/t1/low/index.m3u8", []byte("#EXTM3U\n"), ""))
	_, puts := store.Calls()
	assert.Equal(t, 3, puts)

	_, contentType, ok := store.Object("hls/t1/low/index.m3u8")
	require.True(t, ok)
	assert.Equal(t, ContentTypePlaylist, contentType)
}

func TestGatewayGivesUpAfterThreeAttempts(t *testing.T) {
	store := NewMemoryStore()
	store.FailGet = func(string) error { return fmt.Errorf("%w: connection reset", ErrTransient) }
	gw := NewGateway(store, 0)

	_, err := gw.Fetch(context.Background(), "audio/t1.mp3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	gets, _ := store.Calls()
	assert.Equal(t, DefaultAttempts, gets)
}

func TestGatewayDoesNotRetryTerminalErrors(t *testing.T) {
	for _, marker := range []error{ErrNotFound, ErrPermissionDenied} {
		store := NewMemoryStore()
		store.FailPut = func(string) error { return marker }
		gw := NewGateway(store, 0)

		err := gw.Store(context.Background(), "hls/t1/master.m3u8", []byte("x"), "")
		assert.ErrorIs(t, err, marker)
		_, puts := store.Calls()
		assert.Equal(t, 1, puts, "marker %v", marker)
	}
}

func TestGatewayFetchMissing(t *testing.T) {
	gw := NewGateway(NewMemoryStore(), 0)
	_, err := gw.Fetch(context.Background(), "audio/missing.mp3")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGatewayStopsOnCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	store.FailList = func(string) error { return ErrTransient }
	gw := NewGateway(store, 1<<40)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gw.List(ctx, "hls/")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGatewayStoreFile(t *testing.T) {
	store := NewMemoryStore()
	gw := NewGateway(store, 0)
	ctx := context.Background()

	local := filepath.Join(t.TempDir(), "segment_000.ts")
	require.NoError(t, os.WriteFile(local, []byte{0x47}, 0644))
	require.NoError(t, gw.StoreFile(ctx, "hls/t1/low/segment_000.ts", local))

	objects, err := gw.List(ctx, "hls/t1/")
	require.NoError(t, err)
	assert.Len(t, objects, 1)
	_, contentType, _ := store.Object("hls/t1/low/segment_000.ts")
	assert.Equal(t, ContentTypeSegment, contentType)
}
