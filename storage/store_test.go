package storage

import (
	"context"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"hls/t1/master.m3u8":        ContentTypePlaylist,
		"hls/t1/low/index.M3U8":     ContentTypePlaylist,
		"hls/t1/low/segment_000.ts": ContentTypeSegment,
		"audio/t1.mp3":              ContentTypeMP3,
		"audio/t1.json":             ContentTypeJSON,
		"hls/t1/readme":             ContentTypeDefault,
	}
	for key, want := range cases {
		assert.Equal(t, want, ContentTypeFor(key), key)
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(ErrPermissionDenied))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(ErrTransient))
}

func TestClassifyMinioErrors(t *testing.T) {
	assert.ErrorIs(t, classify(minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}, "get"), ErrNotFound)
	assert.ErrorIs(t, classify(minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403}, "put"), ErrPermissionDenied)
	assert.ErrorIs(t, classify(minio.ErrorResponse{Code: "InternalError", StatusCode: 500}, "put"), ErrTransient)
}

func TestMemoryStoreListByPrefix(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("hls/t1/master.m3u8", []byte("a"))
	store.Seed("hls/t10/master.m3u8", []byte("b"))
	store.Seed("audio/t1.mp3", []byte("c"))

	objects, err := store.List(context.Background(), "hls/t1/")
	assert.NoError(t, err)
	if assert.Len(t, objects, 1) {
		assert.Equal(t, "hls/t1/master.m3u8", objects[0].Key)
	}
	assert.Empty(t, store.PutLog())
}

func TestStatsAndFormatSize(t *testing.T) {
	now := time.Now()
	stats := Stats([]ObjectInfo{
		{Key: "hls/t1/master.m3u8", Size: 300, LastModified: now.Add(-time.Hour)},
		{Key: "hls/t1/low/segment_000.ts", Size: 2048, LastModified: now},
		{Key: "hls/t1/low/segment_001.ts", Size: 2048, LastModified: now},
	})
	assert.Equal(t, int64(3), stats.TotalObjects)
	assert.Equal(t, int64(4396), stats.TotalSize)
	assert.Equal(t, now, stats.LastModified)
	assert.Equal(t, int64(2), stats.ByExtension["ts"])
	assert.Equal(t, []string{"m3u8", "ts"}, stats.SortedExtensions())

	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.5 KB", FormatSize(1536))
	assert.Equal(t, "2.0 MB", FormatSize(2*1024*1024))
}
