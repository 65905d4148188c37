// Package storage wraps the object store that holds source audio and published ladders.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("object not found")
	ErrTransient        = errors.New("transient storage failure")
	ErrPermissionDenied = errors.New("storage permission denied")
)

// Content types set on upload. Some players reject playlists or segments
// served with anything else.
const (
	ContentTypePlaylist = "application/vnd.apple.mpegurl"
	ContentTypeSegment  = "video/MP2T"
	ContentTypeMP3      = "audio/mpeg"
	ContentTypeJSON     = "application/json"
	ContentTypeDefault  = "application/octet-stream"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// ObjectStore is the raw capability the gateway retries against.
// Implementations classify failures with ErrNotFound, ErrTransient or
// ErrPermissionDenied.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ContentTypeFor derives the upload content type from the key's extension.
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".m3u8":
		return ContentTypePlaylist
	case ".ts":
		return ContentTypeSegment
	case ".mp3":
		return ContentTypeMP3
	case ".json":
		return ContentTypeJSON
	default:
		return ContentTypeDefault
	}
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
