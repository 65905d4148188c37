package storage

import (
	"fmt"
	"path"
	"strings"

	"hlsladder/core/playlist"
)

// Layout builds the bucket-relative keys:
//
//	<audio>/<id>.mp3
//	<hls>/<id>/master.m3u8
//	<hls>/<id>/<tier>/index.m3u8
//	<hls>/<id>/<tier>/segment_NNN.ts
type Layout struct {
	AudioPrefix    string
	HLSPrefix      string
	SourcePatterns []string // {prefix} and {id} placeholders
}

// ValidateTrackID rejects identifiers that would escape their key prefix.
func ValidateTrackID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("empty track id")
	case strings.ContainsAny(id, "/\\"), id == "." || id == "..":
		return fmt.Errorf("invalid track id %q", id)
	}
	return nil
}

// SourceCandidates returns the source keys to try for id, in order, without duplicates.
func (l Layout) SourceCandidates(id string) []string {
	seen := make(map[string]bool, len(l.SourcePatterns))
	var keys []string
	for _, pattern := range l.SourcePatterns {
		key := strings.NewReplacer("{prefix}", l.AudioPrefix, "{id}", id).Replace(pattern)
		key = strings.TrimPrefix(path.Clean("/"+key), "/")
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// SourceListPrefix is the listing prefix used to discover every source track.
func (l Layout) SourceListPrefix() string {
	if l.AudioPrefix == "" {
		return ""
	}
	return l.AudioPrefix + "/"
}

// TrackIDFromSourceKey extracts the id from <audio>/<id>.mp3.
func (l Layout) TrackIDFromSourceKey(key string) (string, bool) {
	rest := strings.TrimPrefix(key, l.SourceListPrefix())
	if rest == key && l.SourceListPrefix() != "" {
		return "", false
	}
	if !strings.HasSuffix(strings.ToLower(rest), ".mp3") {
		return "", false
	}
	id := rest[:len(rest)-len(".mp3")]
	if ValidateTrackID(id) != nil {
		return "", false
	}
	return id, true
}

// TrackPrefix is the destination prefix of one track, with trailing slash.
func (l Layout) TrackPrefix(id string) string {
	return path.Join(l.HLSPrefix, id) + "/"
}

// ObjectKey places a path relative to the track's ladder root.
func (l Layout) ObjectKey(id, rel string) string {
	return path.Join(l.HLSPrefix, id, rel)
}

// MasterKey is the master manifest key of a track.
func (l Layout) MasterKey(id string) string {
	return l.ObjectKey(id, playlist.MasterName)
}
