package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLayout() Layout {
	return Layout{
		AudioPrefix:    "audio",
		HLSPrefix:      "hls",
		SourcePatterns: []string{"{prefix}/{id}.mp3", "audio-tracks/{id}.mp3", "{id}.mp3", "{prefix}/{id}.mp3"},
	}
}

func TestLayoutKeys(t *testing.T) {
	l := testLayout()
	assert.Equal(t, "hls/t1/", l.TrackPrefix("t1"))
	assert.Equal(t, "hls/t1/master.m3u8", l.MasterKey("t1"))
	assert.Equal(t, "hls/t1/high/segment_002.ts", l.ObjectKey("t1", "high/segment_002.ts"))
}

func TestSourceCandidatesInOrderWithoutDuplicates(t *testing.T) {
	assert.Equal(t,
		[]string{"audio/t1.mp3", "audio-tracks/t1.mp3", "t1.mp3"},
		testLayout().SourceCandidates("t1"))
}

func TestTrackIDFromSourceKey(t *testing.T) {
	l := testLayout()
	id, ok := l.TrackIDFromSourceKey("audio/t42.mp3")
	assert.True(t, ok)
	assert.Equal(t, "t42", id)

	for _, key := range []string{"audio/t42.json", "other/t42.mp3", "audio/nested/t42.mp3", "audio/.mp3"} {
		_, ok := l.TrackIDFromSourceKey(key)
		assert.False(t, ok, key)
	}
}

func TestValidateTrackID(t *testing.T) {
	assert.NoError(t, ValidateTrackID("f76d55c8-3ac0"))
	assert.Error(t, ValidateTrackID(""))
	assert.Error(t, ValidateTrackID("../etc"))
	assert.Error(t, ValidateTrackID(".."))
}
