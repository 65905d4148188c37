package playlist

import (
	"strings"
	"testing"

	"hlsladder/core/ladder"

	"github.com/stretchr/testify/assert"
)

const wantMaster = "#EXTM3U\n" +
	"#EXT-X-VERSION:3\n" +
	"#EXT-X-STREAM-INF:BANDWIDTH=48000,CODECS=\"mp4a.40.2\"\n" +
	"low/index.m3u8\n" +
	"#EXT-X-STREAM-INF:BANDWIDTH=96000,CODECS=\"mp4a.40.2\"\n" +
	"medium/index.m3u8\n" +
	"#EXT-X-STREAM-INF:BANDWIDTH=144000,CODECS=\"mp4a.40.2\"\n" +
	"high/index.m3u8\n" +
	"#EXT-X-STREAM-INF:BANDWIDTH=192000,CODECS=\"mp4a.40.2\"\n" +
	"premium/index.m3u8\n"

func TestComposeMasterLiteral(t *testing.T) {
	assert.Equal(t, wantMaster, string(ComposeMaster(ladder.Tiers())))
}

func TestComposeMasterDeterministic(t *testing.T) {
	first := ComposeMaster(ladder.Tiers())
	second := ComposeMaster(ladder.Tiers())
	assert.Equal(t, first, second)
}

func TestComposeMasterOrderIndependentOfInput(t *testing.T) {
	tiers := ladder.Tiers()
	permutations := [][]int{
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}
	for _, perm := range permutations {
		shuffled := make([]ladder.RenditionSpec, 0, len(perm))
		for _, i := range perm {
			shuffled = append(shuffled, tiers[i])
		}
		assert.Equal(t, wantMaster, string(ComposeMaster(shuffled)), "perm %v", perm)
	}
}

func TestComposeMasterDropsDuplicates(t *testing.T) {
	tiers := append(ladder.Tiers(), ladder.Tiers()[0])
	out := string(ComposeMaster(tiers))
	assert.Equal(t, 4, strings.Count(out, "#EXT-X-STREAM-INF"))
}

func TestSegmentURIs(t *testing.T) {
	sub := []byte("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n" +
		"#EXTINF:6.000000,\nsegment_000.ts\n#EXTINF:4.200000,\nsegment_001.ts\n#EXT-X-ENDLIST\n")
	assert.Equal(t, []string{"segment_000.ts", "segment_001.ts"}, SegmentURIs(sub))
	assert.Equal(t, 2, CountSegments(sub))
	assert.Equal(t, 0, CountSegments(nil))
}
