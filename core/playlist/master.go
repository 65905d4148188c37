// Package playlist builds and inspects the HLS text documents of a ladder.
package playlist

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strings"

	"hlsladder/core/ladder"
)

// MasterName is the object name of the top-level manifest.
const MasterName = "master.m3u8"

// AudioCodecs is advertised for every rendition (AAC-LC).
const AudioCodecs = "mp4a.40.2"

// ComposeMaster renders the master manifest for tiers. Output is always in
// ladder order (low, medium, high, premium) whatever the input order, each
// tier appears once, and the bytes depend only on the tier set.
func ComposeMaster(tiers []ladder.RenditionSpec) []byte {
	ordered := make([]ladder.RenditionSpec, 0, len(tiers))
	seen := make(map[string]bool, len(tiers))
	for _, t := range tiers {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		ordered = append(ordered, t)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i]) < rank(ordered[j])
	})

	var builder strings.Builder
	builder.WriteString("#EXTM3U\n")
	builder.WriteString("#EXT-X-VERSION:3\n")
	for _, t := range ordered {
		builder.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,CODECS=\"%s\"\n", t.AdvertisedBandwidth, AudioCodecs))
		builder.WriteString(t.PlaylistPath())
		builder.WriteString("\n")
	}
	return []byte(builder.String())
}

func rank(t ladder.RenditionSpec) int {
	if known, ok := ladder.Lookup(t.Name); ok {
		return known.Order()
	}
	return len(ladder.Tiers()) + t.Order()
}

// SegmentURIs returns the media URIs listed in a sub-playlist, in order.
func SegmentURIs(data []byte) []string {
	var uris []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uris = append(uris, line)
	}
	return uris
}

// CountSegments reports how many media segments a sub-playlist references.
func CountSegments(data []byte) int {
	return len(SegmentURIs(data))
}
