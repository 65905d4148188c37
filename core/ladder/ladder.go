// Package ladder holds the fixed four-tier audio rendition ladder.
package ladder

import "path"

// Tier names, in ladder order.
const (
	TierLow     = "low"
	TierMedium  = "medium"
	TierHigh    = "high"
	TierPremium = "premium"
)

// overhead applied to the audio bitrate when advertising bandwidth (×1.5).
const (
	overheadNum = 3
	overheadDen = 2
)

// PlaylistName is the file name of every tier's sub-playlist.
const PlaylistName = "index.m3u8"

// RenditionSpec describes one rung of the ladder.
type RenditionSpec struct {
	Name                string
	BitrateKbps         int
	AdvertisedBandwidth int // bits per second
	order               int
}

// Order is the position of the tier within the ladder, starting at 0.
func (r RenditionSpec) Order() int {
	return r.order
}

// PlaylistPath is the sub-playlist path relative to the track's HLS prefix.
func (r RenditionSpec) PlaylistPath() string {
	return path.Join(r.Name, PlaylistName)
}

func newSpec(order int, name string, kbps int) RenditionSpec {
	return RenditionSpec{
		Name:                name,
		BitrateKbps:         kbps,
		AdvertisedBandwidth: kbps * 1000 * overheadNum / overheadDen,
		order:               order,
	}
}

var tiers = [...]RenditionSpec{
	newSpec(0, TierLow, 32),
	newSpec(1, TierMedium, 64),
	newSpec(2, TierHigh, 96),
	newSpec(3, TierPremium, 128),
}

// Tiers returns the four renditions in ladder order. The slice is a copy.
func Tiers() []RenditionSpec {
	out := make([]RenditionSpec, len(tiers))
	copy(out, tiers[:])
	return out
}

// Lookup finds a tier by name.
func Lookup(name string) (RenditionSpec, bool) {
	for _, t := range tiers {
		if t.Name == name {
			return t, true
		}
	}
	return RenditionSpec{}, false
}
