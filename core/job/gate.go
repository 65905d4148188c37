package job

import (
	"context"

	"hlsladder/storage"
)

// Gate decides whether a track already has a complete published ladder.
// The master manifest is always the last object uploaded, so its presence
// means every sub-playlist and segment landed before it.
type Gate struct {
	gateway *storage.Gateway
	layout  storage.Layout
}

// NewGate creates a gate over the destination layout.
func NewGate(gateway *storage.Gateway, layout storage.Layout) *Gate {
	return &Gate{gateway: gateway, layout: layout}
}

// Published returns the master manifest object when one exists under the track's prefix.
func (g *Gate) Published(ctx context.Context, trackID string) (storage.ObjectInfo, bool, error) {
	objects, err := g.gateway.List(ctx, g.layout.TrackPrefix(trackID))
	if err != nil {
		return storage.ObjectInfo{}, false, err
	}
	master := g.layout.MasterKey(trackID)
	for _, obj := range objects {
		if obj.Key == master {
			return obj, true, nil
		}
	}
	return storage.ObjectInfo{}, false, nil
}

// AlreadyPublished reports whether the master manifest exists for trackID.
func (g *Gate) AlreadyPublished(ctx context.Context, trackID string) (bool, error) {
	_, ok, err := g.Published(ctx, trackID)
	return ok, err
}
