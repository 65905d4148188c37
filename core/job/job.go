// Package job drives one source track through download, four encodes,
// manifest composition, upload, verification and the catalog update.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hlsladder/core/encoder"
	"hlsladder/core/ladder"
	"hlsladder/core/playlist"
	"hlsladder/logger"
	"hlsladder/model"
	"hlsladder/storage"
)

// DefaultMaxAttempts bounds how many times one track is downloaded, encoded and uploaded.
const DefaultMaxAttempts = 3

// sourceFileName is the scratch name of the downloaded source.
const sourceFileName = "source.mp3"

// Encoder produces one rendition in outputDir.
type Encoder interface {
	Encode(ctx context.Context, sourceFile string, tier ladder.RenditionSpec, outputDir string) (encoder.Result, error)
}

// Prober reports a source's duration in seconds. Encoders may implement it.
type Prober interface {
	Probe(ctx context.Context, sourceFile string) (float64, error)
}

// Catalog records a published manifest. Implementations must be idempotent.
type Catalog interface {
	UpsertManifest(ctx context.Context, rec *model.TrackManifest) error
}

// StateFunc observes every state a job enters.
type StateFunc func(trackID string, attempt int, state State)

// Options configures a Runner.
type Options struct {
	Layout        storage.Layout
	PublicBaseURL string
	ScratchRoot   string
	MaxAttempts   int
	RetryDelay    time.Duration
	Force         bool
}

// TrackJob is the in-memory record of one track being processed. It is
// discarded once its outcome is reported.
type TrackJob struct {
	TrackID   string
	SourceKey string
	Attempt   int
	State     State

	onState StateFunc
}

func (j *TrackJob) transition(to State) {
	if !CanTransition(j.State, to) {
		// Programming error; the runner only moves forward.
		panic(fmt.Sprintf("track %s: illegal transition %s -> %s", j.TrackID, j.State, to))
	}
	logger.Debug("track state",
		logger.String("trackId", j.TrackID),
		logger.Int("attempt", j.Attempt),
		logger.String("from", j.State.String()),
		logger.String("state", to.String()))
	j.State = to
	if j.onState != nil {
		j.onState(j.TrackID, j.Attempt, to)
	}
}

// Outcome is what a job reports to the scheduler.
type Outcome struct {
	TrackID     string
	Skipped     bool // already published, nothing re-encoded
	Attempts    int
	Segments    int
	ManifestURL string
	Duration    time.Duration
	Err         error
}

// Succeeded reports whether the track ends up published.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// Runner executes track jobs. It is safe for concurrent use; every job gets
// its own scratch directory.
type Runner struct {
	gateway *storage.Gateway
	gate    *Gate
	encoder Encoder
	catalog Catalog
	opts    Options
	onState StateFunc
	now     func() time.Time
}

// NewRunner builds a runner. catalog may be nil when no catalog is configured.
func NewRunner(gateway *storage.Gateway, enc Encoder, catalog Catalog, opts Options) *Runner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.ScratchRoot == "" {
		opts.ScratchRoot = filepath.Join(os.TempDir(), "hlsladder")
	}
	return &Runner{
		gateway: gateway,
		gate:    NewGate(gateway, opts.Layout),
		encoder: enc,
		catalog: catalog,
		opts:    opts,
		now:     time.Now,
	}
}

// OnState registers an observer for state changes. Call before Run.
func (r *Runner) OnState(fn StateFunc) {
	r.onState = fn
}

// ManifestURL is the public URL of a track's master manifest.
func (r *Runner) ManifestURL(trackID string) string {
	return r.opts.PublicBaseURL + "/" + r.opts.Layout.MasterKey(trackID)
}

// Run processes one track. Every failure is returned in the outcome; Run
// itself never fails.
func (r *Runner) Run(ctx context.Context, trackID string) Outcome {
	start := r.now()
	tj := &TrackJob{TrackID: trackID, State: State{Phase: PhaseQueued}, onState: r.onState}
	out := Outcome{TrackID: trackID}
	finish := func() Outcome {
		out.Duration = r.now().Sub(start)
		return out
	}

	if err := storage.ValidateTrackID(trackID); err != nil {
		out.Err = Wrap(ErrSourceNotFound, "validate", "", err)
		tj.transition(State{Phase: PhaseFailed})
		return finish()
	}

	if !r.opts.Force {
		master, published, err := r.gate.Published(ctx, trackID)
		if err != nil {
			out.Err = storageErr("idempotency check", trackID, err)
			tj.transition(State{Phase: PhaseFailed})
			return finish()
		}
		if published {
			logger.Info("track already published, skipping",
				logger.String("trackId", trackID),
				logger.String("master", master.Key))
			if err := r.record(ctx, trackID, 0, master.LastModified); err != nil {
				out.Err = err
				tj.transition(State{Phase: PhaseFailed})
				return finish()
			}
			out.Skipped = true
			out.ManifestURL = r.ManifestURL(trackID)
			tj.transition(State{Phase: PhaseDone})
			return finish()
		}
	}

	var (
		lastErr      error
		verifyRedone bool
		published    attemptResult
		succeeded    bool
	)
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			tj.transition(State{Phase: PhaseQueued})
		}
		tj.Attempt = attempt
		out.Attempts = attempt

		res, err := r.attempt(ctx, tj)
		if err == nil {
			published = res
			succeeded = true
			break
		}

		lastErr = err
		tj.transition(State{Phase: PhaseFailed})
		logger.Warn("track attempt failed",
			logger.String("trackId", trackID),
			logger.Int("attempt", attempt),
			logger.ErrorField(err))

		if !Retryable(err) || attempt == r.opts.MaxAttempts {
			break
		}
		if errors.Is(err, ErrVerificationFailure) {
			if verifyRedone {
				break
			}
			verifyRedone = true
		}
		if !sleepCtx(ctx, r.opts.RetryDelay) {
			lastErr = fmt.Errorf("%w (retry abandoned: %v)", lastErr, ctx.Err())
			break
		}
	}

	if !succeeded {
		out.Err = lastErr
		return finish()
	}

	if err := r.record(ctx, trackID, published.durationSeconds, r.now()); err != nil {
		out.Err = err
		tj.transition(State{Phase: PhaseFailed})
		return finish()
	}
	out.Segments = published.segments
	out.ManifestURL = r.ManifestURL(trackID)
	tj.transition(State{Phase: PhaseDone})
	logger.Info("track published",
		logger.String("trackId", trackID),
		logger.Int("attempts", out.Attempts),
		logger.Int("segments", out.Segments),
		logger.String("manifestUrl", out.ManifestURL))
	return finish()
}

type attemptResult struct {
	segments        int
	durationSeconds float64
}

// attempt downloads, encodes, uploads and verifies once, inside a scratch
// directory that is always removed.
func (r *Runner) attempt(ctx context.Context, tj *TrackJob) (attemptResult, error) {
	var res attemptResult

	scratch := filepath.Join(r.opts.ScratchRoot, tj.TrackID+"-"+strconv.Itoa(tj.Attempt))
	if err := os.RemoveAll(scratch); err != nil {
		return res, Wrap(ErrTransientIO, "scratch", scratch, err)
	}
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return res, Wrap(ErrTransientIO, "scratch", scratch, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			logger.Warn("failed to remove scratch directory",
				logger.String("trackId", tj.TrackID),
				logger.String("path", scratch),
				logger.ErrorField(err))
		}
	}()

	// Download
	tj.transition(State{Phase: PhaseDownloading})
	sourcePath := filepath.Join(scratch, sourceFileName)
	if err := r.download(ctx, tj, sourcePath); err != nil {
		return res, err
	}
	if prober, ok := r.encoder.(Prober); ok {
		if d, err := prober.Probe(ctx, sourcePath); err != nil {
			logger.Warn("could not probe source duration",
				logger.String("trackId", tj.TrackID),
				logger.ErrorField(err))
		} else {
			res.durationSeconds = d
		}
	}

	// Encode every tier; any failure abandons the whole ladder.
	tiers := ladder.Tiers()
	ladderDir := filepath.Join(scratch, "hls")
	segments := make(map[string][]string, len(tiers))
	for _, tier := range tiers {
		tj.transition(Encoding(tier.Name, tier.Order()))
		tierDir := filepath.Join(ladderDir, tier.Name)
		result, err := r.encoder.Encode(ctx, sourcePath, tier, tierDir)
		if err != nil {
			return res, Wrap(ErrEncodeFailure, "encode", tier.Name, err)
		}
		data, err := os.ReadFile(filepath.Join(tierDir, ladder.PlaylistName))
		if err != nil {
			return res, Wrap(ErrEncodeFailure, "encode", tier.Name+": read sub-playlist", err)
		}
		segments[tier.Name] = playlist.SegmentURIs(data)
		if len(segments[tier.Name]) == 0 {
			return res, Wrap(ErrEncodeFailure, "encode", tier.Name+": no segments", nil)
		}
		res.segments += len(segments[tier.Name])
		logger.Debug("tier encoded",
			logger.String("trackId", tj.TrackID),
			logger.String("tier", tier.Name),
			logger.Int("segments", result.SegmentCount))
	}

	// Compose
	tj.transition(State{Phase: PhaseComposing})
	masterPath := filepath.Join(ladderDir, playlist.MasterName)
	if err := os.WriteFile(masterPath, playlist.ComposeMaster(tiers), 0644); err != nil {
		return res, Wrap(ErrTransientIO, "compose", masterPath, err)
	}

	// Upload: sub-playlists and segments first, master strictly last.
	tj.transition(State{Phase: PhaseUploading})
	layout := r.opts.Layout
	for _, tier := range tiers {
		tierDir := filepath.Join(ladderDir, tier.Name)
		for _, seg := range segments[tier.Name] {
			if !localName(seg) {
				return res, Wrap(ErrEncodeFailure, "upload", tier.Name+": unexpected segment uri "+seg, nil)
			}
			key := layout.ObjectKey(tj.TrackID, tier.Name+"/"+seg)
			if err := r.gateway.StoreFile(ctx, key, filepath.Join(tierDir, seg)); err != nil {
				return res, storageErr("upload", key, err)
			}
		}
		key := layout.ObjectKey(tj.TrackID, tier.PlaylistPath())
		if err := r.gateway.StoreFile(ctx, key, filepath.Join(tierDir, ladder.PlaylistName)); err != nil {
			return res, storageErr("upload", key, err)
		}
	}
	if err := r.gateway.StoreFile(ctx, layout.MasterKey(tj.TrackID), masterPath); err != nil {
		return res, storageErr("upload", layout.MasterKey(tj.TrackID), err)
	}

	// Verify
	tj.transition(State{Phase: PhaseVerifying})
	ok, err := r.gate.AlreadyPublished(ctx, tj.TrackID)
	if err != nil {
		return res, storageErr("verify", layout.TrackPrefix(tj.TrackID), err)
	}
	if !ok {
		return res, Wrap(ErrVerificationFailure, "verify", "master manifest missing after upload", nil)
	}
	return res, nil
}

// download tries each candidate source key in order.
func (r *Runner) download(ctx context.Context, tj *TrackJob, dest string) error {
	candidates := r.opts.Layout.SourceCandidates(tj.TrackID)
	for _, key := range candidates {
		data, err := r.gateway.Fetch(ctx, key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return storageErr("download", key, err)
		}
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return Wrap(ErrTransientIO, "download", dest, err)
		}
		tj.SourceKey = key
		logger.Debug("source downloaded",
			logger.String("trackId", tj.TrackID),
			logger.String("key", key),
			logger.Int("bytes", len(data)))
		return nil
	}
	return Wrap(ErrSourceNotFound, "download", fmt.Sprintf("tried %v", candidates), nil)
}

// record upserts the catalog entry when a catalog is configured.
func (r *Runner) record(ctx context.Context, trackID string, durationSeconds float64, publishedAt time.Time) error {
	if r.catalog == nil {
		return nil
	}
	rec := &model.TrackManifest{
		TrackID:         trackID,
		ManifestURL:     r.ManifestURL(trackID),
		DurationSeconds: durationSeconds,
		PublishedAt:     publishedAt.UTC().Truncate(time.Second),
	}
	if err := r.catalog.UpsertManifest(ctx, rec); err != nil {
		return Wrap(ErrTransientIO, "catalog", trackID, err)
	}
	return nil
}

// localName reports whether a playlist URI names a file in the same directory.
func localName(uri string) bool {
	return uri != "" && uri != "." && uri != ".." && !strings.ContainsAny(uri, "/\\:?#")
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
