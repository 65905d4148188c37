package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hlsladder/core/encoder"
	"hlsladder/core/job"
	"hlsladder/core/ladder"
	"hlsladder/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcRunner adapts a function to JobRunner.
type funcRunner func(ctx context.Context, trackID string) job.Outcome

func (f funcRunner) Run(ctx context.Context, trackID string) job.Outcome {
	return f(ctx, trackID)
}

type recordingSink struct {
	mu       sync.Mutex
	started  int
	finished []string
	final    *Summary
}

func (s *recordingSink) RunStarted(ctx context.Context, runID string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = total
	return nil
}

func (s *recordingSink) JobFinished(ctx context.Context, runID string, out job.Outcome, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, out.TrackID)
	return errors.New("redis unavailable")
}

func (s *recordingSink) RunFinished(ctx context.Context, summary Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.final = &summary
	return nil
}

func trackIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%02d", i)
	}
	return ids
}

func TestSchedulerBoundsConcurrency(t *testing.T) {
	var active, peak int32
	var mu sync.Mutex
	seen := map[string]int{}

	runner := funcRunner(func(ctx context.Context, trackID string) job.Outcome {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)

		mu.Lock()
		seen[trackID]++
		mu.Unlock()
		return job.Outcome{TrackID: trackID, Attempts: 1}
	})

	ids := trackIDs(20)
	summary := NewScheduler(runner, Options{Concurrency: 3}).Run(context.Background(), ids)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, 20, summary.Succeeded)
	assert.Equal(t, 0, summary.ExitCode())
	assert.Len(t, seen, 20)
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestSchedulerRecordsFailuresAndContinues(t *testing.T) {
	runner := funcRunner(func(ctx context.Context, trackID string) job.Outcome {
		if trackID == "t01" || trackID == "t03" {
			return job.Outcome{TrackID: trackID, Err: job.Wrap(job.ErrSourceNotFound, "download", "", nil)}
		}
		return job.Outcome{TrackID: trackID}
	})
	sink := &recordingSink{}

	summary := NewScheduler(runner, Options{RunID: "r1", Concurrency: 2, Status: sink}).Run(context.Background(), trackIDs(5))

	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.ExitCode())
	ids := summary.Ledger.IDs()
	sort.Strings(ids)
	assert.Equal(t, []string{"t01", "t03"}, ids)

	// Sink errors are logged, not fatal.
	assert.Equal(t, 5, sink.started)
	assert.Len(t, sink.finished, 5)
	require.NotNil(t, sink.final)
	assert.Equal(t, "r1", sink.final.RunID)
}

func TestSchedulerDrainsInFlightJobsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	release := make(chan struct{})
	var jobCtxErr error
	var ran []string

	runner := funcRunner(func(jobCtx context.Context, trackID string) job.Outcome {
		ran = append(ran, trackID)
		if trackID == "t00" {
			close(started)
			<-release
			jobCtxErr = jobCtx.Err()
		}
		return job.Outcome{TrackID: trackID}
	})

	done := make(chan Summary, 1)
	go func() {
		done <- NewScheduler(runner, Options{Concurrency: 1}).Run(ctx, trackIDs(3))
	}()

	<-started
	cancel()
	close(release)
	summary := <-done

	assert.NoError(t, jobCtxErr, "in-flight job must not see the cancellation")
	assert.Equal(t, []string{"t00"}, ran, "no job may start after shutdown")
	assert.Equal(t, 1, summary.Succeeded)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, []string{"t01", "t02"}, summary.NotStarted)
	assert.Equal(t, 1, summary.ExitCode())
}

func TestSchedulerEmptyWorkSet(t *testing.T) {
	runner := funcRunner(func(ctx context.Context, trackID string) job.Outcome {
		t.Fatalf("unexpected job %s", trackID)
		return job.Outcome{}
	})
	summary := NewScheduler(runner, Options{}).Run(context.Background(), nil)
	assert.Zero(t, summary.Total)
	assert.Equal(t, 0, summary.ExitCode())
}

// slowEncoder writes a one-segment rendition after a short pause.
type slowEncoder struct{}

func (slowEncoder) Encode(ctx context.Context, src string, tier ladder.RenditionSpec, outDir string) (encoder.Result, error) {
	time.Sleep(2 * time.Millisecond)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return encoder.Result{}, err
	}
	if err := os.WriteFile(filepath.Join(outDir, "segment_000.ts"), []byte{0x47}, 0644); err != nil {
		return encoder.Result{}, err
	}
	pl := "#EXTM3U\n#EXTINF:6.0,\nsegment_000.ts\n#EXT-X-ENDLIST\n"
	if err := os.WriteFile(filepath.Join(outDir, ladder.PlaylistName), []byte(pl), 0644); err != nil {
		return encoder.Result{}, err
	}
	return encoder.Result{Tier: tier.Name, SegmentCount: 1}, nil
}

func TestSchedulerWithTrackJobs(t *testing.T) {
	store := storage.NewMemoryStore()
	ids := trackIDs(6)
	for _, id := range ids {
		store.Seed("audio/"+id+".mp3", []byte("ID3"))
	}
	ids = append(ids, "missing")

	runner := job.NewRunner(storage.NewGateway(store, 0), slowEncoder{}, nil, job.Options{
		Layout:        storage.Layout{AudioPrefix: "audio", HLSPrefix: "hls", SourcePatterns: []string{"{prefix}/{id}.mp3"}},
		PublicBaseURL: "https://cdn.example.com",
		ScratchRoot:   t.TempDir(),
	})

	var mu sync.Mutex
	active := map[string]bool{}
	peak := 0
	runner.OnState(func(trackID string, attempt int, s job.State) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case s.Phase == job.PhaseDownloading:
			active[trackID] = true
		case s.Terminal():
			delete(active, trackID)
		}
		if len(active) > peak {
			peak = len(active)
		}
	})

	metrics, err := NewMetrics()
	require.NoError(t, err)
	summary := NewScheduler(runner, Options{Concurrency: 2, Metrics: metrics}).Run(context.Background(), ids)

	assert.LessOrEqual(t, peak, 2)
	assert.Equal(t, 6, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, []string{"missing"}, summary.Ledger.IDs())
	assert.ErrorIs(t, summary.Ledger.Entries()[0].Err, job.ErrSourceNotFound)
	assert.Equal(t, 1, summary.ExitCode())

	for _, id := range ids[:6] {
		_, _, ok := store.Object("hls/" + id + "/master.m3u8")
		assert.True(t, ok, id)
	}
	for _, key := range store.Keys() {
		assert.False(t, strings.HasPrefix(key, "hls/missing/"), key)
	}
}
