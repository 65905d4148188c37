package pipeline

import (
	"errors"
	"testing"
	"time"

	"hlsladder/core/job"

	"github.com/stretchr/testify/assert"
)

func TestProgressCounters(t *testing.T) {
	p := NewProgress(4, 1)
	p.Started()
	p.Started()
	assert.Equal(t, 2, p.Snapshot().InFlight)

	p.Finished(job.Outcome{TrackID: "a", Duration: time.Second})
	snap := p.Finished(job.Outcome{TrackID: "b", Skipped: true, Duration: time.Second})
	assert.Equal(t, 2, snap.Succeeded)
	assert.Equal(t, 1, snap.Skipped)
	assert.Equal(t, 0, snap.InFlight)

	p.Started()
	snap = p.Finished(job.Outcome{TrackID: "c", Err: errors.New("boom"), Duration: time.Second})
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 3, snap.Done())
	assert.Equal(t, 1, snap.Remaining())
}

func TestProgressETAUsesLastFiveDurations(t *testing.T) {
	p := NewProgress(10, 1)
	// An early slow job falls out of the window.
	p.Finished(job.Outcome{Duration: time.Hour})
	for i := 0; i < etaWindow; i++ {
		p.Finished(job.Outcome{Duration: 2 * time.Second})
	}
	snap := p.Snapshot()
	assert.Equal(t, 2*time.Second, snap.AvgJob)
	assert.Equal(t, 4, snap.Remaining())
	assert.Equal(t, 8*time.Second, snap.ETA)
}

func TestProgressETAAccountsForWorkers(t *testing.T) {
	p := NewProgress(7, 2)
	p.Finished(job.Outcome{Duration: 10 * time.Second})
	snap := p.Snapshot()
	// Six remaining jobs, two at a time.
	assert.Equal(t, 30*time.Second, snap.ETA)
}

func TestProgressNoETABeforeFirstJob(t *testing.T) {
	snap := NewProgress(3, 2).Snapshot()
	assert.Zero(t, snap.ETA)
	assert.Zero(t, snap.AvgJob)
}
