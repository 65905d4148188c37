package pipeline

import (
	"sync"
	"time"

	"hlsladder/core/job"
)

// etaWindow is how many recent job durations feed the ETA.
const etaWindow = 5

// Snapshot is a consistent copy of the run counters.
type Snapshot struct {
	Total     int
	Succeeded int // published or already published
	Skipped   int // subset of Succeeded
	Failed    int
	InFlight  int
	Elapsed   time.Duration
	AvgJob    time.Duration
	ETA       time.Duration
}

// Done is how many jobs reached a terminal state.
func (s Snapshot) Done() int {
	return s.Succeeded + s.Failed
}

// Remaining is how many jobs have not finished yet, in flight included.
func (s Snapshot) Remaining() int {
	if r := s.Total - s.Done(); r > 0 {
		return r
	}
	return 0
}

// Progress holds the process-wide counters of one run. Workers report starts
// and finishes; readers take snapshots.
type Progress struct {
	mu        sync.Mutex
	total     int
	workers   int
	succeeded int
	skipped   int
	failed    int
	inFlight  int
	recent    []time.Duration
	start     time.Time
	now       func() time.Time
}

// NewProgress starts the clock for a run of total jobs over workers workers.
func NewProgress(total, workers int) *Progress {
	if workers < 1 {
		workers = 1
	}
	return &Progress{total: total, workers: workers, start: time.Now(), now: time.Now}
}

// Started marks one more job as in flight.
func (p *Progress) Started() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight++
}

// Finished records a job outcome and returns the updated snapshot.
func (p *Progress) Finished(out job.Outcome) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inFlight > 0 {
		p.inFlight--
	}
	switch {
	case out.Err != nil:
		p.failed++
	case out.Skipped:
		p.succeeded++
		p.skipped++
	default:
		p.succeeded++
	}

	p.recent = append(p.recent, out.Duration)
	if len(p.recent) > etaWindow {
		p.recent = p.recent[len(p.recent)-etaWindow:]
	}
	return p.snapshotLocked()
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() Snapshot {
	s := Snapshot{
		Total:     p.total,
		Succeeded: p.succeeded,
		Skipped:   p.skipped,
		Failed:    p.failed,
		InFlight:  p.inFlight,
		Elapsed:   p.now().Sub(p.start),
	}
	if len(p.recent) == 0 {
		return s
	}

	var sum time.Duration
	for _, d := range p.recent {
		sum += d
	}
	s.AvgJob = sum / time.Duration(len(p.recent))

	// Remaining jobs run workers at a time.
	rounds := (s.Remaining() + p.workers - 1) / p.workers
	s.ETA = s.AvgJob * time.Duration(rounds)
	return s
}
