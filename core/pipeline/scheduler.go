package pipeline

import (
	"context"
	"io"
	"sync"
	"time"

	"hlsladder/core/job"
	"hlsladder/logger"
)

// DefaultConcurrency is the worker count when none is configured.
const DefaultConcurrency = 2

// JobRunner processes one track. *job.Runner implements it.
type JobRunner interface {
	Run(ctx context.Context, trackID string) job.Outcome
}

// StatusSink mirrors run progress to an external store. Errors are logged
// and never stop the run.
type StatusSink interface {
	RunStarted(ctx context.Context, runID string, total int) error
	JobFinished(ctx context.Context, runID string, out job.Outcome, snap Snapshot) error
	RunFinished(ctx context.Context, s Summary) error
}

// Options configures a Scheduler.
type Options struct {
	RunID       string
	Concurrency int
	Metrics     *Metrics   // optional
	Status      StatusSink // optional
	Reporter    *Reporter  // optional; defaults to a log-only reporter
}

// Scheduler runs track jobs on a fixed-size worker pool.
type Scheduler struct {
	runner JobRunner
	opts   Options
}

func NewScheduler(runner JobRunner, opts Options) *Scheduler {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Reporter == nil {
		opts.Reporter = NewReporter(io.Discard)
	}
	return &Scheduler{runner: runner, opts: opts}
}

// Run processes ids until the queue is empty or ctx is cancelled. Workers
// check ctx between jobs only: a job that has started always runs to its end
// on a context detached from ctx's cancellation.
func (s *Scheduler) Run(ctx context.Context, ids []string) Summary {
	start := time.Now()
	queue := NewQueue(ids)
	workers := s.opts.Concurrency
	if workers > len(ids) {
		workers = len(ids)
	}
	progress := NewProgress(len(ids), workers)
	ledger := NewLedger()
	statusCtx := context.WithoutCancel(ctx)

	logger.Info("run started",
		logger.String("runId", s.opts.RunID),
		logger.Int("tracks", len(ids)),
		logger.Int("workers", workers))
	s.status("run started", func() error {
		return s.opts.Status.RunStarted(statusCtx, s.opts.RunID, len(ids))
	})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.work(ctx, worker, queue, progress, ledger)
		}(i)
	}
	wg.Wait()

	snap := progress.Snapshot()
	summary := Summary{
		RunID:      s.opts.RunID,
		Total:      len(ids),
		Succeeded:  snap.Succeeded,
		Skipped:    snap.Skipped,
		Failed:     snap.Failed,
		NotStarted: queue.Drain(),
		Elapsed:    time.Since(start),
		Ledger:     ledger,
	}
	summary.Interrupted = ctx.Err() != nil && len(summary.NotStarted) > 0

	s.opts.Reporter.Final(summary)
	s.status("run finished", func() error {
		return s.opts.Status.RunFinished(statusCtx, summary)
	})
	return summary
}

func (s *Scheduler) work(ctx context.Context, worker int, queue *Queue, progress *Progress, ledger *Ledger) {
	jobCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown requested, worker stopping",
				logger.Int("worker", worker),
				logger.Int("pending", queue.Len()))
			return
		default:
		}

		trackID, ok := queue.Pop()
		if !ok {
			return
		}

		progress.Started()
		s.opts.Metrics.jobStarted()
		logger.Debug("dequeued track", logger.Int("worker", worker), logger.String("trackId", trackID))

		out := s.runner.Run(jobCtx, trackID)

		if out.Err != nil {
			ledger.Append(trackID, out.Err)
		}
		snap := progress.Finished(out)
		s.opts.Metrics.observe(out)
		s.opts.Reporter.JobFinished(out, snap)
		s.status("job finished", func() error {
			return s.opts.Status.JobFinished(jobCtx, s.opts.RunID, out, snap)
		})
	}
}

func (s *Scheduler) status(what string, fn func() error) {
	if s.opts.Status == nil {
		return
	}
	if err := fn(); err != nil {
		logger.Warn("failed to publish run status",
			logger.String("runId", s.opts.RunID),
			logger.String("event", what),
			logger.ErrorField(err))
	}
}
