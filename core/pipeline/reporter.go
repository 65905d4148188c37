package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"hlsladder/core/job"
	"hlsladder/logger"

	"github.com/mattn/go-isatty"
)

// Reporter emits a progress line after every job. The structured log entry
// is always written; the one-line human rendering only goes to terminals.
type Reporter struct {
	out   io.Writer
	human bool
}

// NewReporter writes the human progress line to out when out is a terminal.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out, human: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// JobFinished reports one outcome against the run counters.
func (r *Reporter) JobFinished(out job.Outcome, snap Snapshot) {
	fields := []logger.Field{
		logger.String("trackId", out.TrackID),
		logger.Int("done", snap.Done()),
		logger.Int("total", snap.Total),
		logger.Int("succeeded", snap.Succeeded),
		logger.Int("skipped", snap.Skipped),
		logger.Int("failed", snap.Failed),
		logger.Int("inFlight", snap.InFlight),
		logger.Duration("took", out.Duration),
		logger.Duration("eta", snap.ETA),
	}
	if out.Err != nil {
		logger.Warn("track failed", append(fields, logger.ErrorField(out.Err))...)
	} else {
		logger.Info("track finished", fields...)
	}

	if r.human {
		fmt.Fprintf(r.out, "\r[%d/%d] ok=%d skipped=%d failed=%d running=%d eta=%s ",
			snap.Done(), snap.Total, snap.Succeeded, snap.Skipped, snap.Failed, snap.InFlight,
			snap.ETA.Round(time.Second))
	}
}

// Final logs the end-of-run report.
func (r *Reporter) Final(s Summary) {
	if r.human {
		fmt.Fprintln(r.out)
	}
	logger.Info("run finished",
		logger.String("runId", s.RunID),
		logger.Int("total", s.Total),
		logger.Int("succeeded", s.Succeeded),
		logger.Int("skipped", s.Skipped),
		logger.Int("failed", s.Failed),
		logger.Int("notStarted", len(s.NotStarted)),
		logger.Bool("interrupted", s.Interrupted),
		logger.Duration("elapsed", s.Elapsed))
}
