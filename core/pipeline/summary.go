package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"hlsladder/core/job"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxMessageLen truncates error messages in the printed summary. The ledger
// file keeps only ids, and the log keeps full errors.
const maxMessageLen = 120

// Summary is the result of one scheduler run.
type Summary struct {
	RunID       string
	Total       int
	Succeeded   int
	Skipped     int
	Failed      int
	NotStarted  []string // ids left in the queue after an interrupt
	Interrupted bool
	Elapsed     time.Duration
	Ledger      *Ledger
}

// ExitCode is 0 for a clean run and 1 when anything failed or was left undone.
func (s Summary) ExitCode() int {
	if s.Failed > 0 || len(s.NotStarted) > 0 {
		return 1
	}
	return 0
}

// RenderSummary writes the totals and a table of failures.
func RenderSummary(w io.Writer, s Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished in %s\n", s.RunID, s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "  total:       %d\n", s.Total)
	fmt.Fprintf(&b, "  published:   %d\n", s.Succeeded-s.Skipped)
	fmt.Fprintf(&b, "  skipped:     %d (already published)\n", s.Skipped)
	fmt.Fprintf(&b, "  failed:      %d\n", s.Failed)
	if s.Interrupted {
		fmt.Fprintf(&b, "  not started: %d (interrupted)\n", len(s.NotStarted))
	}

	if s.Ledger != nil && s.Ledger.Len() > 0 {
		entries := s.Ledger.Entries()
		rows := make([][]string, 0, len(entries))
		for _, f := range entries {
			rows = append(rows, []string{f.TrackID, kindName(f.Err), truncate(errorText(f.Err), maxMessageLen)})
		}
		b.WriteString("\n")
		b.WriteString(renderTable([]string{"TRACK", "KIND", "ERROR"}, rows))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderTable(headers []string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func kindName(err error) string {
	if kind := job.Kind(err); kind != nil {
		return kind.Error()
	}
	return "error"
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	// Table cells are single-line.
	return strings.Join(strings.Fields(err.Error()), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
