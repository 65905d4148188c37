package pipeline

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// Failure is one terminal job failure.
type Failure struct {
	TrackID string
	Err     error
}

// Ledger is the append-only list of failed tracks of a run.
type Ledger struct {
	mu      sync.Mutex
	entries []Failure
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records a failed track.
func (l *Ledger) Append(trackID string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Failure{TrackID: trackID, Err: err})
}

// Entries returns a copy of the recorded failures in the order they happened.
func (l *Ledger) Entries() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Failure(nil), l.entries...)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// IDs returns the failed track ids.
func (l *Ledger) IDs() []string {
	entries := l.Entries()
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.TrackID)
	}
	return ids
}

// WriteFile writes one failed id per line so the file can be fed back with
// --tracks-file. With no failures a stale file at path is removed instead.
func (l *Ledger) WriteFile(path string) error {
	ids := l.IDs()
	if len(ids) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return os.WriteFile(path, []byte(strings.Join(ids, "\n")+"\n"), 0644)
}
