package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"hlsladder/storage"
)

// workSet says where the track ids of a run come from. Exactly one source
// may be set.
type workSet struct {
	All        bool
	Tracks     []string
	TracksFile string
	Limit      int
}

func (w workSet) validate() error {
	sources := 0
	if w.All {
		sources++
	}
	if len(w.Tracks) > 0 {
		sources++
	}
	if w.TracksFile != "" {
		sources++
	}
	if sources != 1 {
		return fmt.Errorf("exactly one of --all, --track or --tracks-file is required")
	}
	if w.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	return nil
}

// lister is the listing capability --all needs.
type lister interface {
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// resolve returns the ordered, de-duplicated ids of the run. The bucket is
// only consulted for --all.
func (w workSet) resolve(ctx context.Context, objects lister, layout storage.Layout) ([]string, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}

	var ids []string
	switch {
	case w.All:
		found, err := listSourceIDs(ctx, objects, layout)
		if err != nil {
			return nil, err
		}
		ids = found
	case w.TracksFile != "":
		f, err := os.Open(w.TracksFile)
		if err != nil {
			return nil, fmt.Errorf("open tracks file: %w", err)
		}
		defer f.Close()
		read, err := readTrackIDs(f)
		if err != nil {
			return nil, fmt.Errorf("read tracks file %s: %w", w.TracksFile, err)
		}
		ids = read
	default:
		ids = w.Tracks
	}

	ids = dedupe(ids)
	if w.Limit > 0 && len(ids) > w.Limit {
		ids = ids[:w.Limit]
	}
	return ids, nil
}

// listSourceIDs lists <audio>/ for mp3 objects, sorted by id.
func listSourceIDs(ctx context.Context, objects lister, layout storage.Layout) ([]string, error) {
	if objects == nil {
		return nil, fmt.Errorf("--all needs object storage access")
	}
	infos, err := objects.List(ctx, layout.SourceListPrefix())
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	var ids []string
	for _, info := range infos {
		if id, ok := layout.TrackIDFromSourceKey(info.Key); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// readTrackIDs reads one id per line; blank lines and # comments are ignored.
func readTrackIDs(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

// dedupe keeps first occurrences. Malformed ids are left for the job to reject.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
