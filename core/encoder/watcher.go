package encoder

import (
	"path/filepath"
	"sync"

	"hlsladder/logger"

	"github.com/fsnotify/fsnotify"
)

// segmentWatcher counts .ts files appearing in a rendition directory while
// ffmpeg runs, logging each one as it lands.
type segmentWatcher struct {
	watcher *fsnotify.Watcher
	tier    string
	done    chan struct{}

	mu   sync.Mutex
	seen map[string]bool
}

func watchSegments(dir, tier string) (*segmentWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &segmentWatcher{
		watcher: watcher,
		tier:    tier,
		done:    make(chan struct{}),
		seen:    make(map[string]bool),
	}
	go w.loop()
	return w, nil
}

func (w *segmentWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 || filepath.Ext(event.Name) != ".ts" {
				continue
			}
			name := filepath.Base(event.Name)
			w.mu.Lock()
			fresh := !w.seen[name]
			w.seen[name] = true
			w.mu.Unlock()
			if fresh {
				logger.Debug("segment written", logger.String("tier", w.tier), logger.String("segment", name))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("segment watcher error", logger.String("tier", w.tier), logger.ErrorField(err))
		}
	}
}

// Close stops watching and returns the number of distinct segments seen.
func (w *segmentWatcher) Close() int {
	w.watcher.Close()
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
