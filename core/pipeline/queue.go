// Package pipeline schedules track jobs over a bounded worker pool and keeps
// the run's progress counters and failure ledger.
package pipeline

import "sync"

// Queue is the shared work queue. Every id is handed out at most once.
type Queue struct {
	mu  sync.Mutex
	ids []string
}

// NewQueue copies ids into a new queue, preserving order.
func NewQueue(ids []string) *Queue {
	return &Queue{ids: append([]string(nil), ids...)}
}

// Pop removes and returns the next id.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

// Len reports how many ids are still waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

// Drain empties the queue and returns what was left.
func (q *Queue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	rest := q.ids
	q.ids = nil
	return rest
}
