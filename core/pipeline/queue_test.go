package pipeline

import (
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueOrderAndDrain(t *testing.T) {
	q := NewQueue([]string{"a", "b", "c"})
	assert.Equal(t, 3, q.Len())

	id, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "a", id)
	assert.Equal(t, []string{"b", "c"}, q.Drain())

	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestQueueHandsOutEachIDOnce(t *testing.T) {
	ids := make([]string, 200)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}
	q := NewQueue(ids)

	var (
		mu  sync.Mutex
		got []string
		wg  sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				got = append(got, id)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	sort.Strings(got)
	want := append([]string(nil), ids...)
	sort.Strings(want)
	assert.Equal(t, want, got)
}
