package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/coresim/pkg/model"
)

func task(id int, total int) *model.Task {
	return model.NewTask(id, "p", model.KindX, total)
}

func ids(views []model.TaskView) []int {
	out := make([]int, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestQueue_FIFO(t *testing.T) {
	q := New()
	q.Push(task(1, 5))
	q.Push(task(2, 1))
	q.PushFront(task(3, 9))

	assert.Equal(t, []int{3, 1, 2}, ids(q.Snapshot()))
	got, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 3, got.ID)
	assert.Equal(t, 2, q.Len())
}

func TestQueue_PopEmpty(t *testing.T) {
	q := New()
	got, ok := q.Pop()
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestQueue_SortedInsertIsStable(t *testing.T) {
	q := NewSorted()
	q.Push(task(1, 5))
	q.Push(task(2, 2))
	q.Push(task(3, 5))
	q.Push(task(4, 1))
	q.Push(task(5, 2))

	assert.Equal(t, []int{4, 2, 5, 1, 3}, ids(q.Snapshot()))
}

func TestQueue_SortedAfterEveryInsert(t *testing.T) {
	q := NewSorted()
	for i, total := range []int{7, 3, 9, 3, 1, 8, 2, 2} {
		q.Push(task(i+1, total))
		snap := q.Snapshot()
		for j := 1; j < len(snap); j++ {
			require.LessOrEqual(t, snap[j-1].Total, snap[j].Total, "unsorted after insert %d: %v", i, snap)
		}
	}
}

func TestQueue_ConcurrentPushPop(t *testing.T) {
	q := New()
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(task(id, 1))
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	var mu sync.Mutex
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				tk, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				if seen[tk.ID] {
					t.Errorf("task %d popped twice", tk.ID)
				}
				seen[tk.ID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestForPolicy(t *testing.T) {
	assert.True(t, ForPolicy(model.PolicySJF).sorted)
	assert.False(t, ForPolicy(model.PolicyRR).sorted)
}
