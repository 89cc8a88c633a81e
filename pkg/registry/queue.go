package registry

import (
	"sync"

	"github.com/cuemby/streamharness/pkg/workservice"
)

// OutputQueue is a per-computation FIFO of commit requests awaiting
// batching by the commit aggregator. Append is called by execution
// goroutines, Pop by the single commit-aggregator goroutine; a mutex is
// sufficient here since neither side ever blocks while holding it.
type OutputQueue struct {
	mu    sync.Mutex
	items []*workservice.WorkItemCommitRequest
}

func newOutputQueue() *OutputQueue {
	return &OutputQueue{}
}

// Append adds a commit request to the tail of the queue.
func (q *OutputQueue) Append(req *workservice.WorkItemCommitRequest) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
}

// Pop removes and returns the item at the head of the queue, if any.
func (q *OutputQueue) Pop() (*workservice.WorkItemCommitRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len reports the current queue depth, for the status surface.
func (q *OutputQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
