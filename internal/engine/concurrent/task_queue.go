package concurrent

import (
	"sync"
	"sync/atomic"

	"github.com/canvas-sync/canvas-sync/internal/engine/types"
)

type itemKind uint8

const (
	kindTask itemKind = iota + 1
	kindTerminate
)

// Item is a queue element: either a task to run or a request for the
// consuming worker to exit.
type Item struct {
	kind itemKind
	task *types.DownloadTask
}

// TaskItem wraps a task for the queue
func TaskItem(t *types.DownloadTask) Item {
	return Item{kind: kindTask, task: t}
}

// TerminateItem tells exactly one worker to exit
func TerminateItem() Item {
	return Item{kind: kindTerminate}
}

func (it Item) IsTerminate() bool {
	return it.kind == kindTerminate
}

// Task returns the wrapped task and false for a terminate item
func (it Item) Task() (*types.DownloadTask, bool) {
	if it.kind != kindTask {
		return nil, false
	}
	return it.task, true
}

// TaskQueue is an unbounded thread-safe FIFO
type TaskQueue struct {
	items       []Item
	head        int
	mu          sync.Mutex
	cond        *sync.Cond
	idleWorkers int64 // Atomic counter for workers blocked in Pop
}

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends to the tail. It never blocks on consumers.
func (q *TaskQueue) Push(it Item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.cond.Signal()
	q.mu.Unlock()
}

// PushTerminate enqueues n terminate items, one per worker
func (q *TaskQueue) PushTerminate(n int) {
	q.mu.Lock()
	for i := 0; i < n; i++ {
		q.items = append(q.items, TerminateItem())
	}
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Pop blocks until an item is available and returns the oldest one
func (q *TaskQueue) Pop() Item {
	atomic.AddInt64(&q.idleWorkers, 1)

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.head >= len(q.items) {
		q.cond.Wait()
	}

	atomic.AddInt64(&q.idleWorkers, -1)

	it := q.items[q.head]
	q.items[q.head] = Item{}
	q.head++
	if q.head > len(q.items)/2 {
		q.items = append([]Item(nil), q.items[q.head:]...)
		q.head = 0
	}
	return it
}

func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *TaskQueue) IdleWorkers() int64 {
	return atomic.LoadInt64(&q.idleWorkers)
}
