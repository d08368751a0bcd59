package host

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrQueueClosed is returned when work is added after Close.
var ErrQueueClosed = errors.New("work queue closed")

// WorkQueue runs tasks asynchronously. Compute tasks run on a fixed set of
// workers; blocking tasks run on a separate, larger bounded pool so a task
// waiting on I/O or a timer never occupies a compute worker.
type WorkQueue interface {
	AddTask(task func()) error
	AddBlockingTask(task func()) error
	// Quiesce blocks until every task added so far, and every task those
	// tasks added, has finished.
	Quiesce()
	// Close quiesces the queue and stops its workers.
	Close()
}

type multiThreadedWorkQueue struct {
	mu      sync.Mutex
	ready   *sync.Cond
	idle    *sync.Cond
	tasks   []func()
	pending int
	closed  bool

	blocking *semaphore.Weighted
	workers  sync.WaitGroup
}

// NewMultiThreadedWorkQueue starts numThreads compute workers and allows up
// to numBlockingThreads blocking tasks to run at once.
func NewMultiThreadedWorkQueue(numThreads, numBlockingThreads int) WorkQueue {
	if numThreads < 1 {
		numThreads = 1
	}
	if numBlockingThreads < 1 {
		numBlockingThreads = 1
	}
	q := &multiThreadedWorkQueue{
		blocking: semaphore.NewWeighted(int64(numBlockingThreads)),
	}
	q.ready = sync.NewCond(&q.mu)
	q.idle = sync.NewCond(&q.mu)
	for range numThreads {
		q.workers.Go(q.work)
	}
	return q
}

func (q *multiThreadedWorkQueue) AddTask(task func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pending++
	q.tasks = append(q.tasks, task)
	q.ready.Signal()
	return nil
}

func (q *multiThreadedWorkQueue) AddBlockingTask(task func()) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending++
	q.mu.Unlock()

	go func() {
		defer q.finish()
		// Acquire only fails on context cancellation, which cannot happen here.
		_ = q.blocking.Acquire(context.Background(), 1)
		defer q.blocking.Release(1)
		task()
	}()
	return nil
}

func (q *multiThreadedWorkQueue) Quiesce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.pending > 0 {
		q.idle.Wait()
	}
}

func (q *multiThreadedWorkQueue) Close() {
	q.Quiesce()
	q.mu.Lock()
	q.closed = true
	q.ready.Broadcast()
	q.mu.Unlock()
	q.workers.Wait()
}

// work pops tasks until the queue is closed and drained.
func (q *multiThreadedWorkQueue) work() {
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 && !q.closed {
			q.ready.Wait()
		}
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return
		}
		task := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.run(task)
	}
}

func (q *multiThreadedWorkQueue) run(task func()) {
	defer q.finish()
	task()
}

func (q *multiThreadedWorkQueue) finish() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending--
	if q.pending == 0 {
		q.idle.Broadcast()
	}
}
