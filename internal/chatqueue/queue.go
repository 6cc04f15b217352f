// ABOUTME: Per-chat FIFO execution: events of one chat run one at a time, in arrival order
// ABOUTME: Different chats run concurrently; a chat's goroutine exits once its queue drains

package chatqueue

import "sync"

// Queue runs submitted tasks serially per key. The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	pending map[string][]func()
	wg      sync.WaitGroup
}

// Submit queues fn behind earlier tasks with the same key. It never blocks
// on the task itself.
func (q *Queue) Submit(key string, fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending == nil {
		q.pending = make(map[string][]func())
	}
	if tasks, running := q.pending[key]; running {
		q.pending[key] = append(tasks, fn)
		return
	}
	q.pending[key] = []func(){}
	q.wg.Add(1)
	go q.drain(key, fn)
}

func (q *Queue) drain(key string, fn func()) {
	defer q.wg.Done()
	for {
		fn()

		q.mu.Lock()
		tasks := q.pending[key]
		if len(tasks) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		fn = tasks[0]
		q.pending[key] = tasks[1:]
		q.mu.Unlock()
	}
}

// Active returns the number of keys with queued or running tasks.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until every submitted task has finished.
func (q *Queue) Wait() {
	q.wg.Wait()
}
