package perceptions

import (
	"context"
	"sync"
	"sync/atomic"
)

// Queue is an unbounded FIFO of perceptions waiting to be processed.
//
// Push never blocks and never drops. Len can be read from any goroutine
// without taking the queue lock, which is what turns use to poll for
// interruptions at fragment boundaries.
type Queue struct {
	mu     sync.Mutex
	items  []Perception
	length atomic.Int64

	// updateSignal is closed and replaced on every push to wake up waiters.
	updateSignal chan struct{}
}

func NewQueue() *Queue {
	return &Queue{updateSignal: make(chan struct{})}
}

func (q *Queue) Push(p Perception) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.length.Store(int64(len(q.items)))
	close(q.updateSignal)
	q.updateSignal = make(chan struct{})
	q.mu.Unlock()
}

func (q *Queue) Len() int {
	return int(q.length.Load())
}

// TryPop removes and returns the oldest perception if there is one.
func (q *Queue) TryPop() (Perception, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Pop blocks until a perception is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Perception, error) {
	for {
		q.mu.Lock()
		if p, ok := q.popLocked(); ok {
			q.mu.Unlock()
			return p, nil
		}
		signal := q.updateSignal
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Perception{}, ctx.Err()
		case <-signal:
		}
	}
}

// Snapshot returns a copy of the queued perceptions, oldest first.
func (q *Queue) Snapshot() []Perception {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Perception(nil), q.items...)
}

func (q *Queue) popLocked() (Perception, bool) {
	if len(q.items) == 0 {
		return Perception{}, false
	}
	p := q.items[0]
	q.items[0] = Perception{}
	q.items = q.items[1:]
	q.length.Store(int64(len(q.items)))
	return p, true
}
