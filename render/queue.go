package render

import (
	"sync"

	"github.com/gammazero/deque"
)

// Event is a unit of work that has to run on the render goroutine.
type Event func()

// Queue is an unbounded FIFO of events. Enqueue never blocks and never
// drops; DrainInto hands every queued event out exactly once.
type Queue struct {
	mu     sync.Mutex
	events deque.Deque[Event]
}

func (q *Queue) Enqueue(ev Event) {
	q.mu.Lock()
	q.events.PushBack(ev)
	q.mu.Unlock()
}

// DrainInto empties the queue in one step and passes the events to sink
// in insertion order. sink runs without the queue lock held, so it may
// enqueue again; those events are kept for the next drain. Returns the
// number of events handed out.
func (q *Queue) DrainInto(sink func(Event)) int {
	q.mu.Lock()
	n := q.events.Len()
	if n == 0 {
		q.mu.Unlock()
		return 0
	}
	drained := make([]Event, n)
	for i := range drained {
		drained[i] = q.events.PopFront()
	}
	q.mu.Unlock()

	for _, ev := range drained {
		sink(ev)
	}
	return n
}

// Discard drops everything queued and returns how many events were lost.
func (q *Queue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.events.Len()
	q.events.Clear()
	return n
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.events.Len()
}
