// Package timers implements the deadline-ordered timer queue used by the
// engines to track their own scheduled work.
package timers

import (
	"container/heap"
	"time"

	"github.com/wippyai/runloop"
)

// Entry is a scheduled timer.
type Entry struct {
	At    time.Time
	ID    uint64
	seq   uint64
	index int
}

// Queue orders timers by deadline, breaking ties by scheduling order.
// It is not safe for concurrent use.
type Queue struct {
	byID map[uint64]*Entry
	h    entryHeap
	seq  uint64
}

func New() *Queue {
	return &Queue{byID: make(map[uint64]*Entry)}
}

// Schedule arms timer id to fire at at, replacing any pending timer with
// the same id.
func (q *Queue) Schedule(id uint64, at time.Time) {
	q.seq++
	if e, ok := q.byID[id]; ok {
		e.At = at
		e.seq = q.seq
		heap.Fix(&q.h, e.index)
		return
	}
	e := &Entry{ID: id, At: at, seq: q.seq}
	q.byID[id] = e
	heap.Push(&q.h, e)
}

// Cancel disarms timer id and reports whether it was pending.
func (q *Queue) Cancel(id uint64) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&q.h, e.index)
	delete(q.byID, id)
	return true
}

// Pending reports whether timer id is armed.
func (q *Queue) Pending(id uint64) bool {
	_, ok := q.byID[id]
	return ok
}

// PopDue removes and returns every timer due at or before now, earliest
// first.
func (q *Queue) PopDue(now time.Time) []Entry {
	var due []Entry
	for len(q.h) > 0 && !q.h[0].At.After(now) {
		e := heap.Pop(&q.h).(*Entry)
		delete(q.byID, e.ID)
		due = append(due, *e)
	}
	return due
}

// Next returns the earliest deadline, and false when the queue is empty.
func (q *Queue) Next() (time.Time, bool) {
	if len(q.h) == 0 {
		return time.Time{}, false
	}
	return q.h[0].At, true
}

// Wake converts the earliest deadline into a runloop.Wake relative to now.
func (q *Queue) Wake(now time.Time) runloop.Wake {
	next, ok := q.Next()
	if !ok {
		return runloop.Idle
	}
	return runloop.After(next.Sub(now))
}

func (q *Queue) Len() int {
	return len(q.h)
}

type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].At.Equal(h[j].At) {
		return h[i].seq < h[j].seq
	}
	return h[i].At.Before(h[j].At)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
