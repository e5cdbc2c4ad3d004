package scheduler

import "time"

// entry is one queued occurrence.
type entry struct {
	when  time.Time
	seq   uint64
	event *Event
}

// eventQueue is a container/heap min-heap ordered by when, then by
// insertion sequence.
type eventQueue []*entry

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].when.Equal(q[j].when) {
		return q[i].seq < q[j].seq
	}
	return q[i].when.Before(q[j].when)
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*entry)) } //nolint:forcetypeassert // heap contract

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}
