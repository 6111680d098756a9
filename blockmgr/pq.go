package blockmgr

import "container/heap"

// gcPriorityQueue orders old/in_gc candidate extents by garbage count
// descending. It implements container/heap.Interface directly over a
// slice of *entry, the same mechanism weaviate's hnsw compactv2 merger
// reaches for, and tracks each entry's heap position in entry.pqIndex
// so remove/update after an out-of-band mutation (mark_garbage) is
// O(log n) rather than a linear scan.
type gcPriorityQueue struct {
	items []*entry
}

func newGCPriorityQueue() *gcPriorityQueue {
	return &gcPriorityQueue{}
}

func (q *gcPriorityQueue) Len() int { return len(q.items) }

func (q *gcPriorityQueue) Less(i, j int) bool {
	return CompareGarbage(q.items[i], q.items[j])
}

func (q *gcPriorityQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].pqIndex = i
	q.items[j].pqIndex = j
}

func (q *gcPriorityQueue) Push(x interface{}) {
	e := x.(*entry)
	e.pqIndex = len(q.items)
	q.items = append(q.items, e)
}

func (q *gcPriorityQueue) Pop() interface{} {
	n := len(q.items)
	e := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	e.pqIndex = -1
	return e
}

// push inserts e into the queue.
func (q *gcPriorityQueue) push(e *entry) {
	heap.Push(q, e)
}

// peek returns the current top without removing it, or nil if empty.
func (q *gcPriorityQueue) peek() *entry {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// pop removes and returns the current top, or nil if empty.
func (q *gcPriorityQueue) pop() *entry {
	if len(q.items) == 0 {
		return nil
	}
	return heap.Pop(q).(*entry)
}

// remove takes e out of the queue no matter where it sits.
func (q *gcPriorityQueue) remove(e *entry) {
	if e.pqIndex < 0 {
		return
	}
	heap.Remove(q, e.pqIndex)
}

// update re-establishes heap order after e's garbage count changed.
func (q *gcPriorityQueue) update(e *entry) {
	if e.pqIndex < 0 {
		return
	}
	heap.Fix(q, e.pqIndex)
}

func (q *gcPriorityQueue) empty() bool { return len(q.items) == 0 }
