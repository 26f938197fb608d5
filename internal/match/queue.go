package match

import (
	"container/heap"

	"github.com/tankwar/server/internal/wire"
)

// commandHeap orders queued commands by ascending sequence number
// (spec §4.4: "enqueued into a min-heap by sequence_number").
type commandHeap []wire.Command

func (h commandHeap) Len() int            { return len(h) }
func (h commandHeap) Less(i, j int) bool  { return h[i].Seq < h[j].Seq }
func (h commandHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *commandHeap) Push(x any)         { *h = append(*h, x.(wire.Command)) }
func (h *commandHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// playerQueue is one player's bounded priority queue of pending
// commands. Capacity overflow is dropped silently (spec §4.4).
type playerQueue struct {
	h   commandHeap
	cap int
}

func newPlayerQueue(capacity int) *playerQueue {
	q := &playerQueue{cap: capacity}
	heap.Init(&q.h)
	return q
}

// Offer enqueues cmd, dropping it without error if the queue is full.
func (q *playerQueue) Offer(cmd wire.Command) {
	if len(q.h) >= q.cap {
		return
	}
	heap.Push(&q.h, cmd)
}

// Len reports the number of pending commands.
func (q *playerQueue) Len() int { return len(q.h) }

// Pop removes and returns the lowest-sequence command, if any.
func (q *playerQueue) Pop() (wire.Command, bool) {
	if len(q.h) == 0 {
		return wire.Command{}, false
	}
	return heap.Pop(&q.h).(wire.Command), true
}

// Drain empties the queue (used on elimination and reconnection, per
// spec §4.4/§4.4 "drains p's queue" / "drops that player's queued
// commands").
func (q *playerQueue) Drain() {
	q.h = q.h[:0]
}
