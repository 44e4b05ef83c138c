package workerpool

import (
	"container/heap"
	"time"
)

// task is one scheduled unit of work: a function ready to run no earlier
// than readyAt. seq breaks ties between equal readyAt values so the heap
// stays a stable FIFO within the same instant.
type task struct {
	readyAt time.Time
	seq     int64
	fn      func()
}

// taskHeap is a min-heap ordered by (readyAt, seq), giving the pool a
// single dequeue point for immediate work, delayed work, and shutdown.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].readyAt.Equal(h[j].readyAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].readyAt.Before(h[j].readyAt)
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(*task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func newTaskHeap() *taskHeap {
	h := &taskHeap{}
	heap.Init(h)
	return h
}
