package browser

import "container/heap"

// pendingTask is an enqueued extraction awaiting admission (spec §3
// "PendingTask"). seq is a monotone enqueue sequence number used to break
// priority ties FIFO.
type pendingTask struct {
	priority int
	seq      uint64
	admit    chan error // nil on normal admission, an error when rejected (e.g. shutdown)
	index    int        // heap.Interface bookkeeping
}

// taskHeap is a max-heap on (priority desc, seq asc), satisfying spec §5's
// "strictly priority-first, FIFO within priority" ordering guarantee.
type taskHeap []*pendingTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*pendingTask)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

var _ heap.Interface = (*taskHeap)(nil)
