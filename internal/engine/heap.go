package engine

import (
	"container/heap"

	"github.com/sonpython/gridmatch/internal/model"
)

// commandHeap is a min-heap of pending CommandMessages ordered by
// (tick, received_order), per spec.md section 3's CommandMessage total
// order.
type commandHeap []model.CommandMessage

func (h commandHeap) Len() int { return len(h) }
func (h commandHeap) Less(i, j int) bool { return h[i].Less(h[j]) }
func (h commandHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *commandHeap) Push(x interface{}) {
	*h = append(*h, x.(model.CommandMessage))
}

func (h *commandHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h commandHeap) Peek() model.CommandMessage {
	return h[0]
}

var _ = heap.Interface(&commandHeap{})
