package ttsqueue

import "container/heap"

// jobHeap orders pending jobs by (priority descending, submission-time
// ascending, then submission sequence ascending). container/heap pops the
// element Less ranks first, so Less compares those fields directly.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority // higher priority pops first
	}
	if !h[i].SubmittedAt.Equal(h[j].SubmittedAt) {
		return h[i].SubmittedAt.Before(h[j].SubmittedAt)
	}
	return h[i].submitSeq < h[j].submitSeq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*jobHeap)(nil)
