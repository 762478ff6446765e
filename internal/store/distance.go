package store

import (
	"container/heap"
	"sort"
)

// squaredL2 is the squared Euclidean distance. Accumulation is in float64 so
// results do not depend on summation order across platforms.
func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// less orders neighbors by distance, then by ID for stable ties.
func less(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// neighborHeap is a max-heap on (distance, id) holding the current best k.
type neighborHeap []Neighbor

func (h neighborHeap) Len() int           { return len(h) }
func (h neighborHeap) Less(i, j int) bool { return less(h[j], h[i]) }
func (h neighborHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *neighborHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// topK collects the k best neighbors offered to it.
type topK struct {
	k int
	h neighborHeap
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(neighborHeap, 0, k)}
}

func (t *topK) offer(n Neighbor) {
	if t.k <= 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, n)
		return
	}
	if less(n, t.h[0]) {
		t.h[0] = n
		heap.Fix(&t.h, 0)
	}
}

// sorted returns the collected neighbors by ascending distance.
func (t *topK) sorted() []Neighbor {
	out := append([]Neighbor(nil), t.h...)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
