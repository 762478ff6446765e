package store

import (
	"fmt"
	"sort"
)

// invertedList holds the vectors assigned to one partition, with their
// positions in the engine's chunk list.
type invertedList struct {
	ids     []int
	vectors [][]float32
}

// IVFIndex partitions vectors by nearest k-means centroid and, at query
// time, scans only the nprobe partitions closest to the query.
type IVFIndex struct {
	dim       int
	nlist     int
	nprobe    int
	trained   bool
	centroids [][]float32
	lists     []invertedList
	count     int
}

// Verify interface implementation at compile time
var _ Index = (*IVFIndex)(nil)

// NewIVFIndex creates an untrained IVF index with nlist partitions.
func NewIVFIndex(dimension, nlist, nprobe int) *IVFIndex {
	nlist = max(nlist, 1)
	if nprobe <= 0 {
		nprobe = DefaultNProbe
	}
	return &IVFIndex{
		dim:    dimension,
		nlist:  nlist,
		nprobe: min(nprobe, nlist),
		lists:  make([]invertedList, nlist),
	}
}

func (ivf *IVFIndex) Kind() IndexKind    { return KindIVF }
func (ivf *IVFIndex) Dimension() int     { return ivf.dim }
func (ivf *IVFIndex) Count() int         { return ivf.count }
func (ivf *IVFIndex) IsTrained() bool    { return ivf.trained }
func (ivf *IVFIndex) NumPartitions() int { return ivf.nlist }

// NProbe returns how many partitions a search visits.
func (ivf *IVFIndex) NProbe() int { return ivf.nprobe }

// Train fits nlist centroids with k-means. At least nlist vectors are required.
func (ivf *IVFIndex) Train(vectors [][]float32) error {
	if len(vectors) < ivf.nlist {
		return fmt.Errorf("%w: have %d vectors, need at least %d partitions' worth",
			ErrInsufficientTraining, len(vectors), ivf.nlist)
	}
	if err := checkDims(ivf.dim, vectors...); err != nil {
		return err
	}
	ivf.centroids = kmeans(vectors, ivf.nlist, defaultKMeansIterations)
	ivf.trained = true
	return nil
}

// Add assigns each vector to its nearest centroid's list.
func (ivf *IVFIndex) Add(vectors [][]float32) error {
	if !ivf.trained {
		return ErrNotTrained
	}
	if err := checkDims(ivf.dim, vectors...); err != nil {
		return err
	}
	for _, v := range vectors {
		l := nearestCentroid(ivf.centroids, v)
		list := &ivf.lists[l]
		list.ids = append(list.ids, ivf.count)
		list.vectors = append(list.vectors, append([]float32(nil), v...))
		ivf.count++
	}
	return nil
}

// Search probes the nprobe closest partitions and scans them exactly.
func (ivf *IVFIndex) Search(query []float32, k int) []Neighbor {
	if !ivf.trained || len(query) != ivf.dim || k <= 0 || ivf.count == 0 {
		return []Neighbor{}
	}

	top := newTopK(min(k, ivf.count))
	for _, l := range ivf.probeOrder(query) {
		list := ivf.lists[l]
		for i, v := range list.vectors {
			top.offer(Neighbor{ID: list.ids[i], Distance: squaredL2(query, v)})
		}
	}
	return top.sorted()
}

// probeOrder returns the nprobe partition numbers nearest the query.
func (ivf *IVFIndex) probeOrder(query []float32) []int {
	type cand struct {
		list int
		dist float32
	}
	cands := make([]cand, len(ivf.centroids))
	for i, c := range ivf.centroids {
		cands[i] = cand{list: i, dist: squaredL2(query, c)}
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].list < cands[j].list
	})

	out := make([]int, 0, ivf.nprobe)
	for _, c := range cands[:min(ivf.nprobe, len(cands))] {
		out = append(out, c.list)
	}
	return out
}

// ListSizes reports how many vectors each partition holds.
func (ivf *IVFIndex) ListSizes() []int {
	sizes := make([]int, len(ivf.lists))
	for i, l := range ivf.lists {
		sizes[i] = len(l.ids)
	}
	return sizes
}
