package store

// FlatIndex scans every stored vector. It is always trained.
type FlatIndex struct {
	dim     int
	vectors [][]float32
}

// Verify interface implementation at compile time
var _ Index = (*FlatIndex)(nil)

// NewFlatIndex creates an empty exact index.
func NewFlatIndex(dimension int) *FlatIndex {
	return &FlatIndex{dim: dimension}
}

func (f *FlatIndex) Kind() IndexKind         { return KindFlat }
func (f *FlatIndex) Dimension() int          { return f.dim }
func (f *FlatIndex) Count() int              { return len(f.vectors) }
func (f *FlatIndex) IsTrained() bool         { return true }
func (f *FlatIndex) NumPartitions() int      { return 1 }
func (f *FlatIndex) Train([][]float32) error { return nil }

// Add copies vectors into the index.
func (f *FlatIndex) Add(vectors [][]float32) error {
	if err := checkDims(f.dim, vectors...); err != nil {
		return err
	}
	for _, v := range vectors {
		f.vectors = append(f.vectors, append([]float32(nil), v...))
	}
	return nil
}

// Search computes the distance to every vector.
func (f *FlatIndex) Search(query []float32, k int) []Neighbor {
	if len(query) != f.dim || k <= 0 || len(f.vectors) == 0 {
		return []Neighbor{}
	}
	top := newTopK(min(k, len(f.vectors)))
	for id, v := range f.vectors {
		top.offer(Neighbor{ID: id, Distance: squaredL2(query, v)})
	}
	return top.sorted()
}
