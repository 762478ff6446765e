// Package store implements the baseline vector index engine: an exact flat
// L2 index or a k-means partitioned (IVF) index, the parallel chunk and
// metadata lists, and two-file persistence.
package store

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// IndexKind selects the index structure.
type IndexKind string

const (
	// KindFlat is an exact brute-force L2 index. It needs no training.
	KindFlat IndexKind = "flat"
	// KindIVF is an inverted-file index over k-means partitions.
	KindIVF IndexKind = "ivf"
)

// ParseIndexKind converts a string to an IndexKind.
func ParseIndexKind(s string) (IndexKind, error) {
	switch IndexKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindFlat, "":
		return KindFlat, nil
	case KindIVF:
		return KindIVF, nil
	default:
		return "", fmt.Errorf("unknown index kind %q (valid: flat, ivf)", s)
	}
}

// Partition bounds for IVF indexes.
const (
	MinPartitions = 4
	MaxPartitions = 100
	DefaultNProbe = 8
)

// PartitionCount derives the IVF list count from the expected corpus size:
// round(sqrt(expected)) clamped to [MinPartitions, MaxPartitions].
func PartitionCount(expected int) int {
	n := int(math.Round(math.Sqrt(float64(max(expected, 0)))))
	return min(max(n, MinPartitions), MaxPartitions)
}

// Neighbor is one search hit: a position in the engine's chunk list and its
// squared L2 distance to the query. Absent neighbors are simply not returned.
type Neighbor struct {
	ID       int
	Distance float32
}

// Index is a vector index over positions 0..Count()-1.
type Index interface {
	Kind() IndexKind
	Dimension() int
	Count() int

	// IsTrained reports whether Add may be called.
	IsTrained() bool

	// NumPartitions is 1 for flat indexes.
	NumPartitions() int

	// Train fits the index structure to a representative sample.
	Train(vectors [][]float32) error

	// Add appends vectors; the first gets ID Count().
	Add(vectors [][]float32) error

	// Search returns up to k neighbors by ascending distance, ties broken by ID.
	Search(query []float32, k int) []Neighbor

	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// NewIndex allocates an index of the given kind. For IVF the partition count
// comes from PartitionCount(expected) and nprobe is capped at that count.
func NewIndex(kind IndexKind, dimension, expected, nprobe int) (Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}
	switch kind {
	case KindFlat:
		return NewFlatIndex(dimension), nil
	case KindIVF:
		return NewIVFIndex(dimension, PartitionCount(expected), nprobe), nil
	default:
		return nil, fmt.Errorf("unknown index kind %q", kind)
	}
}

// Metadata is the per-chunk metadata stored in the sidecar.
type Metadata map[string]any

// SearchResult is a resolved hit.
type SearchResult struct {
	Position int
	Text     string
	Metadata Metadata
	Distance float32
}

// Stats summarizes engine state.
type Stats struct {
	Kind       IndexKind `json:"kind"`
	Dimension  int       `json:"dimension"`
	Count      int       `json:"count"`
	Pending    int       `json:"pending"`
	Partitions int       `json:"partitions"`
	Trained    bool      `json:"trained"`
}

var (
	// ErrNotTrained is returned when adding to an untrained IVF index.
	ErrNotTrained = errors.New("index is not trained")

	// ErrInsufficientTraining is returned when fewer training vectors than
	// partitions are supplied.
	ErrInsufficientTraining = errors.New("not enough vectors to train index")
)

// ErrDimensionMismatch is returned when a vector's length differs from the
// index dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

func checkDims(dim int, vectors ...[]float32) error {
	for _, v := range vectors {
		if len(v) != dim {
			return ErrDimensionMismatch{Expected: dim, Got: len(v)}
		}
	}
	return nil
}
