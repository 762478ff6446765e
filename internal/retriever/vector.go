package retriever

import (
	"bufio"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/coder/hnsw"
)

// hnswSeed makes graph construction reproducible across runs.
const hnswSeed = 42

// vectorIndex is an HNSW graph keyed by frame number.
type vectorIndex struct {
	graph *hnsw.Graph[uint64]
	dim   int
}

func newVectorIndex(dim, m, efSearch int) *vectorIndex {
	if m <= 0 {
		m = DefaultHNSWM
	}
	if efSearch <= 0 {
		efSearch = DefaultEfSearch
	}
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = m
	g.Ml = 1 / math.Log(float64(m))
	g.EfSearch = efSearch
	g.Rng = rand.New(rand.NewSource(hnswSeed))
	return &vectorIndex{graph: g, dim: dim}
}

// add inserts vectors as frames 0..n-1.
func (v *vectorIndex) add(vectors [][]float32) error {
	nodes := make([]hnsw.Node[uint64], 0, len(vectors))
	for i, vec := range vectors {
		if len(vec) != v.dim {
			return fmt.Errorf("frame %d: dimension mismatch: expected %d, got %d", i, v.dim, len(vec))
		}
		nodes = append(nodes, hnsw.MakeNode(uint64(i), normalized(vec)))
	}
	v.graph.Add(nodes...)
	return nil
}

// search returns up to k frame numbers, nearest first.
func (v *vectorIndex) search(query []float32, k int) ([]int, error) {
	if len(query) != v.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", v.dim, len(query))
	}
	if v.graph.Len() == 0 || k <= 0 {
		return []int{}, nil
	}
	nodes := v.graph.Search(normalized(query), k)
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = int(n.Key)
	}
	return out, nil
}

func (v *vectorIndex) len() int {
	return v.graph.Len()
}

// save exports the graph to path through a temp file.
func (v *vectorIndex) save(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	if err := v.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename index file: %w", err)
	}
	return nil
}

// load imports a graph previously written by save.
func (v *vectorIndex) load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	// Import needs an io.ByteReader
	if err := v.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}
	return nil
}

// normalized returns a unit-length copy of vec. Zero vectors are returned as is.
func normalized(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	var sum float64
	for _, x := range out {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	n := float32(math.Sqrt(sum))
	for i := range out {
		out[i] /= n
	}
	return out
}
