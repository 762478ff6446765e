package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/vecbench/internal/embed"
	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	// Kind selects flat or IVF.
	Kind IndexKind

	// ExpectedCount sizes IVF partitions. Zero means "size of the first batch".
	ExpectedCount int

	// NProbe is the number of IVF partitions searched per query.
	NProbe int
}

// Engine owns an index, the chunk texts and their metadata. Position i in
// the index, chunks and metadata always refers to the same chunk.
//
// An IVF index cannot accept vectors until it is trained. Chunks added
// before enough vectors exist to train are held as pending and committed as
// soon as training becomes possible, or by Flush.
type Engine struct {
	mu       sync.RWMutex
	embedder embed.Embedder
	cfg      EngineConfig

	index    Index
	chunks   []string
	metadata []Metadata

	pendingVecs   [][]float32
	pendingChunks []string
	pendingMeta   []Metadata
}

// NewEngine creates an engine. The index structure is allocated on the first
// AddChunks call.
func NewEngine(embedder embed.Embedder, cfg EngineConfig) *Engine {
	if cfg.Kind == "" {
		cfg.Kind = KindFlat
	}
	if cfg.NProbe <= 0 {
		cfg.NProbe = DefaultNProbe
	}
	return &Engine{embedder: embedder, cfg: cfg}
}

// AddChunks embeds texts and appends them with their metadata. Nil metadata
// defaults each entry to {"chunk_id": n}, where n continues from the number
// of chunks already held (committed plus pending). Empty input is a no-op.
func (e *Engine) AddChunks(ctx context.Context, texts []string, metadata []Metadata) error {
	if len(texts) == 0 {
		return nil
	}
	if metadata != nil && len(metadata) != len(texts) {
		return vberrors.New(vberrors.ErrCodeInvalidInput,
			fmt.Sprintf("got %d metadata entries for %d chunks", len(metadata), len(texts)), nil)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if metadata == nil {
		metadata = DefaultMetadata(len(e.chunks)+len(e.pendingChunks), len(texts))
	}

	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return vberrors.New(vberrors.ErrCodeEmbeddingFailed, "failed to embed chunks", err)
	}
	if len(vectors) != len(texts) {
		return vberrors.New(vberrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(texts)), nil)
	}

	if err := e.ensureIndex(len(vectors[0]), len(texts)); err != nil {
		return err
	}

	e.pendingVecs = append(e.pendingVecs, vectors...)
	e.pendingChunks = append(e.pendingChunks, texts...)
	e.pendingMeta = append(e.pendingMeta, cloneMetadata(metadata)...)

	if !e.index.IsTrained() {
		if len(e.pendingVecs) < e.index.NumPartitions() {
			slog.Warn("index_training_deferred",
				slog.Int("available", len(e.pendingVecs)),
				slog.Int("partitions", e.index.NumPartitions()))
			return nil
		}
		if err := e.train(e.pendingVecs); err != nil {
			return err
		}
	}

	return e.commitPending()
}

// Flush commits pending chunks. If an IVF index still lacks enough vectors
// to train, it is rebuilt with one partition per available vector so that
// small corpora remain searchable.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pendingVecs) == 0 {
		return nil
	}
	if !e.index.IsTrained() {
		if len(e.pendingVecs) < e.index.NumPartitions() {
			slog.Warn("index_partitions_reduced",
				slog.Int("from", e.index.NumPartitions()),
				slog.Int("to", len(e.pendingVecs)))
			e.index = NewIVFIndex(e.index.Dimension(), len(e.pendingVecs), e.cfg.NProbe)
		}
		if err := e.train(e.pendingVecs); err != nil {
			return err
		}
	}
	return e.commitPending()
}

func (e *Engine) ensureIndex(dim, batch int) error {
	if e.index != nil {
		if e.index.Dimension() != dim {
			return vberrors.New(vberrors.ErrCodeDimensionMismatch,
				ErrDimensionMismatch{Expected: e.index.Dimension(), Got: dim}.Error(), nil)
		}
		return nil
	}

	expected := e.cfg.ExpectedCount
	if expected <= 0 {
		expected = batch
	}
	idx, err := NewIndex(e.cfg.Kind, dim, expected, e.cfg.NProbe)
	if err != nil {
		return vberrors.New(vberrors.ErrCodeIndexFailed, "failed to create index", err)
	}
	e.index = idx
	slog.Debug("index_created",
		slog.String("kind", string(idx.Kind())),
		slog.Int("dimension", dim),
		slog.Int("partitions", idx.NumPartitions()))
	return nil
}

func (e *Engine) train(vectors [][]float32) error {
	if err := e.index.Train(vectors); err != nil {
		return vberrors.New(vberrors.ErrCodeIndexFailed, "failed to train index", err)
	}
	slog.Info("index_trained",
		slog.Int("vectors", len(vectors)),
		slog.Int("partitions", e.index.NumPartitions()))
	return nil
}

func (e *Engine) commitPending() error {
	if err := e.index.Add(e.pendingVecs); err != nil {
		return vberrors.New(vberrors.ErrCodeIndexFailed, "failed to add vectors", err)
	}
	e.chunks = append(e.chunks, e.pendingChunks...)
	e.metadata = append(e.metadata, e.pendingMeta...)
	e.pendingVecs, e.pendingChunks, e.pendingMeta = nil, nil, nil
	return nil
}

// Search embeds query and returns up to k chunks by ascending squared L2
// distance. Hits whose position falls outside the chunk list are dropped.
// An empty engine yields an empty slice.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	e.mu.RLock()
	empty := e.index == nil || e.index.Count() == 0
	e.mu.RUnlock()
	if empty || k <= 0 {
		return []SearchResult{}, nil
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, vberrors.New(vberrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}
	return e.SearchVector(vec, k)
}

// SearchVector runs a k-NN search for an already embedded query.
func (e *Engine) SearchVector(vec []float32, k int) ([]SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.index == nil || e.index.Count() == 0 || k <= 0 {
		return []SearchResult{}, nil
	}
	if len(vec) != e.index.Dimension() {
		return nil, vberrors.New(vberrors.ErrCodeDimensionMismatch,
			ErrDimensionMismatch{Expected: e.index.Dimension(), Got: len(vec)}.Error(), nil)
	}

	neighbors := e.index.Search(vec, k)
	results := make([]SearchResult, 0, len(neighbors))
	for _, n := range neighbors {
		if n.ID < 0 || n.ID >= len(e.chunks) {
			continue
		}
		results = append(results, SearchResult{
			Position: n.ID,
			Text:     e.chunks[n.ID],
			Metadata: e.metadata[n.ID],
			Distance: n.Distance,
		})
	}
	return results, nil
}

// Len returns the number of committed chunks.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.chunks)
}

// Pending returns the number of chunks waiting for index training.
func (e *Engine) Pending() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pendingChunks)
}

// Stats summarizes the engine.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{Kind: e.cfg.Kind, Count: len(e.chunks), Pending: len(e.pendingChunks)}
	if e.index != nil {
		s.Kind = e.index.Kind()
		s.Dimension = e.index.Dimension()
		s.Partitions = e.index.NumPartitions()
		s.Trained = e.index.IsTrained()
	}
	return s
}

// Chunk returns the stored text and metadata at position i.
func (e *Engine) Chunk(i int) (string, Metadata, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i < 0 || i >= len(e.chunks) {
		return "", nil, false
	}
	return e.chunks[i], e.metadata[i], true
}

// DefaultMetadata builds {"chunk_id": start+i} entries for n chunks.
func DefaultMetadata(start, n int) []Metadata {
	out := make([]Metadata, n)
	for i := range out {
		out[i] = Metadata{"chunk_id": start + i}
	}
	return out
}

func cloneMetadata(in []Metadata) []Metadata {
	out := make([]Metadata, len(in))
	for i, m := range in {
		c := make(Metadata, len(m))
		for k, v := range m {
			c[k] = v
		}
		out[i] = c
	}
	return out
}
