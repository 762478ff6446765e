package store

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vecbench/internal/embed"
	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// =============================================================================
// Helpers
// =============================================================================

func randomVectors(seed int64, n, dim int) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for d := range v {
			v[d] = r.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func corpus(n int) []string {
	topics := []string{"rivers", "mountains", "compilers", "databases", "gardens", "orbits", "violins"}
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("note %d about %s and %s", i, topics[i%len(topics)], topics[(i*3+1)%len(topics)])
	}
	return out
}

func newEngine(kind IndexKind) *Engine {
	return NewEngine(embed.NewStaticEmbedder(), EngineConfig{Kind: kind})
}

// =============================================================================
// Partitioning
// =============================================================================

func TestPartitionCount(t *testing.T) {
	tests := []struct {
		expected int
		want     int
	}{
		{0, 4},
		{9, 4},
		{30, 5},
		{100, 10},
		{2500, 50},
		{20000, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.want, PartitionCount(tt.expected))
		})
	}
}

func TestParseIndexKind(t *testing.T) {
	k, err := ParseIndexKind("FLAT")
	require.NoError(t, err)
	assert.Equal(t, KindFlat, k)

	k, err = ParseIndexKind("")
	require.NoError(t, err)
	assert.Equal(t, KindFlat, k)

	k, err = ParseIndexKind("ivf")
	require.NoError(t, err)
	assert.Equal(t, KindIVF, k)

	_, err = ParseIndexKind("hnsw")
	assert.Error(t, err)
}

// =============================================================================
// Raw indexes
// =============================================================================

func TestFlatIndex_ExactOrderWithIDTieBreak(t *testing.T) {
	// Given: two vectors equidistant from the query and one farther away
	idx := NewFlatIndex(2)
	require.NoError(t, idx.Add([][]float32{{1, 0}, {0, 1}, {3, 3}, {-1, 0}}))

	// When: searching from the origin
	got := idx.Search([]float32{0, 0}, 3)

	// Then: ties resolve by ascending ID
	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 1, 3}, []int{got[0].ID, got[1].ID, got[2].ID})
	assert.InDelta(t, 1.0, got[0].Distance, 1e-6)
}

func TestFlatIndex_KLargerThanCount(t *testing.T) {
	idx := NewFlatIndex(2)
	require.NoError(t, idx.Add([][]float32{{1, 0}, {0, 1}}))

	assert.Len(t, idx.Search([]float32{0, 0}, 10), 2)
	assert.Empty(t, idx.Search([]float32{0, 0, 0}, 1))
}

func TestIVFIndex_FullProbeMatchesFlat(t *testing.T) {
	// Given: the same vectors in a flat index and an IVF probing every list
	vectors := randomVectors(7, 200, 8)
	flat := NewFlatIndex(8)
	require.NoError(t, flat.Add(vectors))

	ivf := NewIVFIndex(8, 6, 6)
	require.NoError(t, ivf.Train(vectors))
	require.NoError(t, ivf.Add(vectors))

	// When/Then: every query returns identical neighbors
	for _, q := range randomVectors(11, 20, 8) {
		assert.Equal(t, flat.Search(q, 5), ivf.Search(q, 5))
	}

	total := 0
	for _, n := range ivf.ListSizes() {
		total += n
	}
	assert.Equal(t, 200, total)
}

func TestIVFIndex_TrainingPreconditions(t *testing.T) {
	ivf := NewIVFIndex(4, 8, 0)
	assert.Equal(t, DefaultNProbe, ivf.NProbe())

	err := ivf.Add(randomVectors(1, 3, 4))
	assert.ErrorIs(t, err, ErrNotTrained)

	err = ivf.Train(randomVectors(1, 3, 4))
	assert.ErrorIs(t, err, ErrInsufficientTraining)

	assert.Equal(t, 2, NewIVFIndex(4, 2, 8).NProbe())
}

func TestKMeans_DuplicatePointsKeepEveryClusterPopulated(t *testing.T) {
	// Given: many copies of one point plus a few distinct points
	vectors := make([][]float32, 0, 12)
	for i := 0; i < 8; i++ {
		vectors = append(vectors, []float32{0, 0})
	}
	vectors = append(vectors, []float32{10, 10}, []float32{-10, 10}, []float32{10, -10}, []float32{-10, -10})

	ivf := NewIVFIndex(2, 4, 4)
	require.NoError(t, ivf.Train(vectors))
	require.NoError(t, ivf.Add(vectors))

	// Then: searching each distinct point finds it exactly
	for i := 8; i < 12; i++ {
		got := ivf.Search(vectors[i], 1)
		require.Len(t, got, 1)
		assert.Equal(t, i, got[0].ID)
		assert.Zero(t, got[0].Distance)
	}
}

// =============================================================================
// Codec
// =============================================================================

func TestCodec_RoundTripBothKinds(t *testing.T) {
	vectors := randomVectors(3, 50, 6)

	flat := NewFlatIndex(6)
	require.NoError(t, flat.Add(vectors))
	ivf := NewIVFIndex(6, 5, 2)
	require.NoError(t, ivf.Train(vectors))
	require.NoError(t, ivf.Add(vectors))

	for _, idx := range []Index{flat, ivf} {
		data, err := idx.MarshalBinary()
		require.NoError(t, err)

		restored, err := DecodeIndex(data)
		require.NoError(t, err)
		assert.Equal(t, idx.Kind(), restored.Kind())
		assert.Equal(t, idx.Count(), restored.Count())
		for _, q := range randomVectors(5, 5, 6) {
			assert.Equal(t, idx.Search(q, 4), restored.Search(q, 4))
		}
	}
}

func TestCodec_RejectsDamagedData(t *testing.T) {
	ivf := NewIVFIndex(3, 4, 4)
	vectors := randomVectors(9, 12, 3)
	require.NoError(t, ivf.Train(vectors))
	require.NoError(t, ivf.Add(vectors))
	data, err := ivf.MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("XXXX"), data[4:]...)},
		{"truncated", data[:len(data)-3]},
		{"trailing bytes", append(append([]byte(nil), data...), 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeIndex(tt.data)
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// Engine
// =============================================================================

func TestEngine_EmptyAddIsNoOp(t *testing.T) {
	e := newEngine(KindIVF)
	ctx := context.Background()

	require.NoError(t, e.AddChunks(ctx, nil, nil))
	require.NoError(t, e.AddChunks(ctx, []string{}, []Metadata{}))

	assert.Equal(t, 0, e.Len())
	assert.Equal(t, 0, e.Pending())
	got, err := e.Search(ctx, "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestEngine_EmptyAddKeepsPopulatedEngine(t *testing.T) {
	for _, kind := range []IndexKind{KindFlat, KindIVF} {
		t.Run(string(kind), func(t *testing.T) {
			// Given: an engine holding a committed corpus
			e := newEngine(kind)
			ctx := context.Background()
			texts := corpus(30)
			require.NoError(t, e.AddChunks(ctx, texts, nil))
			require.NoError(t, e.Flush())
			statsBefore := e.Stats()
			resultsBefore, err := e.Search(ctx, texts[4], 5)
			require.NoError(t, err)

			// When: adding nothing
			require.NoError(t, e.AddChunks(ctx, nil, nil))
			require.NoError(t, e.AddChunks(ctx, []string{}, []Metadata{}))

			// Then: counts and results are unchanged
			assert.Equal(t, statsBefore, e.Stats())
			assert.Equal(t, 30, e.Len())
			resultsAfter, err := e.Search(ctx, texts[4], 5)
			require.NoError(t, err)
			assert.Equal(t, resultsBefore, resultsAfter)
		})
	}
}

func TestEngine_DefaultKindIsExactFlat(t *testing.T) {
	// Given: an engine with no kind configured
	e := NewEngine(embed.NewStaticEmbedder(), EngineConfig{})
	assert.Equal(t, KindFlat, e.Stats().Kind)

	// When: a corpus larger than the IVF partition floor is added
	require.NoError(t, e.AddChunks(context.Background(), corpus(900), nil))

	// Then: it is committed straight into a single exact partition
	stats := e.Stats()
	assert.Equal(t, KindFlat, stats.Kind)
	assert.Equal(t, 1, stats.Partitions)
	assert.Equal(t, 900, stats.Count)
	assert.Equal(t, 0, stats.Pending)
	assert.True(t, stats.Trained)
}

func TestEngine_RejectsMetadataLengthMismatch(t *testing.T) {
	e := newEngine(KindFlat)

	err := e.AddChunks(context.Background(), []string{"a", "b"}, []Metadata{{}})

	require.Error(t, err)
	assert.Equal(t, vberrors.ErrCodeInvalidInput, vberrors.GetCode(err))
	assert.Equal(t, 0, e.Len())
}

func TestEngine_DefaultMetadataContinuesNumbering(t *testing.T) {
	e := newEngine(KindFlat)
	ctx := context.Background()

	require.NoError(t, e.AddChunks(ctx, []string{"first", "second"}, nil))
	require.NoError(t, e.AddChunks(ctx, []string{"third"}, nil))

	for i := 0; i < 3; i++ {
		_, meta, ok := e.Chunk(i)
		require.True(t, ok)
		assert.Equal(t, i, meta["chunk_id"])
	}
}

func TestEngine_IVFDefersAddUntilTrainable(t *testing.T) {
	// Given: an IVF engine sized from a first batch of two chunks (4 partitions)
	e := newEngine(KindIVF)
	ctx := context.Background()
	texts := corpus(6)

	// When: adding fewer chunks than partitions
	require.NoError(t, e.AddChunks(ctx, texts[:2], nil))

	// Then: they wait for training
	assert.Equal(t, 0, e.Len())
	assert.Equal(t, 2, e.Pending())
	assert.False(t, e.Stats().Trained)

	// When: enough chunks arrive to train
	require.NoError(t, e.AddChunks(ctx, texts[2:], nil))

	// Then: everything is committed in order
	assert.Equal(t, 6, e.Len())
	assert.Equal(t, 0, e.Pending())
	stats := e.Stats()
	assert.True(t, stats.Trained)
	assert.Equal(t, 4, stats.Partitions)
	for i, want := range texts {
		got, meta, ok := e.Chunk(i)
		require.True(t, ok)
		assert.Equal(t, want, got)
		assert.Equal(t, i, meta["chunk_id"])
	}
}

func TestEngine_FlushShrinksPartitionsForTinyCorpus(t *testing.T) {
	e := newEngine(KindIVF)
	ctx := context.Background()
	require.NoError(t, e.AddChunks(ctx, corpus(3), nil))
	require.Equal(t, 3, e.Pending())

	require.NoError(t, e.Flush())

	assert.Equal(t, 3, e.Len())
	assert.Equal(t, 3, e.Stats().Partitions)
	got, err := e.Search(ctx, corpus(3)[1], 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Position)
}

func TestEngine_SearchReturnsExactMatchFirst(t *testing.T) {
	for _, kind := range []IndexKind{KindFlat, KindIVF} {
		t.Run(string(kind), func(t *testing.T) {
			e := newEngine(kind)
			ctx := context.Background()
			texts := corpus(40)
			require.NoError(t, e.AddChunks(ctx, texts, nil))
			require.NoError(t, e.Flush())

			got, err := e.Search(ctx, texts[17], 5)

			require.NoError(t, err)
			require.NotEmpty(t, got)
			assert.LessOrEqual(t, len(got), 5)
			assert.Equal(t, 17, got[0].Position)
			assert.Equal(t, texts[17], got[0].Text)
			assert.InDelta(t, 0, got[0].Distance, 1e-5)
			for i := 1; i < len(got); i++ {
				assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
			}
		})
	}
}

func TestEngine_DimensionMismatchOnQueryVector(t *testing.T) {
	e := newEngine(KindFlat)
	require.NoError(t, e.AddChunks(context.Background(), []string{"x"}, nil))

	_, err := e.SearchVector([]float32{1, 2, 3}, 1)

	assert.Equal(t, vberrors.ErrCodeDimensionMismatch, vberrors.GetCode(err))
}

// =============================================================================
// Persistence
// =============================================================================

func TestEngine_SaveLoadRoundTrip(t *testing.T) {
	for _, kind := range []IndexKind{KindFlat, KindIVF} {
		t.Run(string(kind), func(t *testing.T) {
			// Given: a populated engine saved to disk
			ctx := context.Background()
			texts := corpus(30)
			meta := make([]Metadata, len(texts))
			for i := range meta {
				meta[i] = Metadata{"file": fmt.Sprintf("doc%d.txt", i%3), "chunk_index": i}
			}
			e := newEngine(kind)
			require.NoError(t, e.AddChunks(ctx, texts, meta))
			require.NoError(t, e.Flush())
			base := filepath.Join(t.TempDir(), "artifacts", "baseline")
			require.NoError(t, e.Save(base))

			// When: loading into a fresh engine
			loaded := newEngine(KindFlat)
			require.NoError(t, loaded.Load(base))

			// Then: queries behave identically
			assert.Equal(t, e.Stats(), loaded.Stats())
			for _, q := range []string{"rivers", "compilers and orbits", texts[4], "unrelated words"} {
				want, err := e.Search(ctx, q, 5)
				require.NoError(t, err)
				got, err := loaded.Search(ctx, q, 5)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			size, err := Size(base)
			require.NoError(t, err)
			idxInfo, _ := os.Stat(IndexPath(base))
			metaInfo, _ := os.Stat(MetaPath(base))
			assert.Equal(t, idxInfo.Size()+metaInfo.Size(), size)
		})
	}
}

func TestEngine_SaveRefusesPendingChunks(t *testing.T) {
	e := newEngine(KindIVF)
	require.NoError(t, e.AddChunks(context.Background(), corpus(2), nil))

	err := e.Save(filepath.Join(t.TempDir(), "base"))

	require.Error(t, err)
	assert.Equal(t, vberrors.ErrCodeInvalidInput, vberrors.GetCode(err))
}

func TestEngine_LoadMissingCompanionIsFatal(t *testing.T) {
	ctx := context.Background()
	e := newEngine(KindFlat)
	require.NoError(t, e.AddChunks(ctx, corpus(5), nil))
	base := filepath.Join(t.TempDir(), "base")
	require.NoError(t, e.Save(base))

	require.NoError(t, os.Remove(MetaPath(base)))
	err := newEngine(KindFlat).Load(base)

	require.Error(t, err)
	assert.Equal(t, vberrors.ErrCodeArtifactMissing, vberrors.GetCode(err))
	assert.True(t, vberrors.IsFatal(err))
}

func TestEngine_LoadMismatchedCompanionsIsFatal(t *testing.T) {
	// Given: two artifacts of different sizes with their sidecars swapped
	ctx := context.Background()
	dir := t.TempDir()
	small, large := filepath.Join(dir, "small"), filepath.Join(dir, "large")

	a := newEngine(KindFlat)
	require.NoError(t, a.AddChunks(ctx, corpus(3), nil))
	require.NoError(t, a.Save(small))
	b := newEngine(KindFlat)
	require.NoError(t, b.AddChunks(ctx, corpus(5), nil))
	require.NoError(t, b.Save(large))

	data, err := os.ReadFile(MetaPath(large))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(MetaPath(small), data, 0o644))

	// When
	err = newEngine(KindFlat).Load(small)

	// Then
	require.Error(t, err)
	assert.Equal(t, vberrors.ErrCodeArtifactCorrupt, vberrors.GetCode(err))
	assert.True(t, vberrors.IsFatal(err))
}

func TestEngine_LoadTruncatedIndexIsCorrupt(t *testing.T) {
	ctx := context.Background()
	e := newEngine(KindFlat)
	require.NoError(t, e.AddChunks(ctx, corpus(4), nil))
	base := filepath.Join(t.TempDir(), "base")
	require.NoError(t, e.Save(base))

	data, err := os.ReadFile(IndexPath(base))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(IndexPath(base), data[:len(data)/2], 0o644))

	err = newEngine(KindFlat).Load(base)
	assert.Equal(t, vberrors.ErrCodeArtifactCorrupt, vberrors.GetCode(err))
}

func TestFileLock_UnlockIsIdempotent(t *testing.T) {
	l := NewFileLock(filepath.Join(t.TempDir(), "nested", "base"))
	require.NoError(t, l.Lock())
	require.NoError(t, l.Unlock())
	require.NoError(t, l.Unlock())
	assert.FileExists(t, l.Path())
}
