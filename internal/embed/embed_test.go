package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// =============================================================================
// Helpers
// =============================================================================

// countingEmbedder records how many texts reach it.
type countingEmbedder struct {
	*StaticEmbedder
	texts atomic.Int64
	calls atomic.Int64
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	c.texts.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.texts.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func fastRetry() vberrors.RetryConfig {
	return vberrors.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

// =============================================================================
// Static embedder
// =============================================================================

func TestStaticEmbedder_DeterministicAndNormalized(t *testing.T) {
	// Given: a static embedder
	e := NewStaticEmbedder()
	ctx := context.Background()

	// When: embedding the same text twice
	a, err := e.Embed(ctx, "Vector indexes partition the embedding space.")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Vector indexes partition the embedding space.")
	require.NoError(t, err)

	// Then: identical unit vectors of the advertised dimension
	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestStaticEmbedder_BlankTextIsZeroVector(t *testing.T) {
	v, err := NewStaticEmbedder().Embed(context.Background(), "  \n ")

	require.NoError(t, err)
	assert.Len(t, v, StaticDimensions)
	assert.Zero(t, norm(v))
}

func TestStaticEmbedder_SimilarTextsAreCloser(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	q, _ := e.Embed(ctx, "training the partitioned index")
	near, _ := e.Embed(ctx, "the partitioned index needs training first")
	far, _ := e.Embed(ctx, "bananas grow in tropical climates")

	assert.Less(t, l2(q, near), l2(q, far))
}

func l2(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i] - b[i])
		s += d * d
	}
	return s
}

func TestStaticEmbedder_BatchOrderIndependentOfBatchSize(t *testing.T) {
	texts := make([]string, 75)
	for i := range texts {
		texts[i] = fmt.Sprintf("document number %d about topic %d", i, i%7)
	}
	ctx := context.Background()

	small := NewStaticEmbedder()
	small.batchSize = 4
	large := NewStaticEmbedder()
	large.batchSize = 64

	a, err := small.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	b, err := large.EmbedBatch(ctx, texts)
	require.NoError(t, err)

	require.Len(t, a, len(texts))
	assert.Equal(t, a, b)
	for i, text := range texts {
		single, _ := small.Embed(ctx, text)
		assert.Equal(t, single, a[i], "index %d", i)
	}
}

func TestStaticEmbedder_ClosedRejectsCalls(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
	_, err = e.EmbedBatch(context.Background(), []string{"x"})
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestEmbedInBatches_FailsWholeCallOnBatchError(t *testing.T) {
	calls := 0
	_, err := embedInBatches(context.Background(), []string{"a", "b", "c"}, 2,
		func(_ context.Context, batch []string) ([][]float32, error) {
			calls++
			if calls == 2 {
				return nil, fmt.Errorf("boom")
			}
			return make([][]float32, len(batch)), nil
		})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEmbedInBatches_RejectsShortProviderResponse(t *testing.T) {
	_, err := embedInBatches(context.Background(), []string{"a", "b"}, 8,
		func(_ context.Context, batch []string) ([][]float32, error) {
			return make([][]float32, 1), nil
		})

	require.Error(t, err)
}

// =============================================================================
// Cached embedder
// =============================================================================

func TestCachedEmbedder_OnlyMissesReachInner(t *testing.T) {
	// Given: a cache over a counting embedder, primed with two texts
	inner := newCountingEmbedder()
	c := NewCachedEmbedder(inner, 16)
	ctx := context.Background()
	_, err := c.EmbedBatch(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.EqualValues(t, 2, inner.texts.Load())

	// When: embedding a batch with one new text between two cached ones
	out, err := c.EmbedBatch(ctx, []string{"alpha", "gamma", "beta"})

	// Then: only gamma was computed and order is preserved
	require.NoError(t, err)
	assert.EqualValues(t, 3, inner.texts.Load())
	want, _ := NewStaticEmbedder().EmbedBatch(ctx, []string{"alpha", "gamma", "beta"})
	assert.Equal(t, want, out)
	assert.Equal(t, 3, c.Len())
}

func TestCachedEmbedder_EmbedHitsCache(t *testing.T) {
	inner := newCountingEmbedder()
	c := NewCachedEmbedder(inner, 0)

	_, _ = c.Embed(context.Background(), "q")
	_, _ = c.Embed(context.Background(), "q")

	assert.EqualValues(t, 1, inner.calls.Load())
	assert.Equal(t, inner.ModelName(), c.ModelName())
	assert.Equal(t, StaticDimensions, c.Dimensions())
}

// =============================================================================
// Ollama embedder
// =============================================================================

func TestOllamaEmbedder_BatchesAndSkipsBlankTexts(t *testing.T) {
	// Given: a fake Ollama server that encodes each input length into a vector
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		requests.Add(1)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := ollamaEmbedResponse{Model: req.Model}
		for _, in := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float64{float64(len(in)), 1, 0})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, Model: "test", BatchSize: 2, Retry: fastRetry(),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, e.Dimensions())

	// When: embedding five texts including a blank one
	out, err := e.EmbedBatch(context.Background(), []string{"a", "bb", " ", "dddd", "eeeee"})

	// Then: vectors line up with inputs and the blank one is zero
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Equal(t, []float32{1, 1, 0}, out[0])
	assert.Equal(t, []float32{2, 1, 0}, out[1])
	assert.Equal(t, []float32{0, 0, 0}, out[2])
	assert.Equal(t, []float32{4, 1, 0}, out[3])
	assert.Equal(t, []float32{5, 1, 0}, out[4])
	// probe + 3 batches
	assert.EqualValues(t, 4, requests.Load())
}

func TestOllamaEmbedder_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float64{{1, 2}}})
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, Dimensions: 2, SkipHealthCheck: true, Retry: fastRetry(),
	})
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
	assert.EqualValues(t, 2, calls.Load())
}

func TestOllamaEmbedder_UnreachableIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Retry: fastRetry(), Timeout: time.Second})

	require.Error(t, err)
	assert.Equal(t, vberrors.ErrCodeNetworkUnavailable, vberrors.GetCode(err))
}

// =============================================================================
// OpenAI embedder
// =============================================================================

func TestOpenAIEmbedder_RestoresOrderFromIndex(t *testing.T) {
	// Given: a fake embeddings endpoint that answers in reverse order
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Object: "embedding", Embedding: []float32{float32(len(req.Input[i])), 0}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "m"})
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Dimensions: 2, Retry: fastRetry()})
	require.NoError(t, err)

	// When
	out, err := e.EmbedBatch(context.Background(), []string{"a", "bbb"})

	// Then: normalized vectors in input order
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {1, 0}}, out)
	assert.Equal(t, 2, e.Dimensions())
}

func TestOpenAIEmbedder_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIEmbedder(OpenAIConfig{})

	require.Error(t, err)
	assert.Equal(t, vberrors.ErrCodeMissingAPIKey, vberrors.GetCode(err))
}

// =============================================================================
// Factory
// =============================================================================

func TestParseProvider(t *testing.T) {
	tests := map[string]ProviderType{"": ProviderStatic, "STATIC": ProviderStatic, "ollama": ProviderOllama, " openai ": ProviderOpenAI}
	for in, want := range tests {
		got, err := ParseProvider(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseProvider("faiss")
	assert.Equal(t, vberrors.ErrCodeUnknownProvider, vberrors.GetCode(err))
}

func TestNewEmbedder_EnvOverrideWins(t *testing.T) {
	t.Setenv(EnvProvider, "static")

	e, err := NewEmbedder(context.Background(), ProviderOpenAI, FactoryConfig{})

	require.NoError(t, err)
	assert.Equal(t, "static-hash-384", e.ModelName())
}
