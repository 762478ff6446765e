package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// DefaultOpenAIModel is the embedding model used when none is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIConfig configures the OpenAI embedder.
type OpenAIConfig struct {
	// APIKey defaults to $OPENAI_API_KEY.
	APIKey string

	// BaseURL overrides the API endpoint (OpenAI-compatible servers, tests).
	BaseURL string

	// Model is the embedding model name.
	Model string

	// Dimensions, when non-zero, asks the API to truncate vectors.
	Dimensions int

	// BatchSize caps inputs per request.
	BatchSize int

	// Retry controls backoff for transient failures.
	Retry vberrors.RetryConfig
}

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	config OpenAIConfig
	dims   int

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, vberrors.New(vberrors.ErrCodeMissingAPIKey, "OPENAI_API_KEY is not set", nil).
			WithSuggestion("export OPENAI_API_KEY or add it to .env")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = vberrors.DefaultRetryConfig()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = defaultOpenAIDimensions(cfg.Model)
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		dims:   dims,
	}, nil
}

// classifyOpenAIError marks rate limits and server errors retryable and
// everything else (bad key, bad model) final.
func classifyOpenAIError(msg string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500 {
			return vberrors.NetworkError(fmt.Sprintf("%s: %v", msg, err), err)
		}
		return vberrors.New(vberrors.ErrCodeProviderResponse, fmt.Sprintf("%s: %v", msg, err), err)
	}
	return vberrors.NetworkError(fmt.Sprintf("%s: %v", msg, err), err)
}

func defaultOpenAIDimensions(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

// Embed generates embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts. The API returns items
// tagged with their input index, which is used to restore order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	return embedInBatches(ctx, texts, e.config.BatchSize, func(ctx context.Context, batch []string) ([][]float32, error) {
		req := openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.config.Model),
			Input: batch,
		}
		if e.config.Dimensions > 0 {
			req.Dimensions = e.config.Dimensions
		}

		resp, err := vberrors.RetryWithResult(ctx, e.config.Retry, func() (openai.EmbeddingResponse, error) {
			r, err := e.client.CreateEmbeddings(ctx, req)
			if err != nil {
				return r, classifyOpenAIError("openai embeddings request failed", err)
			}
			return r, nil
		})
		if err != nil {
			return nil, err
		}

		out := make([][]float32, len(batch))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(batch) {
				return nil, vberrors.New(vberrors.ErrCodeProviderResponse,
					fmt.Sprintf("openai returned out-of-range index %d", item.Index), nil)
			}
			out[item.Index] = normalizeVector(item.Embedding)
		}
		for i, v := range out {
			if v == nil {
				return nil, vberrors.New(vberrors.ErrCodeProviderResponse,
					fmt.Sprintf("openai returned no embedding for input %d", i), nil)
			}
		}
		return out, nil
	})
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.config.Model
}

// Available reports whether the embedder is open. No network probe is made
// so that constructing the embedder stays free.
func (e *OpenAIEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
