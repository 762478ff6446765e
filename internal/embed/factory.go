package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// ProviderType identifies an embedding backend.
type ProviderType string

const (
	// ProviderStatic uses hashed features; offline and deterministic.
	ProviderStatic ProviderType = "static"
	// ProviderOllama uses a local Ollama server.
	ProviderOllama ProviderType = "ollama"
	// ProviderOpenAI uses the OpenAI embeddings API.
	ProviderOpenAI ProviderType = "openai"
)

// EnvProvider overrides the configured provider.
const EnvProvider = "VECBENCH_EMBEDDER"

// FactoryConfig is the subset of configuration the factory needs.
type FactoryConfig struct {
	Model      string
	Dimensions int
	OllamaHost string
	BatchSize  int
	CacheSize  int
}

// ParseProvider converts a string to a ProviderType.
func ParseProvider(s string) (ProviderType, error) {
	switch ProviderType(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProviderStatic:
		return ProviderStatic, nil
	case ProviderOllama:
		return ProviderOllama, nil
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	default:
		return "", vberrors.New(vberrors.ErrCodeUnknownProvider,
			fmt.Sprintf("unknown embedding provider %q (valid: static, ollama, openai)", s), nil)
	}
}

// NewEmbedder builds the requested embedder wrapped in a cache.
// A remote provider that cannot be reached is an error; silently falling
// back to another model would make the comparison meaningless.
func NewEmbedder(ctx context.Context, provider ProviderType, cfg FactoryConfig) (*CachedEmbedder, error) {
	if env := os.Getenv(EnvProvider); env != "" {
		p, err := ParseProvider(env)
		if err != nil {
			return nil, err
		}
		provider = p
	}

	var (
		inner Embedder
		err   error
	)
	switch provider {
	case ProviderStatic, "":
		s := NewStaticEmbedder()
		s.batchSize = clampBatchSize(cfg.BatchSize)
		inner = s
	case ProviderOllama:
		oc := DefaultOllamaConfig()
		if cfg.OllamaHost != "" {
			oc.Host = cfg.OllamaHost
		}
		if cfg.Model != "" {
			oc.Model = cfg.Model
		}
		oc.Dimensions = cfg.Dimensions
		oc.BatchSize = cfg.BatchSize
		inner, err = NewOllamaEmbedder(ctx, oc)
	case ProviderOpenAI:
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
		})
	default:
		_, err = ParseProvider(string(provider))
	}
	if err != nil {
		return nil, err
	}

	slog.Info("embedder_ready",
		slog.String("provider", string(provider)),
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
