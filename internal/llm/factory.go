package llm

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Config selects and configures a chat client.
type Config struct {
	Provider   Provider
	Model      string
	OllamaHost string

	// APIKey overrides the provider's environment variable.
	APIKey string

	// BaseURL overrides the provider endpoint.
	BaseURL string
}

// LoadDotEnv loads .env from the working directory if present. Variables
// already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("dotenv_load_failed", slog.String("error", err.Error()))
	}
}

// New builds a client for cfg.Provider. Hosted providers require an API key,
// taken from cfg.APIKey or the provider's environment variable.
func New(cfg Config) (Client, error) {
	provider, err := ParseProvider(string(cfg.Provider))
	if err != nil {
		return nil, err
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(provider)
	}

	if provider == ProviderOllama {
		host := cfg.OllamaHost
		if cfg.BaseURL != "" {
			host = cfg.BaseURL
		}
		c := NewOllamaClient(OllamaConfig{Host: host, Model: model})
		slog.Debug("llm_client_ready", slog.String("provider", string(provider)), slog.String("model", model))
		return c, nil
	}

	key := cfg.APIKey
	if key == "" {
		key = os.Getenv(apiKeyEnv[provider])
	}
	c, err := NewOpenAIClient(OpenAIConfig{
		Provider: provider,
		APIKey:   key,
		Model:    model,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("llm_client_ready", slog.String("provider", string(provider)), slog.String("model", model))
	return c, nil
}
