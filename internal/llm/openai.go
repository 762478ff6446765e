package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// GoogleBaseURL is Gemini's OpenAI-compatible endpoint.
const GoogleBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// OpenAIClient talks to any OpenAI-compatible chat completions API.
type OpenAIClient struct {
	client   *openai.Client
	model    string
	provider Provider
	retry    vberrors.RetryConfig
}

// Verify interface implementation at compile time
var _ Client = (*OpenAIClient)(nil)

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	Provider Provider
	APIKey   string
	Model    string

	// BaseURL overrides the provider's endpoint (used by tests).
	BaseURL string

	Retry vberrors.RetryConfig
}

// NewOpenAIClient builds a client for the openai, google or anthropic provider.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, vberrors.New(vberrors.ErrCodeMissingAPIKey,
			fmt.Sprintf("%s API key not set", cfg.Provider), nil).
			WithSuggestion(fmt.Sprintf("Set %s in the environment or a .env file", apiKeyEnv[cfg.Provider]))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = vberrors.DefaultRetryConfig()
	}

	var clientCfg openai.ClientConfig
	switch cfg.Provider {
	case ProviderOpenAI:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
	case ProviderGoogle:
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		clientCfg.BaseURL = strings.TrimSuffix(GoogleBaseURL, "/")
	case ProviderAnthropic:
		clientCfg = openai.DefaultAnthropicConfig(cfg.APIKey, "")
	default:
		return nil, vberrors.New(vberrors.ErrCodeUnknownProvider,
			fmt.Sprintf("provider %q is not OpenAI-compatible", cfg.Provider), nil)
	}
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		retry:    cfg.Retry,
	}, nil
}

// Chat sends a non-streaming chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := vberrors.RetryWithResult(ctx, c.retry, func() (openai.ChatCompletionResponse, error) {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return resp, classifyError(string(c.provider), err)
		}
		return resp, nil
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", vberrors.New(vberrors.ErrCodeProviderResponse,
			fmt.Sprintf("%s returned no choices", c.provider), nil)
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the model identifier.
func (c *OpenAIClient) Model() string {
	return c.model
}

// classifyError marks rate limits and server errors as retryable.
func classifyError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return vberrors.NetworkError(fmt.Sprintf("%s chat failed: %s", provider, apiErr.Message), err)
		}
		return vberrors.New(vberrors.ErrCodeProviderResponse,
			fmt.Sprintf("%s chat failed: %s", provider, apiErr.Message), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500 {
			return vberrors.NetworkError(fmt.Sprintf("%s chat failed with status %d", provider, reqErr.HTTPStatusCode), err)
		}
		return vberrors.New(vberrors.ErrCodeProviderResponse,
			fmt.Sprintf("%s chat failed with status %d", provider, reqErr.HTTPStatusCode), err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return vberrors.NetworkError(fmt.Sprintf("%s chat failed: %v", provider, err), err)
}
