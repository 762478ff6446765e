package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// DefaultOllamaHost is the default Ollama API endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// DefaultChatTimeout bounds one chat round trip. Local models can be slow.
const DefaultChatTimeout = 5 * time.Minute

// OllamaClient calls Ollama's /api/chat with streaming disabled.
type OllamaClient struct {
	host    string
	model   string
	client  *http.Client
	timeout time.Duration
	retry   vberrors.RetryConfig
}

// Verify interface implementation at compile time
var _ Client = (*OllamaClient)(nil)

// OllamaConfig configures an OllamaClient.
type OllamaConfig struct {
	Host    string
	Model   string
	Timeout time.Duration
	Retry   vberrors.RetryConfig
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

// NewOllamaClient creates an Ollama chat client. No request is made until Chat.
func NewOllamaClient(cfg OllamaConfig) *OllamaClient {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel(ProviderOllama)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultChatTimeout
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = vberrors.DefaultRetryConfig()
	}
	return &OllamaClient{
		host:    strings.TrimSuffix(cfg.Host, "/"),
		model:   cfg.Model,
		client:  &http.Client{},
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
	}
}

// Chat sends messages and returns the assistant reply.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message) (string, error) {
	return vberrors.RetryWithResult(ctx, c.retry, func() (string, error) {
		return c.doChat(ctx, messages)
	})
}

func (c *OllamaClient) doChat(ctx context.Context, messages []Message) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaChatRequest{Model: c.model, Messages: messages, Stream: false})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", vberrors.NetworkError(fmt.Sprintf("ollama chat failed: %v", err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		code := vberrors.ErrCodeProviderResponse
		if resp.StatusCode >= 500 {
			code = vberrors.ErrCodeNetworkUnavailable
		}
		return "", vberrors.New(code,
			fmt.Sprintf("ollama chat returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))), nil)
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", vberrors.New(vberrors.ErrCodeProviderResponse, "failed to decode ollama chat response", err)
	}
	if result.Error != "" {
		return "", vberrors.New(vberrors.ErrCodeProviderResponse, "ollama chat error: "+result.Error, nil)
	}
	return result.Message.Content, nil
}

// Model returns the model identifier.
func (c *OllamaClient) Model() string {
	return c.model
}
