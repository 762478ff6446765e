// Package llm sends retrieved context and a question to a chat model.
package llm

import (
	"context"
	"fmt"
	"strings"

	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// SystemPrompt is sent ahead of every context-grounded question.
const SystemPrompt = "You are a helpful assistant. Use the provided context to answer questions."

// contextSeparator joins retrieved chunks in the user prompt.
const contextSeparator = "\n---\n"

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is a non-streaming chat model.
type Client interface {
	// Chat returns the assistant's reply to messages.
	Chat(ctx context.Context, messages []Message) (string, error)

	// Model returns the model identifier.
	Model() string
}

// BuildMessages renders the shared prompt template used by both backends.
func BuildMessages(contexts []string, query string) []Message {
	return []Message{
		{Role: RoleSystem, Content: SystemPrompt},
		{Role: RoleUser, Content: "Context:\n" + strings.Join(contexts, contextSeparator) + "\n\nQuestion: " + query},
	}
}

// Provider names a chat backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// DefaultProvider is used when none is configured.
const DefaultProvider = ProviderGoogle

var defaultModels = map[Provider]string{
	ProviderOpenAI:    "gpt-4o",
	ProviderGoogle:    "gemini-2.0-flash-exp",
	ProviderAnthropic: "claude-3-5-sonnet-20241022",
	ProviderOllama:    "llama3.2",
}

// apiKeyEnv names the environment variable holding each hosted provider's key.
var apiKeyEnv = map[Provider]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGoogle:    "GOOGLE_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// APIKeyEnv returns the environment variable holding p's API key, or ""
// for providers that need none.
func APIKeyEnv(p Provider) string {
	return apiKeyEnv[p]
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(p Provider) string {
	return defaultModels[p]
}

// ParseProvider converts a string to a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return DefaultProvider, nil
	}
	if _, ok := defaultModels[p]; !ok {
		return "", vberrors.New(vberrors.ErrCodeUnknownProvider,
			fmt.Sprintf("unknown LLM provider %q", s), nil).
			WithSuggestion("Use one of: openai, google, anthropic, ollama")
	}
	return p, nil
}
