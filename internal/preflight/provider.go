package preflight

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Aman-CERP/vecbench/internal/embed"
	"github.com/Aman-CERP/vecbench/internal/llm"
)

const probeTimeout = 5 * time.Second

// CheckEmbedder checks that the embedder both backends need is usable.
// Without it neither backend can be built, so the check is required.
func (c *Checker) CheckEmbedder(ctx context.Context, provider, host string) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: true,
	}

	p, err := embed.ParseProvider(provider)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	switch p {
	case embed.ProviderOllama:
		return c.probeOllama(ctx, result, host)
	case embed.ProviderOpenAI:
		return c.checkKey(result, "OPENAI_API_KEY")
	default:
		result.Status = StatusPass
		result.Message = "static embedder (offline)"
		return result
	}
}

// CheckLLM checks the chat provider used for the response comparison. A
// failure only skips that comparison, so the check is optional.
func (c *Checker) CheckLLM(ctx context.Context, provider, host string) CheckResult {
	result := CheckResult{
		Name:     "llm",
		Required: false,
	}

	p, err := llm.ParseProvider(provider)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	if p == llm.ProviderOllama {
		return c.probeOllama(ctx, result, host)
	}
	return c.checkKey(result, llm.APIKeyEnv(p))
}

func (c *Checker) checkKey(result CheckResult, env string) CheckResult {
	if c.getenv(env) == "" {
		result.Status = StatusFail
		result.Message = env + " is not set"
		result.Details = "Set it in the environment or a .env file"
		return result
	}
	result.Status = StatusPass
	result.Message = env + " is set"
	return result
}

func (c *Checker) probeOllama(ctx context.Context, result CheckResult, host string) CheckResult {
	if host == "" {
		host = embed.DefaultOllamaHost
	}
	host = strings.TrimRight(host, "/")
	result.Details = host

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+"/api/tags", nil)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("invalid Ollama host: %v", err)
		return result
	}
	resp, err := c.client.Do(req)
	if err != nil {
		result.Status = StatusFail
		result.Message = "Ollama is not reachable"
		result.Details = fmt.Sprintf("%s: %v (start it with 'ollama serve')", host, err)
		return result
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("Ollama answered %d", resp.StatusCode)
		return result
	}

	result.Status = StatusPass
	result.Message = "Ollama is running"
	return result
}
