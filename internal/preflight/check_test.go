package preflight

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONUsesStatusName(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "disk_space", Status: StatusWarn})

	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"warn"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail, Required: false}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_NewWithOptions(t *testing.T) {
	// Given: custom options
	buf := &bytes.Buffer{}
	checker := New(WithVerbose(true), WithOutput(buf))

	// Then: options are applied
	assert.True(t, checker.verbose)
	assert.Equal(t, buf, checker.output)
	assert.NotNil(t, checker.client)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New()

	assert.False(t, checker.HasCriticalFailures(nil))
	assert.False(t, checker.HasCriticalFailures([]CheckResult{
		{Status: StatusPass, Required: true},
		{Status: StatusFail, Required: false},
	}))
	assert.True(t, checker.HasCriticalFailures([]CheckResult{
		{Status: StatusPass, Required: true},
		{Status: StatusFail, Required: true},
	}))
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"with warnings", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"with critical failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail, Required: true}}, "failed"},
		{"with optional failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail}}, "ready_with_warnings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}

// =============================================================================
// Filesystem checks
// =============================================================================

func TestChecker_CheckWritePermissions_CreatesMissingDir(t *testing.T) {
	// Given: an output directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "results", "run")

	// When: checking write permissions
	result := New().CheckWritePermissions(dir)

	// Then: the directory is created and nothing is left behind
	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(readOnlyDir, 0o755) })

	result := New().CheckWritePermissions(readOnlyDir)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckDiskSpace_MissingPathUsesParent(t *testing.T) {
	result := New().CheckDiskSpace(filepath.Join(t.TempDir(), "not", "yet"))

	assert.Equal(t, "disk_space", result.Name)
	assert.NotContains(t, result.Message, "failed to check")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "100.0 MB", formatBytes(MinDiskSpaceBytes))
	assert.Equal(t, "2.0 GB", formatBytes(2*1024*1024*1024))
}

// =============================================================================
// Provider checks
// =============================================================================

func TestChecker_CheckEmbedder_Static(t *testing.T) {
	result := New().CheckEmbedder(t.Context(), "static", "")

	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
}

func TestChecker_CheckEmbedder_Unknown(t *testing.T) {
	result := New().CheckEmbedder(t.Context(), "mlx", "")

	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
}

func TestChecker_CheckEmbedder_OpenAIKey(t *testing.T) {
	missing := New(WithGetenv(env(nil))).CheckEmbedder(t.Context(), "openai", "")
	present := New(WithGetenv(env(map[string]string{"OPENAI_API_KEY": "sk-test"}))).
		CheckEmbedder(t.Context(), "openai", "")

	assert.Equal(t, StatusFail, missing.Status)
	assert.Contains(t, missing.Message, "OPENAI_API_KEY")
	assert.Equal(t, StatusPass, present.Status)
}

func TestChecker_CheckEmbedder_OllamaRunning(t *testing.T) {
	// Given: a server answering the Ollama tags endpoint
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	// When: checking the embedder
	result := New(WithHTTPClient(srv.Client())).CheckEmbedder(t.Context(), "ollama", srv.URL+"/")

	// Then: it passes
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, srv.URL, result.Details)
}

func TestChecker_CheckEmbedder_OllamaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := New(WithHTTPClient(srv.Client())).CheckEmbedder(t.Context(), "ollama", srv.URL)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "500")
}

func TestChecker_CheckEmbedder_OllamaDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	result := New().CheckEmbedder(t.Context(), "ollama", url)

	assert.Equal(t, StatusFail, result.Status)
	assert.Equal(t, "Ollama is not reachable", result.Message)
}

func TestChecker_CheckLLM_IsOptional(t *testing.T) {
	result := New(WithGetenv(env(nil))).CheckLLM(t.Context(), "google", "")

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "GOOGLE_API_KEY")
	assert.False(t, result.IsCritical())
}

func TestChecker_CheckLLM_AnthropicKey(t *testing.T) {
	result := New(WithGetenv(env(map[string]string{"ANTHROPIC_API_KEY": "k"}))).
		CheckLLM(t.Context(), "anthropic", "")

	assert.Equal(t, StatusPass, result.Status)
}

// =============================================================================
// RunAll and output
// =============================================================================

func TestChecker_RunAll_ReturnsAllChecks(t *testing.T) {
	// Given: an offline target with an LLM configured
	checker := New(WithGetenv(env(nil)))
	target := Target{OutputDir: t.TempDir(), Embedder: "static", LLMProvider: "openai"}

	// When: running all checks
	results := checker.RunAll(t.Context(), target)

	// Then: every check is present
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"disk_space", "write_permissions", "file_descriptors", "embedder", "llm"} {
		assert.True(t, names[want], "%s check missing", want)
	}
}

func TestChecker_RunAll_SkipsLLMWhenUnset(t *testing.T) {
	results := New().RunAll(t.Context(), Target{OutputDir: t.TempDir(), Embedder: "static"})

	for _, r := range results {
		assert.NotEqual(t, "llm", r.Name)
	}
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: some check results
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GB free"},
		{Name: "llm", Status: StatusFail, Message: "GOOGLE_API_KEY is not set", Details: "Set it"},
		{Name: "embedder", Status: StatusFail, Message: "Ollama is not reachable", Required: true},
	}

	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf), WithVerbose(true))

	// When: printing results
	checker.PrintResults(results)

	// Then: output lists each check and splits errors from warnings
	output := buf.String()
	assert.Contains(t, output, "[PASS] disk_space: 50 GB free")
	assert.Contains(t, output, "[FAIL] llm")
	assert.Contains(t, output, "      Set it")
	assert.Contains(t, output, "Status: FAILED")
	assert.Contains(t, output, "1 error(s):\n  - embedder: Ollama is not reachable")
	assert.Contains(t, output, "1 warning(s):\n  - llm: GOOGLE_API_KEY is not set")
}
