package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/vecbench/internal/bench"
	"github.com/Aman-CERP/vecbench/internal/output"
)

func sampleStats() *bench.Stats {
	s := &bench.Stats{
		RunID:       "run-1",
		Timestamp:   time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
		Config:      bench.RunConfig{ChunkSize: 1024, Overlap: 16, TopK: 5},
		TotalFiles:  2,
		TotalChunks: 12,
		BackendA:    bench.BuildResult{Name: "A", BuildSeconds: 2, SizeMB: 10},
		BackendB:    bench.BuildResult{Name: "B", BuildSeconds: 1, SizeMB: 5},
		Queries: []bench.QueryResult{
			{Query: "What is the main topic of these documents?", ASeconds: 0.02, BSeconds: 0.01, SpeedRatio: bench.Ratio(2, 1), OverlapRatio: 0.8},
			{Query: "Short?", Error: "backend A: frame | decode failed"},
		},
		LLM: []bench.LLMComparison{
			{Query: "What is the main topic?", AResponse: "Rivers.", BError: "rate limited"},
		},
	}
	s.Summarize()
	return s
}

// =============================================================================
// Markdown
// =============================================================================

func TestMarkdown_Sections(t *testing.T) {
	// Given a finished run
	md := Markdown(sampleStats())

	// Then every section is present in order
	sections := []string{
		"# Vector Store Comparison Report",
		"## Artifact Creation Performance",
		"## Storage Comparison",
		"## Search Performance",
		"**Average search times:**",
		"## Result Quality Comparison",
		"## LLM Response Comparison",
	}
	last := -1
	for _, s := range sections {
		idx := strings.Index(md, s)
		require.GreaterOrEqual(t, idx, 0, "missing %q", s)
		assert.Greater(t, idx, last, "%q out of order", s)
		last = idx
	}
}

func TestMarkdown_Values(t *testing.T) {
	md := Markdown(sampleStats())

	assert.Contains(t, md, "Generated: 2026-05-06 07:08:09")
	assert.Contains(t, md, "creation time**: 2.00 seconds")
	assert.Contains(t, md, "**Size ratio**: 2.00x")
	assert.Contains(t, md, "| What is the main topic of thes... | 0.020 | 0.010 | 2.00x | 80.0% |")
	assert.Contains(t, md, "**Average overlap in top-5 results**: 80.0%")
	assert.Contains(t, md, "ERROR: rate limited")
	assert.Contains(t, md, "Rivers.")
}

func TestMarkdown_FlaggedQueryRow(t *testing.T) {
	md := Markdown(sampleStats())

	assert.Contains(t, md, `| Short?... | ERROR | ERROR | backend A: frame \| decode failed | - |`)
	assert.NotContains(t, md, "### Query: Short?")
}

func TestMarkdown_UndefinedRatiosAndNoLLM(t *testing.T) {
	// Given a run where backend A failed and no LLM was used
	s := &bench.Stats{
		BackendA: bench.BuildResult{Error: "encoder crashed"},
		BackendB: bench.BuildResult{BuildSeconds: 1, SizeMB: 1},
	}
	s.Summarize()

	md := Markdown(s)

	assert.Contains(t, md, "**Size ratio**: undefined")
	assert.Contains(t, md, "**Backend A error**: encoder crashed")
	assert.NotContains(t, md, "## LLM Response Comparison")
}

func TestTruncateQuery(t *testing.T) {
	assert.Equal(t, "abc...", TruncateQuery("abc"))
	assert.Equal(t, strings.Repeat("x", 30)+"...", TruncateQuery(strings.Repeat("x", 45)))
	assert.Equal(t, strings.Repeat("é", 30)+"...", TruncateQuery(strings.Repeat("é", 31)))
}

// =============================================================================
// Files
// =============================================================================

func TestWriteMarkdown_FileName(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteMarkdown(dir, sampleStats())

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "comparison_report_20260506_070809.md"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Vector Store Comparison Report"))
}

func TestWriteJSON_Indented(t *testing.T) {
	// Given stats with an undefined ratio
	dir := filepath.Join(t.TempDir(), "nested")
	s := sampleStats()
	s.Summary.SizeRatio = bench.Ratio(1, 0)

	// When written
	path, err := WriteJSON(dir, s)

	// Then the file is two-space indented and decodes back
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "comparison_stats_20260506_070809.json"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"run_id\": \"run-1\"")
	assert.Contains(t, string(data), `"size_ratio": "undefined"`)

	var back bench.Stats
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "run-1", back.RunID)
	assert.False(t, back.Summary.SizeRatio.Defined)
	assert.True(t, back.Summary.SpeedRatio.Defined)
	require.Len(t, back.Queries, 2)
	assert.Equal(t, "backend A: frame | decode failed", back.Queries[1].Error)
}

// =============================================================================
// Console summary
// =============================================================================

func TestPrintSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	s := sampleStats()
	s.ReportPath = "/out/r.md"
	s.StatsPath = "/out/s.json"

	PrintSummary(output.New(buf), s)

	out := buf.String()
	assert.Contains(t, out, "✓ Backend A built in 2.00s (10.00 MB)")
	assert.Contains(t, out, "✓ Backend B built in 1.00s (5.00 MB)")
	assert.Contains(t, out, "⚠ 1 of 2 queries failed")
	assert.Contains(t, out, "80.0%")
	assert.Contains(t, out, "Report: /out/r.md")
	assert.Contains(t, out, "Stats:  /out/s.json")
}

func TestPrintSummary_BackendAFailed(t *testing.T) {
	buf := &bytes.Buffer{}
	s := &bench.Stats{BackendA: bench.BuildResult{Error: "boom"}}
	s.Summarize()

	PrintSummary(output.New(buf), s)

	assert.Contains(t, buf.String(), "✗ Backend A failed: boom")
	assert.Contains(t, buf.String(), "undefined")
}
