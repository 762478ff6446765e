// Package report renders a finished comparison as Markdown, JSON and a
// console summary.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Aman-CERP/vecbench/internal/bench"
	"github.com/Aman-CERP/vecbench/internal/output"
)

// File name prefixes; the run timestamp is appended.
const (
	MarkdownPrefix = "comparison_report_"
	JSONPrefix     = "comparison_stats_"
)

// queryWidth is how much of a query the search table shows.
const queryWidth = 30

func timestamp(s *bench.Stats) time.Time {
	if s.Timestamp.IsZero() {
		return time.Now()
	}
	return s.Timestamp
}

// MarkdownPath returns where WriteMarkdown puts the report for stats.
func MarkdownPath(dir string, s *bench.Stats) string {
	return filepath.Join(dir, MarkdownPrefix+timestamp(s).Format(bench.TimestampLayout)+".md")
}

// JSONPath returns where WriteJSON puts the stats file.
func JSONPath(dir string, s *bench.Stats) string {
	return filepath.Join(dir, JSONPrefix+timestamp(s).Format(bench.TimestampLayout)+".json")
}

// WriteMarkdown writes the human-readable report and returns its path.
func WriteMarkdown(dir string, s *bench.Stats) (string, error) {
	path := MarkdownPath(dir, s)
	if err := writeFile(path, []byte(Markdown(s))); err != nil {
		return "", err
	}
	return path, nil
}

// WriteJSON writes stats as two-space indented JSON and returns its path.
func WriteJSON(dir string, s *bench.Stats) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode stats: %w", err)
	}
	path := JSONPath(dir, s)
	if err := writeFile(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Markdown renders the report body.
func Markdown(s *bench.Stats) string {
	var b strings.Builder
	p := func(format string, args ...any) { fmt.Fprintf(&b, format, args...) }

	p("# Vector Store Comparison Report\n\n")
	p("Generated: %s\n\n", timestamp(s).Format("2006-01-02 15:04:05"))
	if s.RunID != "" {
		p("Run ID: `%s`\n\n", s.RunID)
	}
	p("- **Files**: %d\n", s.TotalFiles)
	p("- **Chunks**: %d (size %d, overlap %d)\n", s.TotalChunks, s.Config.ChunkSize, s.Config.Overlap)
	p("- **Top-k**: %d\n\n", s.Config.TopK)

	p("## Artifact Creation Performance\n\n")
	p("- **Backend A (encoded media) creation time**: %.2f seconds\n", s.BackendA.BuildSeconds)
	p("- **Backend B (baseline index) creation time**: %.2f seconds\n", s.BackendB.BuildSeconds)
	p("- **Speed difference**: %s\n", s.Summary.BuildRatio)
	if s.BackendA.Error != "" {
		p("- **Backend A error**: %s\n", s.BackendA.Error)
	}
	if s.BackendB.Error != "" {
		p("- **Backend B error**: %s\n", s.BackendB.Error)
	}
	p("\n")

	p("## Storage Comparison\n\n")
	p("- **Backend A size**: %.2f MB\n", s.BackendA.SizeMB)
	p("- **Backend B size**: %.2f MB\n", s.BackendB.SizeMB)
	p("- **Size ratio**: %s\n\n", s.Summary.SizeRatio)

	p("## Search Performance\n\n")
	p("| Query | A Time (s) | B Time (s) | Speed Ratio | Overlap |\n")
	p("|-------|------------|------------|-------------|---------|\n")
	for _, q := range s.Queries {
		if q.Flagged() {
			p("| %s | ERROR | ERROR | %s | - |\n", cell(TruncateQuery(q.Query)), cell(q.Error))
			continue
		}
		p("| %s | %.3f | %.3f | %s | %.1f%% |\n",
			cell(TruncateQuery(q.Query)), q.ASeconds, q.BSeconds, q.SpeedRatio, q.OverlapRatio*100)
	}
	p("\n**Average search times:**\n")
	p("- Backend A: %.3fs\n", s.Summary.AvgASeconds)
	p("- Backend B: %.3fs\n", s.Summary.AvgBSeconds)
	p("- Speed ratio: %s\n\n", s.Summary.SpeedRatio)

	p("## Result Quality Comparison\n\n")
	p("**Average overlap in top-%d results**: %.1f%%\n\n", bench.OverlapDepth, s.Summary.AvgOverlap*100)
	for _, q := range s.Queries {
		if q.Flagged() {
			continue
		}
		p("### Query: %s\n\n", q.Query)
		p("**Overlap in top-%d results**: %.1f%%\n\n", bench.OverlapDepth, q.OverlapRatio*100)
	}

	if len(s.LLM) > 0 {
		p("## LLM Response Comparison\n\n")
		for i, c := range s.LLM {
			p("### Query %d: %s\n\n", i+1, c.Query)
			p("#### Backend A Response:\n")
			p("```\n%s\n```\n\n", responseOrError(c.AResponse, c.AError))
			p("#### Backend B Response:\n")
			p("```\n%s\n```\n\n", responseOrError(c.BResponse, c.BError))
			p("---\n\n")
		}
	}

	return b.String()
}

// TruncateQuery shortens a query for the search table: the first 30
// characters followed by "...".
func TruncateQuery(q string) string {
	r := []rune(q)
	if len(r) > queryWidth {
		r = r[:queryWidth]
	}
	return string(r) + "..."
}

// cell keeps text from breaking a Markdown table row.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func responseOrError(resp, errMsg string) string {
	if errMsg != "" {
		return "ERROR: " + errMsg
	}
	return resp
}

// PrintSummary writes the console summary of a finished run.
func PrintSummary(w *output.Writer, s *bench.Stats) {
	w.Section("Comparison Summary")

	if s.BackendA.OK() {
		w.Successf("Backend A built in %.2fs (%.2f MB)", s.BackendA.BuildSeconds, s.BackendA.SizeMB)
	} else {
		w.Errorf("Backend A failed: %s", s.BackendA.Error)
	}
	w.Successf("Backend B built in %.2fs (%.2f MB)", s.BackendB.BuildSeconds, s.BackendB.SizeMB)

	w.Newline()
	w.KeyValue("Creation speed ratio", s.Summary.BuildRatio)
	w.KeyValue("Size ratio", s.Summary.SizeRatio)
	w.KeyValue("Avg search A", fmt.Sprintf("%.3fs", s.Summary.AvgASeconds))
	w.KeyValue("Avg search B", fmt.Sprintf("%.3fs", s.Summary.AvgBSeconds))
	w.KeyValue("Search speed ratio", s.Summary.SpeedRatio)
	w.KeyValue("Avg overlap", fmt.Sprintf("%.1f%%", s.Summary.AvgOverlap*100))

	if s.Summary.FlaggedCount > 0 {
		w.Newline()
		w.Warningf("%d of %d queries failed", s.Summary.FlaggedCount, len(s.Queries))
	}

	if s.ReportPath != "" || s.StatsPath != "" {
		w.Newline()
	}
	if s.ReportPath != "" {
		w.Successf("Report: %s", s.ReportPath)
	}
	if s.StatsPath != "" {
		w.Successf("Stats:  %s", s.StatsPath)
	}
}
