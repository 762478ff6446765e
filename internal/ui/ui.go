// Package ui provides terminal progress display for a comparison run.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage represents a step of the comparison run.
type Stage int

const (
	// StageIngest extracts and chunks the input files.
	StageIngest Stage = iota
	// StageBuildA builds the encoded-media retriever.
	StageBuildA
	// StageBuildB builds the baseline index.
	StageBuildB
	// StageSearch runs the test queries against both backends.
	StageSearch
	// StageLLM compares chat answers.
	StageLLM
	// StageReport writes the report files.
	StageReport
	// StageComplete indicates the run is finished.
	StageComplete
)

// Stages lists the working stages in run order.
var Stages = []Stage{StageIngest, StageBuildA, StageBuildB, StageSearch, StageLLM, StageReport}

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageIngest:
		return "Ingest"
	case StageBuildA:
		return "Build A"
	case StageBuildB:
		return "Build B"
	case StageSearch:
		return "Search"
	case StageLLM:
		return "LLM"
	case StageReport:
		return "Report"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageIngest:
		return "INGEST"
	case StageBuildA:
		return "BUILD-A"
	case StageBuildB:
		return "BUILD-B"
	case StageSearch:
		return "SEARCH"
	case StageLLM:
		return "LLM"
	case StageReport:
		return "REPORT"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Item    string
	Message string
}

// ErrorEvent represents a problem that did not stop the run.
type ErrorEvent struct {
	Item   string
	Err    error
	IsWarn bool
}

// Summary contains the final run statistics.
type Summary struct {
	Files    int
	Chunks   int
	Queries  int
	Duration time.Duration
	Errors   int
	Warnings int
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(summary Summary)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Title      string // Shown in the TUI header
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithTitle sets the header title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output: output,
		Title:  "vecbench",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer creates an appropriate renderer based on config and environment.
// It returns a TUI renderer for interactive terminals, and a plain text
// renderer for CI environments, pipes, or when --no-tui is specified.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	// Try TUI mode, fall back to plain on failure
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}

// Nop returns a renderer that discards everything.
func Nop() Renderer { return nopRenderer{} }

type nopRenderer struct{}

func (nopRenderer) Start(context.Context) error  { return nil }
func (nopRenderer) UpdateProgress(ProgressEvent) {}
func (nopRenderer) AddError(ErrorEvent)          {}
func (nopRenderer) Complete(Summary)             {}
func (nopRenderer) Stop() error                  { return nil }
