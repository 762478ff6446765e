// Package ingest turns input files into chunks. It resolves the file list,
// extracts text through per-extension provider chains, and splits each
// document with the chunker.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/vecbench/internal/chunk"
)

// ErrUnavailable reports that a provider's backing capability is missing.
// The registry falls through to the next provider when it sees it.
var ErrUnavailable = errors.New("extractor unavailable")

// ErrUnsupportedContent reports that a provider could not interpret a file
// it nominally handles. Like ErrUnavailable, it lets the next provider try.
var ErrUnsupportedContent = errors.New("unsupported content")

// DefaultInclude matches every supported document type below a directory.
var DefaultInclude = []string{"**/*.{txt,md,pdf,html,htm}"}

// DefaultWorkers bounds concurrent extraction.
const DefaultWorkers = 4

// Provider extracts plain text from one kind of document.
type Provider interface {
	// Name identifies the provider in warnings and logs.
	Name() string

	// Extract returns the document text, or ErrUnavailable.
	Extract(ctx context.Context, path string) (string, error)
}

// Warning records a file that was skipped and why.
type Warning struct {
	Path   string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Reason)
}

// Options configures Ingest.
type Options struct {
	// ChunkSize and Overlap are passed to chunk.Split.
	ChunkSize int
	Overlap   int

	// Workers is the extraction concurrency (0 = DefaultWorkers).
	Workers int

	// Registry maps extensions to providers (nil = DefaultRegistry(true)).
	Registry *Registry

	// ProgressFunc is called after each file is extracted.
	ProgressFunc func(done, total int, path string)
}

// Result is the outcome of ingesting a file list.
type Result struct {
	// Chunks in file order, then window order.
	Chunks []chunk.Chunk

	// Files that produced at least one chunk.
	Files []string

	Warnings []Warning
}
