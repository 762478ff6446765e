package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/vecbench/internal/chunk"
)

type extraction struct {
	text     string
	provider string
	skip     string
}

// Ingest extracts and chunks files. Extraction runs in parallel but results
// are assembled in file order, so the chunk sequence is deterministic.
// Per-file problems become warnings; only invalid chunk options and context
// cancellation return an error.
func Ingest(ctx context.Context, files []string, opts Options) (*Result, error) {
	if err := chunk.Validate(opts.ChunkSize, opts.Overlap); err != nil {
		return nil, err
	}
	registry := opts.Registry
	if registry == nil {
		registry = DefaultRegistry(true)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]extraction, len(files))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = extractOne(gctx, registry, path)
			if opts.ProgressFunc != nil {
				opts.ProgressFunc(int(done.Add(1)), len(files), path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{}
	for i, path := range files {
		ex := results[i]
		if ex.skip != "" {
			res.Warnings = append(res.Warnings, Warning{Path: path, Reason: ex.skip})
			slog.Warn("file_skipped", slog.String("path", path), slog.String("reason", ex.skip))
			continue
		}

		windows, err := chunk.Split(ex.text, opts.ChunkSize, opts.Overlap)
		if err != nil {
			return nil, err
		}
		if len(windows) == 0 {
			res.Warnings = append(res.Warnings, Warning{Path: path, Reason: "no text extracted"})
			slog.Warn("file_skipped", slog.String("path", path), slog.String("reason", "no text extracted"))
			continue
		}

		for j, w := range windows {
			res.Chunks = append(res.Chunks, chunk.Chunk{
				Text: w,
				Metadata: chunk.Metadata{
					SourceFile:  path,
					ChunkIndex:  j,
					TotalChunks: len(windows),
				},
			})
		}
		res.Files = append(res.Files, path)
		slog.Debug("file_ingested",
			slog.String("path", path),
			slog.String("provider", ex.provider),
			slog.Int("chunks", len(windows)))
	}

	slog.Info("ingest_complete",
		slog.Int("files", len(res.Files)),
		slog.Int("chunks", len(res.Chunks)),
		slog.Int("skipped", len(res.Warnings)))
	return res, nil
}

func extractOne(ctx context.Context, registry *Registry, path string) extraction {
	text, provider, err := registry.Extract(ctx, path)
	switch {
	case err == nil:
		if strings.TrimSpace(text) == "" {
			return extraction{skip: "no text extracted"}
		}
		return extraction{text: text, provider: provider}
	case errors.Is(err, ErrUnknownExtension):
		return extraction{skip: err.Error()}
	case errors.Is(err, ErrUnavailable):
		return extraction{skip: "no extractor available: " + err.Error()}
	default:
		return extraction{skip: "unreadable: " + err.Error()}
	}
}
