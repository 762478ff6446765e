package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vecbench/internal/bench"
	"github.com/Aman-CERP/vecbench/internal/config"
	"github.com/Aman-CERP/vecbench/internal/embed"
	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
	"github.com/Aman-CERP/vecbench/internal/ingest"
	"github.com/Aman-CERP/vecbench/internal/llm"
	"github.com/Aman-CERP/vecbench/internal/output"
	"github.com/Aman-CERP/vecbench/internal/preflight"
	"github.com/Aman-CERP/vecbench/internal/report"
	"github.com/Aman-CERP/vecbench/internal/retriever"
	"github.com/Aman-CERP/vecbench/internal/store"
	"github.com/Aman-CERP/vecbench/internal/ui"
)

// runOptions are the root command's flags. Flags left unset keep the
// value from the layered config.
type runOptions struct {
	inputDir string
	files    []string
	queries  []string

	provider       string
	model          string
	chunkSize      int
	overlap        int
	topK           int
	llmQueries     int
	indexKind      string
	embedder       string
	keywordBackend string
	outputDir      string

	noLLM   bool
	noTUI   bool
	noColor bool
}

func (o *runOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.inputDir, "input-dir", "", "Directory of documents to compare on")
	f.StringSliceVar(&o.files, "files", nil, "Document files to compare on (repeatable)")
	f.StringArrayVar(&o.queries, "test-queries", nil, "Query to run against both backends (repeatable)")
	f.StringVar(&o.provider, "provider", "", "LLM provider: google, openai, anthropic or ollama")
	f.StringVar(&o.model, "model", "", "LLM model (default depends on provider)")
	f.IntVar(&o.chunkSize, "chunk-size", 0, "Characters per chunk (default 1024)")
	f.IntVar(&o.overlap, "overlap", 0, "Characters shared by neighbouring chunks (default 16)")
	f.IntVar(&o.topK, "top-k", bench.DefaultTopK, "Results retrieved per query")
	f.IntVar(&o.llmQueries, "llm-queries", 0, "Leading queries answered by the LLM, 0 skips the comparison (default 2)")
	f.StringVar(&o.indexKind, "index-kind", "", "Baseline index: flat (exact) or ivf")
	f.StringVar(&o.embedder, "embedder", "", "Embedder: static, ollama or openai")
	f.StringVar(&o.keywordBackend, "keyword-backend", "", "Backend A keyword index: sqlite or bleve")
	f.StringVar(&o.outputDir, "output-dir", "", "Directory for artifacts and reports (default output)")
	f.BoolVar(&o.noLLM, "no-llm", false, "Skip the LLM response comparison")
	f.BoolVar(&o.noTUI, "no-tui", false, "Plain progress output instead of the interactive display")
	f.BoolVar(&o.noColor, "no-color", false, "Disable colors")

	cmd.MarkFlagsMutuallyExclusive("input-dir", "files")
	cmd.MarkFlagsOneRequired("input-dir", "files")
}

// apply copies the flags the user set onto cfg and validates the result.
func (o *runOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("chunk-size") {
		cfg.Chunking.Size = o.chunkSize
	}
	if f.Changed("overlap") {
		cfg.Chunking.Overlap = o.overlap
	}
	if f.Changed("provider") {
		cfg.LLM.Provider = o.provider
	}
	if f.Changed("model") {
		cfg.LLM.Model = o.model
	}
	if f.Changed("llm-queries") {
		cfg.LLM.Queries = o.llmQueries
	}
	if f.Changed("index-kind") {
		cfg.Index.Kind = o.indexKind
	}
	if f.Changed("embedder") {
		cfg.Embeddings.Provider = o.embedder
	}
	if f.Changed("keyword-backend") {
		cfg.Retriever.KeywordBackend = o.keywordBackend
	}
	if f.Changed("output-dir") {
		cfg.Output.Dir = o.outputDir
	}
	if o.topK <= 0 {
		return vberrors.ValidationError(fmt.Sprintf("--top-k must be positive, got %d", o.topK), nil)
	}
	if err := cfg.Validate(); err != nil {
		code := vberrors.ErrCodeConfigInvalid
		if cfg.Chunking.Size <= 0 || cfg.Chunking.Overlap < 0 || cfg.Chunking.Overlap >= cfg.Chunking.Size {
			code = vberrors.ErrCodeInvalidChunking
		}
		return vberrors.New(code, err.Error(), err)
	}
	return nil
}

// runCompare is the root command: ingest, build both backends, compare,
// report.
func runCompare(cmd *cobra.Command, loaded *config.Config, o *runOptions, debug bool) error {
	cfg := *loaded
	if err := o.apply(cmd, &cfg); err != nil {
		return err
	}

	if err := checkOutputDir(cfg.Output.Dir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	runID := uuid.NewString()
	slog.SetDefault(slog.Default().With(slog.String("run_id", runID)))

	files, warnings, err := ingest.ResolveFiles(o.inputDir, o.files, cfg.Ingest.Include)
	if err != nil {
		return err
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(o.noTUI || debug),
		ui.WithNoColor(o.noColor),
		ui.WithTitle("vecbench "+runID[:8])))
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("renderer_start_failed", slog.String("error", err.Error()))
		renderer = ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(true)))
		_ = renderer.Start(ctx)
	}
	rendererStopped := false
	stopRenderer := func() {
		if !rendererStopped {
			rendererStopped = true
			_ = renderer.Stop()
		}
	}
	defer stopRenderer()

	for _, w := range warnings {
		renderer.AddError(ui.ErrorEvent{Item: w.Path, Err: errors.New(w.Reason), IsWarn: true})
	}

	ingested, err := ingest.Ingest(ctx, files, ingest.Options{
		ChunkSize: cfg.Chunking.Size,
		Overlap:   cfg.Chunking.Overlap,
		Workers:   cfg.Ingest.Workers,
		Registry:  ingest.DefaultRegistry(cfg.Ingest.PDFEnabled),
		ProgressFunc: func(done, total int, path string) {
			renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIngest, Current: done, Total: total, Item: path})
		},
	})
	if err != nil {
		return err
	}
	for _, w := range ingested.Warnings {
		renderer.AddError(ui.ErrorEvent{Item: w.Path, Err: errors.New(w.Reason), IsWarn: true})
	}
	if len(ingested.Chunks) == 0 {
		return vberrors.New(vberrors.ErrCodeNoChunks, "no text could be extracted from the input files", nil).
			WithSuggestion("Check that the files are not empty or image-only PDFs")
	}
	slog.Info("ingest_complete",
		slog.Int("files", len(ingested.Files)),
		slog.Int("chunks", len(ingested.Chunks)),
		slog.Int("warnings", len(ingested.Warnings)))

	h, cleanup, err := newHarness(ctx, &cfg, o, renderer, runID, started, len(ingested.Files))
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := h.Run(ctx, ingested.Chunks, o.queries)
	if err != nil {
		return err
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageReport, Message: "Writing report"})
	if stats.ReportPath, err = report.WriteMarkdown(cfg.Output.Dir, stats); err != nil {
		return vberrors.New(vberrors.ErrCodeArtifactWrite, "failed to write report", err)
	}
	if stats.StatsPath, err = report.WriteJSON(cfg.Output.Dir, stats); err != nil {
		return vberrors.New(vberrors.ErrCodeArtifactWrite, "failed to write stats", err)
	}

	errCount := stats.Summary.FlaggedCount
	if !stats.BackendA.OK() {
		errCount++
	}
	renderer.Complete(ui.Summary{
		Files:    len(ingested.Files),
		Chunks:   len(ingested.Chunks),
		Queries:  len(stats.Queries),
		Duration: time.Since(started),
		Errors:   errCount,
		Warnings: len(warnings) + len(ingested.Warnings),
	})
	stopRenderer()

	report.PrintSummary(output.New(cmd.OutOrStdout()), stats)

	slog.Info("comparison_complete",
		slog.String("report", stats.ReportPath),
		slog.String("stats", stats.StatsPath),
		slog.Duration("elapsed", time.Since(started)))
	return nil
}

// checkOutputDir fails early when the artifacts could not be written, so a
// long build is not lost at the end.
func checkOutputDir(dir string) error {
	if dir == "" {
		dir = "."
	}
	checker := preflight.New()
	for _, r := range []preflight.CheckResult{checker.CheckWritePermissions(dir), checker.CheckDiskSpace(dir)} {
		if r.IsCritical() {
			return vberrors.New(vberrors.ErrCodeArtifactWrite, fmt.Sprintf("%s: %s", r.Name, r.Message), nil).
				WithSuggestion("Choose another --output-dir or free up space")
		}
	}
	return nil
}

// newHarness builds both backends and the optional chat client. Each
// backend gets its own embedder so neither benefits from the other's
// embedding cache.
func newHarness(ctx context.Context, cfg *config.Config, o *runOptions, renderer ui.Renderer,
	runID string, started time.Time, files int) (*bench.Harness, func(), error) {

	provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
	if err != nil {
		return nil, nil, err
	}
	kind, err := store.ParseIndexKind(cfg.Index.Kind)
	if err != nil {
		return nil, nil, vberrors.ConfigError(err.Error(), err)
	}
	factoryCfg := embed.FactoryConfig{
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		OllamaHost: cfg.Embeddings.OllamaHost,
		BatchSize:  cfg.Embeddings.BatchSize,
		CacheSize:  cfg.Embeddings.CacheSize,
	}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("close_failed", slog.String("error", err.Error()))
			}
		}
	}

	embA, err := embed.NewEmbedder(ctx, provider, factoryCfg)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, embA.Close)
	embB, err := embed.NewEmbedder(ctx, provider, factoryCfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, embB.Close)

	var chat llm.Client
	if !o.noLLM && cfg.LLM.Queries > 0 {
		chat, err = llm.New(llm.Config{
			Provider:   llm.Provider(cfg.LLM.Provider),
			Model:      cfg.LLM.Model,
			OllamaHost: cfg.LLM.OllamaHost,
		})
		if err != nil {
			slog.Warn("llm_unavailable", vberrors.LogAttrs(err)...)
			renderer.AddError(ui.ErrorEvent{Item: "LLM comparison skipped", Err: err, IsWarn: true})
			chat = nil
		}
	}

	a, err := retriever.NewMediaRetriever(retriever.Config{
		Embedder:       embA,
		Chat:           chat,
		KeywordBackend: retriever.KeywordBackend(cfg.Retriever.KeywordBackend),
		HNSWM:          cfg.Retriever.HNSWM,
		EfSearch:       cfg.Retriever.EfSearch,
		ContextK:       o.topK,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, a.Close)

	b := store.NewEngine(embB, store.EngineConfig{Kind: kind, NProbe: cfg.Index.NProbe})

	model := cfg.LLM.Model
	if chat != nil {
		model = chat.Model()
	}
	llmQueries := cfg.LLM.Queries
	if chat == nil || llmQueries == 0 {
		llmQueries = -1
	}

	h := bench.New(a, b, chat, renderer, bench.Options{
		TopK:         o.topK,
		LLMQueries:   llmQueries,
		WorkDir:      cfg.Output.Dir,
		Timestamp:    started,
		MediaName:    cfg.Retriever.MediaName,
		ArtifactName: cfg.Index.ArtifactName,
		TotalFiles:   files,
		RunID:        runID,
		Config: bench.RunConfig{
			ChunkSize:      cfg.Chunking.Size,
			Overlap:        cfg.Chunking.Overlap,
			Provider:       cfg.LLM.Provider,
			Model:          model,
			IndexKind:      string(kind),
			Embedder:       embA.ModelName(),
			KeywordBackend: cfg.Retriever.KeywordBackend,
		},
	})
	return h, cleanup, nil
}
