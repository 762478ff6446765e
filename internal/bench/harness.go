// Package bench runs the side-by-side comparison of the encoded-media
// retriever (backend A) and the baseline index (backend B).
//
// A run is strictly sequential: build A, build B, then each query against A
// and B in turn, then the optional LLM comparison. Backend A failing to build
// is recorded and the run continues; backend B failing is fatal because no
// comparison is meaningful without the baseline.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/vecbench/internal/chunk"
	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
	"github.com/Aman-CERP/vecbench/internal/llm"
	"github.com/Aman-CERP/vecbench/internal/retriever"
	"github.com/Aman-CERP/vecbench/internal/store"
	"github.com/Aman-CERP/vecbench/internal/ui"
)

// Defaults for Options.
const (
	DefaultTopK         = 5
	DefaultLLMQueries   = 2
	DefaultMediaName    = "media_comparison"
	DefaultArtifactName = "baseline_comparison"

	// TimestampLayout names artifacts and reports.
	TimestampLayout = "20060102_150405"
)

// DefaultQueries are used when no test queries are given.
var DefaultQueries = []string{"What is the main topic?", "Summarize the key points"}

// Options configures a run.
type Options struct {
	TopK int

	// LLMQueries is how many leading queries get LLM answers. Zero means
	// DefaultLLMQueries; negative disables the comparison.
	LLMQueries int

	// WorkDir receives both backends' artifacts.
	WorkDir   string
	Timestamp time.Time

	MediaName    string
	ArtifactName string

	TotalFiles int
	Config     RunConfig

	// RunID identifies the run in stats and logs. Empty generates one.
	RunID string
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	switch {
	case o.LLMQueries == 0:
		o.LLMQueries = DefaultLLMQueries
	case o.LLMQueries < 0:
		// Negative disables the LLM comparison.
		o.LLMQueries = 0
	}
	if o.WorkDir == "" {
		o.WorkDir = "."
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	if o.MediaName == "" {
		o.MediaName = DefaultMediaName
	}
	if o.ArtifactName == "" {
		o.ArtifactName = DefaultArtifactName
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	o.Config.TopK = o.TopK
	return o
}

// Paths are the artifact locations of one run.
type Paths struct {
	Media    string
	Index    string
	Baseline string
}

// ArtifactPaths derives the artifact locations from the options.
func (o Options) ArtifactPaths() Paths {
	o = o.withDefaults()
	ts := o.Timestamp.Format(TimestampLayout)
	return Paths{
		Media:    filepath.Join(o.WorkDir, fmt.Sprintf("%s_%s.db", o.MediaName, ts)),
		Index:    filepath.Join(o.WorkDir, fmt.Sprintf("%s_%s_index.hnsw", o.MediaName, ts)),
		Baseline: filepath.Join(o.WorkDir, fmt.Sprintf("%s_%s", o.ArtifactName, ts)),
	}
}

// Harness drives one comparison.
type Harness struct {
	a        retriever.Retriever
	b        *store.Engine
	chat     llm.Client
	renderer ui.Renderer
	opts     Options
}

// New creates a harness. chat may be nil, which skips the LLM comparison.
// A nil renderer discards progress.
func New(a retriever.Retriever, b *store.Engine, chat llm.Client, renderer ui.Renderer, opts Options) *Harness {
	if renderer == nil {
		renderer = ui.Nop()
	}
	return &Harness{
		a:        a,
		b:        b,
		chat:     chat,
		renderer: renderer,
		opts:     opts.withDefaults(),
	}
}

// Run executes the comparison and returns the finished stats. The returned
// error is non-nil only when the run cannot produce a meaningful comparison.
func (h *Harness) Run(ctx context.Context, chunks []chunk.Chunk, queries []string) (*Stats, error) {
	if len(chunks) == 0 {
		return nil, vberrors.New(vberrors.ErrCodeNoChunks, "no chunks to compare", nil).
			WithSuggestion("Check that the input files contain extractable text")
	}
	if len(queries) == 0 {
		queries = DefaultQueries
	}

	stats := &Stats{
		RunID:       h.opts.RunID,
		Timestamp:   h.opts.Timestamp,
		Config:      h.opts.Config,
		TotalFiles:  h.opts.TotalFiles,
		TotalChunks: len(chunks),
		Queries:     []QueryResult{},
		LLM:         []LLMComparison{},
	}
	paths := h.opts.ArtifactPaths()

	slog.Info("run_started",
		slog.Int("chunks", len(chunks)),
		slog.Int("queries", len(queries)))

	stats.BackendA = h.buildA(ctx, chunks, paths)

	var err error
	stats.BackendB, err = h.buildB(ctx, chunks, paths)
	if err != nil {
		return stats, err
	}

	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		h.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSearch, Current: i + 1, Total: len(queries), Item: q})
		res := h.compareQuery(ctx, q, stats.BackendA.OK())
		if res.Flagged() {
			h.renderer.AddError(ui.ErrorEvent{Item: q, Err: errors.New(res.Error)})
		}
		stats.Queries = append(stats.Queries, res)
	}

	stats.LLM = h.compareLLM(ctx, queries, stats.BackendA.OK())

	stats.Summarize()

	slog.Info("run_complete",
		slog.Float64("avg_overlap", stats.Summary.AvgOverlap),
		slog.Int("flagged_queries", stats.Summary.FlaggedCount))

	return stats, nil
}

func (h *Harness) buildA(ctx context.Context, chunks []chunk.Chunk, paths Paths) BuildResult {
	h.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageBuildA, Message: "Encoding frames"})

	res := BuildResult{Name: "A", Artifacts: []string{paths.Media, paths.Index}}
	start := time.Now()
	bs, err := h.a.Build(ctx, chunk.Texts(chunks), paths.Media, paths.Index)
	res.BuildSeconds = time.Since(start).Seconds()
	if err != nil {
		res.Error = err.Error()
		slog.Error("backend_a_build_failed", vberrors.LogAttrs(err)...)
		h.renderer.AddError(ui.ErrorEvent{Item: "backend A", Err: err})
		return res
	}

	res.SizeBytes = bs.MediaBytes + bs.IndexBytes
	res.SizeMB = BytesToMB(res.SizeBytes)
	slog.Info("backend_a_built",
		slog.Int("frames", bs.Frames),
		slog.Float64("seconds", res.BuildSeconds),
		slog.Float64("size_mb", res.SizeMB))
	return res
}

func (h *Harness) buildB(ctx context.Context, chunks []chunk.Chunk, paths Paths) (BuildResult, error) {
	h.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageBuildB, Message: "Embedding and indexing"})

	res := BuildResult{
		Name:      "B",
		Artifacts: []string{store.IndexPath(paths.Baseline), store.MetaPath(paths.Baseline)},
	}
	meta := make([]store.Metadata, len(chunks))
	for i, m := range chunk.Metadatas(chunks) {
		meta[i] = m
	}

	start := time.Now()
	err := h.b.AddChunks(ctx, chunk.Texts(chunks), meta)
	if err == nil {
		err = h.b.Flush()
	}
	if err == nil {
		err = h.b.Save(paths.Baseline)
	}
	res.BuildSeconds = time.Since(start).Seconds()
	if err != nil {
		res.Error = err.Error()
		return res, vberrors.New(vberrors.ErrCodeBuildFailed, "baseline index failed to build", err)
	}

	size, err := store.Size(paths.Baseline)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	res.SizeBytes = size
	res.SizeMB = BytesToMB(size)

	st := h.b.Stats()
	slog.Info("backend_b_built",
		slog.String("kind", string(st.Kind)),
		slog.Int("count", st.Count),
		slog.Int("partitions", st.Partitions),
		slog.Float64("seconds", res.BuildSeconds),
		slog.Float64("size_mb", res.SizeMB))
	return res, nil
}

// compareQuery times A then B on the same query. Any failure yields a
// flagged entry rather than an error.
func (h *Harness) compareQuery(ctx context.Context, q string, aBuilt bool) QueryResult {
	res := QueryResult{Query: q, AResults: []string{}, BResults: []string{}}
	if !aBuilt {
		res.Error = "backend A unavailable: build failed"
		return res
	}

	start := time.Now()
	aTexts, err := h.a.Search(ctx, q, h.opts.TopK)
	aTime := time.Since(start)
	if err != nil {
		res.Error = "backend A: " + err.Error()
		slog.Warn("query_failed", slog.String("backend", "A"), slog.String("query", q), slog.String("error", err.Error()))
		return res
	}

	start = time.Now()
	bHits, err := h.b.Search(ctx, q, h.opts.TopK)
	bTime := time.Since(start)
	if err != nil {
		res.Error = "backend B: " + err.Error()
		slog.Warn("query_failed", slog.String("backend", "B"), slog.String("query", q), slog.String("error", err.Error()))
		return res
	}

	bTexts := make([]string, len(bHits))
	for i, hit := range bHits {
		bTexts[i] = hit.Text
	}

	res.ASeconds = aTime.Seconds()
	res.BSeconds = bTime.Seconds()
	res.SpeedRatio = DurationRatio(aTime, bTime)
	res.OverlapRatio = OverlapRatio(aTexts, bTexts, OverlapDepth)
	res.AResults = aTexts[:min(OverlapDepth, len(aTexts))]
	res.BResults = bTexts[:min(OverlapDepth, len(bTexts))]

	slog.Debug("query_compared",
		slog.String("query", q),
		slog.Duration("a", aTime),
		slog.Duration("b", bTime),
		slog.Float64("overlap", res.OverlapRatio))
	return res
}

// compareLLM asks both backends' contexts the first LLMQueries questions.
func (h *Harness) compareLLM(ctx context.Context, queries []string, aBuilt bool) []LLMComparison {
	out := []LLMComparison{}
	if h.chat == nil || h.opts.LLMQueries == 0 {
		return out
	}

	n := min(h.opts.LLMQueries, len(queries))
	for i, q := range queries[:n] {
		if ctx.Err() != nil {
			break
		}
		h.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageLLM, Current: i + 1, Total: n, Item: q})

		cmp := LLMComparison{Query: q}
		if aBuilt {
			answer, err := h.a.Chat(ctx, q)
			if err != nil {
				cmp.AError = err.Error()
			} else {
				cmp.AResponse = answer
			}
		} else {
			cmp.AError = "backend A unavailable: build failed"
		}

		answer, err := h.chatB(ctx, q)
		if err != nil {
			cmp.BError = err.Error()
		} else {
			cmp.BResponse = answer
		}

		if cmp.AError != "" || cmp.BError != "" {
			slog.Warn("llm_comparison_incomplete",
				slog.String("query", q),
				slog.String("a_error", cmp.AError),
				slog.String("b_error", cmp.BError))
		}
		out = append(out, cmp)
	}
	return out
}

func (h *Harness) chatB(ctx context.Context, q string) (string, error) {
	hits, err := h.b.Search(ctx, q, h.opts.TopK)
	if err != nil {
		return "", err
	}
	contexts := make([]string, len(hits))
	for i, hit := range hits {
		contexts[i] = hit.Text
	}
	return h.chat.Chat(ctx, llm.BuildMessages(contexts, q))
}
