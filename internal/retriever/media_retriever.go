package retriever

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/Aman-CERP/vecbench/internal/embed"
	vberrors "github.com/Aman-CERP/vecbench/internal/errors"
	"github.com/Aman-CERP/vecbench/internal/llm"
)

// Config configures a MediaRetriever.
type Config struct {
	// Embedder produces frame and query vectors. Required.
	Embedder embed.Embedder

	// Chat answers questions over retrieved frames. Optional.
	Chat llm.Client

	// KeywordBackend selects FTS5 or bleve. Empty means sqlite.
	KeywordBackend KeywordBackend

	HNSWM    int
	EfSearch int

	// ContextK is the number of frames Chat sends as context.
	ContextK int
}

// MediaRetriever stores chunks as compressed frames in a single SQLite file
// and finds them with HNSW vector search fused with keyword search.
type MediaRetriever struct {
	mu  sync.Mutex
	cfg Config

	media    *mediaFile
	keywords keywordIndex
	vectors  *vectorIndex
}

var _ Retriever = (*MediaRetriever)(nil)

// NewMediaRetriever creates a retriever with nothing built yet.
func NewMediaRetriever(cfg Config) (*MediaRetriever, error) {
	if cfg.Embedder == nil {
		return nil, vberrors.ValidationError("retriever requires an embedder", nil)
	}
	backend, err := ParseKeywordBackend(string(cfg.KeywordBackend))
	if err != nil {
		return nil, vberrors.ConfigError(err.Error(), err)
	}
	cfg.KeywordBackend = backend
	if cfg.HNSWM <= 0 {
		cfg.HNSWM = DefaultHNSWM
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = DefaultEfSearch
	}
	if cfg.ContextK <= 0 {
		cfg.ContextK = DefaultContextK
	}
	return &MediaRetriever{cfg: cfg}, nil
}

// Build encodes chunks as frames 0..n-1 and writes both artifacts. Any
// previously built or opened state is released first.
func (r *MediaRetriever) Build(ctx context.Context, chunks []string, mediaPath, indexPath string) (BuildStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(chunks) == 0 {
		return BuildStats{}, vberrors.New(vberrors.ErrCodeInvalidInput, "no chunks to encode", nil)
	}
	if err := r.closeLocked(); err != nil {
		slog.Warn("retriever_close_failed", slog.String("error", err.Error()))
	}

	start := time.Now()

	vectors, err := r.cfg.Embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return BuildStats{}, vberrors.New(vberrors.ErrCodeEmbeddingFailed, "failed to embed frames", err)
	}
	dim := r.cfg.Embedder.Dimensions()
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	media, err := createMedia(mediaPath)
	if err != nil {
		return BuildStats{}, buildErr("failed to create media file", err, mediaPath)
	}
	withText := r.cfg.KeywordBackend == KeywordSQLite
	if err := media.writeFrames(ctx, chunks, withText); err != nil {
		_ = media.close()
		return BuildStats{}, buildErr("failed to write frames", err, mediaPath)
	}

	keywords, err := r.buildKeywords(ctx, media, mediaPath, chunks)
	if err != nil {
		_ = media.close()
		return BuildStats{}, buildErr("failed to build keyword index", err, mediaPath)
	}

	vecIdx := newVectorIndex(dim, r.cfg.HNSWM, r.cfg.EfSearch)
	if err := vecIdx.add(vectors); err != nil {
		_ = keywords.close()
		_ = media.close()
		return BuildStats{}, vberrors.New(vberrors.ErrCodeDimensionMismatch, err.Error(), err)
	}
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		_ = keywords.close()
		_ = media.close()
		return BuildStats{}, buildErr("failed to create index directory", err, indexPath)
	}
	if err := vecIdx.save(indexPath); err != nil {
		_ = keywords.close()
		_ = media.close()
		return BuildStats{}, buildErr("failed to save vector index", err, indexPath)
	}

	m := manifest{
		Model:          r.cfg.Embedder.ModelName(),
		Dimension:      dim,
		Frames:         len(chunks),
		KeywordBackend: r.cfg.KeywordBackend,
		Codec:          frameCodec,
	}
	if err := writeManifest(manifestPath(indexPath), m); err != nil {
		_ = keywords.close()
		_ = media.close()
		return BuildStats{}, buildErr("failed to write manifest", err, indexPath)
	}

	r.media, r.keywords, r.vectors = media, keywords, vecIdx

	stats := BuildStats{
		Chunks:   len(chunks),
		Frames:   len(chunks),
		Duration: time.Since(start),
	}
	stats.MediaBytes = pathSize(mediaPath)
	if r.cfg.KeywordBackend == KeywordBleve {
		stats.MediaBytes += pathSize(bleveDir(mediaPath))
	}
	stats.IndexBytes = pathSize(indexPath) + pathSize(manifestPath(indexPath))

	slog.Info("media_built",
		slog.Int("frames", stats.Frames),
		slog.String("keyword_backend", string(r.cfg.KeywordBackend)),
		slog.Int64("media_bytes", stats.MediaBytes),
		slog.Int64("index_bytes", stats.IndexBytes),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

func (r *MediaRetriever) buildKeywords(ctx context.Context, media *mediaFile, mediaPath string, chunks []string) (keywordIndex, error) {
	switch r.cfg.KeywordBackend {
	case KeywordBleve:
		kw, err := createBleve(bleveDir(mediaPath))
		if err != nil {
			return nil, err
		}
		if err := kw.index(ctx, chunks); err != nil {
			_ = kw.close()
			return nil, err
		}
		return kw, nil
	default:
		// Stale bleve output from an earlier build would skew the size.
		_ = os.RemoveAll(bleveDir(mediaPath))
		return &sqliteKeywords{media: media}, nil
	}
}

// Search returns up to k frame texts. Vector and keyword candidates are
// fused with Reciprocal Rank Fusion before the frames are decoded.
func (r *MediaRetriever) Search(ctx context.Context, query string, k int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vectors == nil {
		return nil, ErrNotBuilt
	}
	if k <= 0 || r.vectors.len() == 0 {
		return []string{}, nil
	}

	qv, err := r.cfg.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, vberrors.New(vberrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}

	candidates := max(k, DefaultCandidates)
	vecHits, err := r.vectors.search(qv, candidates)
	if err != nil {
		return nil, vberrors.New(vberrors.ErrCodeDimensionMismatch, err.Error(), err)
	}
	kwHits, err := r.keywords.search(ctx, query, candidates)
	if err != nil {
		// Vector results alone are still a valid answer.
		slog.Warn("keyword_search_failed", slog.String("error", err.Error()))
		kwHits = nil
	}

	fused := fuseRRF(DefaultRRFConstant, vecHits, kwHits)
	if len(fused) > k {
		fused = fused[:k]
	}

	texts, err := r.media.readFrames(ctx, fused)
	if err != nil {
		return nil, vberrors.New(vberrors.ErrCodeSearchFailed, "failed to decode frames", err)
	}

	slog.Debug("media_search",
		slog.Int("vector_hits", len(vecHits)),
		slog.Int("keyword_hits", len(kwHits)),
		slog.Int("results", len(texts)))

	return texts, nil
}

// Chat answers query using the top ContextK frames as context.
func (r *MediaRetriever) Chat(ctx context.Context, query string) (string, error) {
	if r.cfg.Chat == nil {
		return "", ErrNoChatClient
	}
	contexts, err := r.Search(ctx, query, r.cfg.ContextK)
	if err != nil {
		return "", err
	}
	return r.cfg.Chat.Chat(ctx, llm.BuildMessages(contexts, query))
}

// Close releases the media file and keyword index.
func (r *MediaRetriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *MediaRetriever) closeLocked() error {
	var errs []error
	if r.keywords != nil {
		errs = append(errs, r.keywords.close())
	}
	if r.media != nil {
		errs = append(errs, r.media.close())
	}
	r.media, r.keywords, r.vectors = nil, nil, nil
	return errors.Join(errs...)
}

// Open reopens artifacts written by Build. The keyword backend recorded in
// the manifest wins over cfg.KeywordBackend.
func Open(mediaPath, indexPath string, cfg Config) (*MediaRetriever, error) {
	r, err := NewMediaRetriever(cfg)
	if err != nil {
		return nil, err
	}

	mPath := manifestPath(indexPath)
	for _, p := range []string{mediaPath, indexPath, mPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, vberrors.New(vberrors.ErrCodeArtifactMissing, "retriever artifact not found", err).
				WithDetail("path", p).
				WithSuggestion("Rebuild the artifacts by running a comparison first")
		}
	}

	m, err := readManifest(mPath)
	if err != nil {
		return nil, corruptArtifact(mPath, err)
	}
	if m.Codec != "" && m.Codec != frameCodec {
		return nil, corruptArtifact(mPath, errors.New("unsupported frame codec "+m.Codec))
	}
	if dim := cfg.Embedder.Dimensions(); dim != m.Dimension {
		return nil, vberrors.New(vberrors.ErrCodeDimensionMismatch, "embedder does not match the built index", nil).
			WithDetail("expected", strconv.Itoa(m.Dimension)).
			WithDetail("got", strconv.Itoa(dim))
	}

	media, err := openMedia(mediaPath)
	if err != nil {
		return nil, corruptArtifact(mediaPath, err)
	}
	frames, err := media.frameCount()
	if err != nil || frames != m.Frames {
		_ = media.close()
		if err == nil {
			err = errors.New("frame count does not match manifest")
		}
		return nil, corruptArtifact(mediaPath, err)
	}

	vecIdx := newVectorIndex(m.Dimension, r.cfg.HNSWM, r.cfg.EfSearch)
	if err := vecIdx.load(indexPath); err != nil {
		_ = media.close()
		return nil, corruptArtifact(indexPath, err)
	}
	if vecIdx.len() != m.Frames {
		_ = media.close()
		return nil, corruptArtifact(indexPath, errors.New("vector count does not match manifest"))
	}

	var keywords keywordIndex = &sqliteKeywords{media: media}
	if m.KeywordBackend == KeywordBleve {
		kw, err := openBleve(bleveDir(mediaPath))
		if err != nil {
			_ = media.close()
			return nil, corruptArtifact(bleveDir(mediaPath), err)
		}
		keywords = kw
	}

	r.cfg.KeywordBackend = m.KeywordBackend
	r.media, r.keywords, r.vectors = media, keywords, vecIdx

	slog.Info("media_opened",
		slog.String("media", mediaPath),
		slog.Int("frames", m.Frames),
		slog.String("model", m.Model))

	return r, nil
}

func buildErr(msg string, err error, path string) error {
	return vberrors.New(vberrors.ErrCodeBuildFailed, msg, err).WithDetail("path", path)
}

func corruptArtifact(path string, err error) error {
	return vberrors.New(vberrors.ErrCodeArtifactCorrupt, "retriever artifact is corrupt", err).
		WithDetail("path", path).
		WithSuggestion("Delete the artifacts and rebuild them")
}

// pathSize returns the size of a file, or the total size of the files under
// a directory. Missing paths count as zero.
func pathSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return info.Size()
	}
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += fi.Size()
		}
		return nil
	})
	return total
}
