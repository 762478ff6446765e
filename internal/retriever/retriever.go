// Package retriever implements the encoded-media retriever compared against
// the baseline index. Chunks are stored as compressed frames in a single
// SQLite media file; an HNSW graph and a keyword index find them again.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Retriever is the contract the benchmark drives for the external backend.
type Retriever interface {
	// Build encodes chunks into the media artifact at mediaPath and the
	// search index at indexPath.
	Build(ctx context.Context, chunks []string, mediaPath, indexPath string) (BuildStats, error)

	// Search returns up to k chunk texts, best first.
	Search(ctx context.Context, query string, k int) ([]string, error)

	// Chat answers query from retrieved context.
	Chat(ctx context.Context, query string) (string, error)

	Close() error
}

// BuildStats describes a finished build.
type BuildStats struct {
	Chunks     int           `json:"chunks"`
	Frames     int           `json:"frames"`
	MediaBytes int64         `json:"media_bytes"`
	IndexBytes int64         `json:"index_bytes"`
	Duration   time.Duration `json:"duration"`
}

var (
	// ErrNoChatClient is returned by Chat when no LLM client is configured.
	ErrNoChatClient = errors.New("no chat client configured")

	// ErrNotBuilt is returned when searching before Build or Open.
	ErrNotBuilt = errors.New("retriever has not been built or opened")
)

// KeywordBackend selects the keyword half of hybrid search.
type KeywordBackend string

const (
	// KeywordSQLite uses an FTS5 table inside the media file.
	KeywordSQLite KeywordBackend = "sqlite"
	// KeywordBleve uses a bleve index in a directory next to the media file.
	KeywordBleve KeywordBackend = "bleve"
)

// ParseKeywordBackend converts a string to a KeywordBackend.
func ParseKeywordBackend(s string) (KeywordBackend, error) {
	switch KeywordBackend(strings.ToLower(strings.TrimSpace(s))) {
	case KeywordSQLite, "":
		return KeywordSQLite, nil
	case KeywordBleve:
		return KeywordBleve, nil
	default:
		return "", fmt.Errorf("unknown keyword backend %q (valid: sqlite, bleve)", s)
	}
}

// Search defaults.
const (
	// DefaultContextK is how many chunks Chat retrieves as context.
	DefaultContextK = 5

	// DefaultCandidates is the minimum number of candidates each half of
	// hybrid search contributes before fusion.
	DefaultCandidates = 20

	// DefaultHNSWM is the HNSW neighbor count.
	DefaultHNSWM = 16

	// DefaultEfSearch is the HNSW search beam width.
	DefaultEfSearch = 64
)
