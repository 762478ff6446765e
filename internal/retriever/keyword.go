package retriever

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
)

// keywordIndex is the lexical half of hybrid search. Document IDs are frame
// numbers.
type keywordIndex interface {
	index(ctx context.Context, texts []string) error
	search(ctx context.Context, query string, limit int) ([]int, error)
	close() error
}

// bleveDir returns the bleve index directory for a media file.
func bleveDir(mediaPath string) string {
	return mediaPath + ".bleve"
}

// bleveKeywords is a BM25 keyword index stored as a bleve directory.
type bleveKeywords struct {
	idx bleve.Index
}

type bleveFrame struct {
	Content string `json:"content"`
}

// createBleve replaces any index at dir with an empty one.
func createBleve(dir string) (*bleveKeywords, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to remove stale keyword index: %w", err)
	}
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.New(dir, mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return &bleveKeywords{idx: idx}, nil
}

// openBleve opens an existing index directory.
func openBleve(dir string) (*bleveKeywords, error) {
	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index: %w", err)
	}
	return &bleveKeywords{idx: idx}, nil
}

func (b *bleveKeywords) index(_ context.Context, texts []string) error {
	batch := b.idx.NewBatch()
	for i, text := range texts {
		if err := batch.Index(strconv.Itoa(i), bleveFrame{Content: text}); err != nil {
			return fmt.Errorf("failed to index frame %d: %w", i, err)
		}
	}
	if err := b.idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

func (b *bleveKeywords) search(ctx context.Context, query string, limit int) ([]int, error) {
	if ftsQuery(query) == "" {
		return []int{}, nil
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("content")
	req := bleve.NewSearchRequest(match)
	req.Size = limit

	res, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	out := make([]int, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (b *bleveKeywords) close() error {
	return b.idx.Close()
}
