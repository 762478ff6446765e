package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/vecbench/internal/embed"
	"github.com/Aman-CERP/vecbench/internal/retriever"
	"github.com/Aman-CERP/vecbench/internal/store"
)

// previewWidth bounds how much chunk text a result line shows.
const previewWidth = 200

type queryResult struct {
	Backend  string         `json:"backend"`
	Query    string         `json:"query"`
	Rank     int            `json:"rank"`
	Text     string         `json:"text"`
	Distance *float32       `json:"distance,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		artifact   string
		media      string
		mediaIndex string
		queries    []string
		topK       int
		embedder   string
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search saved artifacts from a previous run",
		Long: `Load saved artifacts and print the ranked results for each query.

--artifact loads a baseline index (backend B) by its base path, without
the .index/.meta extension. --media and --media-index load an encoded
media retriever (backend A). Use the embedder the artifacts were built
with.`,
		Example: `  vecbench query --artifact baseline_comparison_20260506_070809 --query "main topic"
  vecbench query --media media_comparison_20260506_070809.db \
    --media-index media_comparison_20260506_070809_index.hnsw --query "main topic"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if topK <= 0 {
				return fmt.Errorf("--top-k must be positive, got %d", topK)
			}
			cfg := *a.cfg
			if cmd.Flags().Changed("embedder") {
				cfg.Embeddings.Provider = embedder
			}
			provider, err := embed.ParseProvider(cfg.Embeddings.Provider)
			if err != nil {
				return err
			}
			emb, err := embed.NewEmbedder(cmd.Context(), provider, embed.FactoryConfig{
				Model:      cfg.Embeddings.Model,
				Dimensions: cfg.Embeddings.Dimensions,
				OllamaHost: cfg.Embeddings.OllamaHost,
				BatchSize:  cfg.Embeddings.BatchSize,
				CacheSize:  cfg.Embeddings.CacheSize,
			})
			if err != nil {
				return err
			}
			defer func() { _ = emb.Close() }()

			var results []queryResult
			if artifact != "" {
				engine := store.NewEngine(emb, store.EngineConfig{NProbe: cfg.Index.NProbe})
				if err := engine.Load(artifact); err != nil {
					return err
				}
				for _, q := range queries {
					hits, err := engine.Search(cmd.Context(), q, topK)
					if err != nil {
						return err
					}
					for i, h := range hits {
						d := h.Distance
						results = append(results, queryResult{Backend: "B", Query: q, Rank: i + 1, Text: h.Text, Distance: &d, Metadata: h.Metadata})
					}
				}
			}
			if media != "" {
				r, err := retriever.Open(media, mediaIndex, retriever.Config{
					Embedder: emb,
					HNSWM:    cfg.Retriever.HNSWM,
					EfSearch: cfg.Retriever.EfSearch,
				})
				if err != nil {
					return err
				}
				defer func() { _ = r.Close() }()
				for _, q := range queries {
					texts, err := r.Search(cmd.Context(), q, topK)
					if err != nil {
						return err
					}
					for i, t := range texts {
						results = append(results, queryResult{Backend: "A", Query: q, Rank: i + 1, Text: t})
					}
				}
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&artifact, "artifact", "", "Baseline index base path")
	f.StringVar(&media, "media", "", "Encoded media file")
	f.StringVar(&mediaIndex, "media-index", "", "Vector index file of --media")
	f.StringArrayVarP(&queries, "query", "q", nil, "Query text (repeatable)")
	f.IntVarP(&topK, "top-k", "k", 5, "Results per query")
	f.StringVar(&embedder, "embedder", "", "Embedder the artifacts were built with")
	f.BoolVar(&jsonOut, "json", false, "Print results as JSON")
	_ = cmd.MarkFlagRequired("query")
	cmd.MarkFlagsOneRequired("artifact", "media")
	cmd.MarkFlagsRequiredTogether("media", "media-index")

	return cmd
}

// printResults prints one block per backend and query, in the order the
// results were produced.
func printResults(w io.Writer, results []queryResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "No results.")
		return
	}
	var backend, query string
	for i, r := range results {
		if i == 0 || r.Backend != backend || r.Query != query {
			if i > 0 {
				_, _ = fmt.Fprintln(w)
			}
			backend, query = r.Backend, r.Query
			_, _ = fmt.Fprintf(w, "Backend %s: %s\n", r.Backend, r.Query)
		}
		if r.Distance != nil {
			_, _ = fmt.Fprintf(w, "  %d. [%.4f] %s\n", r.Rank, *r.Distance, formatMetadata(r.Metadata))
		} else {
			_, _ = fmt.Fprintf(w, "  %d.\n", r.Rank)
		}
		_, _ = fmt.Fprintf(w, "     %s\n", preview(r.Text))
	}
}

func formatMetadata(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, m[k])
	}
	return strings.Join(parts, " ")
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > previewWidth {
		return string(r[:previewWidth]) + "..."
	}
	return s
}
