// Package chunk splits extracted document text into fixed-size overlapping windows.
package chunk

// Chunk size defaults, in bytes.
const (
	DefaultSize    = 1024
	DefaultOverlap = 16
)

// Metadata records where a chunk came from.
type Metadata struct {
	SourceFile  string `json:"file"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
}

// Map returns the metadata in the generic form stored by index sidecars.
func (m Metadata) Map() map[string]any {
	return map[string]any{
		"file":         m.SourceFile,
		"chunk_index":  m.ChunkIndex,
		"total_chunks": m.TotalChunks,
	}
}

// Chunk is a retrievable unit of text. Chunks are never mutated after ingestion.
type Chunk struct {
	Text     string
	Metadata Metadata
}

// Texts returns the chunk texts in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

// Metadatas returns the chunk metadata maps in order.
func Metadatas(chunks []Chunk) []map[string]any {
	out := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		out[i] = c.Metadata.Map()
	}
	return out
}
