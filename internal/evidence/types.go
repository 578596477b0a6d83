// Package evidence retrieves, deduplicates, and formats supporting documents
// for grounded response generation.
package evidence

// Metadata identifies where a retrieved chunk came from.
type Metadata struct {
	SourceCategory string  `json:"source_category"`
	SourceID       string  `json:"source_id"`
	ChunkID        int     `json:"chunk_id"`
	Similarity     float32 `json:"similarity"`
}

// Item is a single retrieved document chunk.
type Item struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}
