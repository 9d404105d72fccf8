package domain

// EmbeddedChunk is one embedded window of a source file, cached per repo.
type EmbeddedChunk struct {
	Path       string    `json:"path"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding"`
	ChunkIndex int       `json:"chunkIndex"`
}

// SearchResult is the best-scoring chunk of one file for a query.
type SearchResult struct {
	Path    string  `json:"path"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
