// Package vectorstore defines the persistent similarity-search index
// the orchestrator exclusively writes to, and a file-backed
// implementation that survives process restart without requiring an
// external server.
package vectorstore

import "context"

// Record is one (chunk_id, embedding, metadata, text) entry.
type Record struct {
	ChunkID  string
	Vector   []float32
	Text     string
	Metadata Metadata
}

// Metadata is recorded alongside every chunk.
type Metadata struct {
	DocumentID  string `json:"document_id"`
	Filename    string `json:"filename"`
	FileType    string `json:"file_type"`
	FileSize    int64  `json:"file_size"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	UploadedAt  string `json:"uploaded_at"`
}

// SearchHit is one ranked result from Query.
type SearchHit struct {
	ChunkID  string
	Score    float32
	Text     string
	Metadata Metadata
}

// DocumentSummary is the aggregated per-document view returned by
// ListDocuments.
type DocumentSummary struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size"`
	ChunkCount int    `json:"chunk_count"`
	UploadedAt string `json:"uploaded_at"`
}

// Stats is the aggregate view returned by Stats.
type Stats struct {
	TotalDocuments int    `json:"total_documents"`
	TotalChunks    int    `json:"total_chunks"`
	EmbeddingModel string `json:"embedding_model"`
}

// Store is the persistent similarity-search index. Implementations
// serialize mutating calls internally; readers may proceed concurrently
// with other readers but never with a writer.
type Store interface {
	// Upsert writes records keyed by ChunkID; re-ingesting a document
	// replaces its chunks rather than accumulating duplicates.
	Upsert(ctx context.Context, records []Record) error

	// Query returns up to k records ordered by decreasing cosine
	// similarity to embedding, ties broken by ChunkID ascending.
	Query(ctx context.Context, embedding []float32, k int) ([]SearchHit, error)

	// DeleteDocument removes every chunk belonging to documentID and
	// returns the number of chunks deleted. Deleting an id with no
	// chunks is a no-op returning 0.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// ListDocuments returns one entry per distinct document, sorted by
	// UploadedAt descending.
	ListDocuments(ctx context.Context) ([]DocumentSummary, error)

	// Stats returns the aggregate view of the collection.
	Stats(ctx context.Context) (Stats, error)

	// Close flushes and releases any held resources.
	Close() error
}
