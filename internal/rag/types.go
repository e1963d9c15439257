// Package rag implements the central RAGOrchestrator: ingestion
// (parse -> chunk -> embed -> upsert), query (embed -> retrieve ->
// prompt-compose -> generate), and the admin list/delete/stats
// operations. It is the only component the HTTP layer talks to.
package rag

import "time"

// DocumentSummary is returned from ingestion and admin listing.
type DocumentSummary struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ChatTurn is one caller-supplied history entry.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamEvent is one unit on the query token stream. Chunk carries a
// token fragment; Done marks the terminal event, at which point
// Sources is populated exactly once.
type StreamEvent struct {
	Chunk   string
	Done    bool
	Sources []string
}

// QueryResult is the non-streaming chat answer.
type QueryResult struct {
	Response string
	Sources  []string
	QueryID  string
}

// Stats mirrors vectorstore.Stats at the orchestrator boundary.
type Stats struct {
	TotalDocuments int    `json:"total_documents"`
	TotalChunks    int    `json:"total_chunks"`
	EmbeddingModel string `json:"embedding_model"`
}

// DeleteResult is returned from DeleteDocument.
type DeleteResult struct {
	DeletedChunks int
}
