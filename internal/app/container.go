// Package app builds the explicit dependency-injection container the
// rest of the process is constructed from. Replaces the source's
// module-level singletons (config.GetConfig(), package-level gin
// engines) with values built once at startup and passed down, per the
// Design Notes on re-architecting cyclic global state.
package app

import (
	"context"
	"fmt"
	"time"

	"ragserver/internal/chunking"
	"ragserver/internal/config"
	"ragserver/internal/docloader"
	"ragserver/internal/embedding"
	"ragserver/internal/llm"
	"ragserver/internal/rag"
	"ragserver/internal/vectorstore"
)

// Container holds every constructed component. Tests build their own
// Container with fakes instead of reaching for package-level state.
type Container struct {
	Config       *config.Config
	Embedder     embedding.Service
	Store        vectorstore.Store
	LLMClient    llm.Client
	Loader       *docloader.Loader
	Chunker      *chunking.Utility
	Orchestrator *rag.Orchestrator
}

// Build constructs every component from cfg and warms up the
// embedding service. A non-nil error here is fatal at process startup.
func Build(ctx context.Context, cfg *config.Config) (*Container, error) {
	embedder := embedding.NewOllamaService(cfg.EmbeddingBaseURL, cfg.EmbeddingModel, 60*time.Second)

	store, err := vectorstore.Open(cfg.VectorStoreDir, cfg.CollectionName, cfg.EmbeddingModel, 0)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	llmClient := llm.NewOllamaClient(cfg.LLMBaseURL, 60*time.Second, 30*time.Second)
	loader := docloader.New(cfg.AllowedExtensions, cfg.MaxFileSizeMB)
	chunker := newChunker(cfg)

	orchestrator := rag.New(embedder, store, llmClient, loader, chunker, rag.Config{
		LLMModel:            cfg.LLMModel,
		TopK:                cfg.TopKResults,
		ScoreThreshold:      cfg.ScoreThreshold,
		HistoryBudgetTokens: cfg.HistoryBudgetTokens,
		UploadDir:           cfg.UploadDir,
	})

	if err := orchestrator.Start(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("orchestrator startup failed: %w", err)
	}

	return &Container{
		Config:       cfg,
		Embedder:     embedder,
		Store:        store,
		LLMClient:    llmClient,
		Loader:       loader,
		Chunker:      chunker,
		Orchestrator: orchestrator,
	}, nil
}

// Close releases held resources. Called once during graceful shutdown.
func (c *Container) Close() error {
	return c.Store.Close()
}

// newChunker selects the chunking strategy named by CHUNK_STRATEGY:
// "boundary" (default) for the greedy priority-ordered splitter, or
// "recursive" to delegate to eino-ext's recursive splitter instead.
func newChunker(cfg *config.Config) *chunking.Utility {
	if cfg.ChunkStrategy == "recursive" {
		return chunking.NewRecursive(cfg.ChunkSize, cfg.ChunkOverlap)
	}
	return chunking.New(cfg.ChunkSize, cfg.ChunkOverlap)
}
