package rag

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ragserver/internal/chunking"
	"ragserver/internal/docloader"
	"ragserver/internal/embedding"
	"ragserver/internal/guardrails"
	"ragserver/internal/llm"
	"ragserver/internal/vectorstore"
	"ragserver/pkg/util"
	"ragserver/pkg/xerr"
	"ragserver/pkg/zlog"
)

const systemPrompt = "You are a grounded question-answering assistant. Answer using only the " +
	"provided context. If the context does not contain enough information to answer, say so " +
	"plainly instead of guessing."

// Orchestrator is the central component: the only one the HTTP layer
// talks to. It owns ingestion, query, and admin operations, and holds
// the process's one-way Uninitialized -> Ready transition.
type Orchestrator struct {
	embedder  embedding.Service
	store     vectorstore.Store
	llmClient llm.Client
	loader    *docloader.Loader
	chunker   *chunking.Utility

	llmModel            string
	topK                int
	scoreThreshold      float32
	historyBudgetTokens int
	uploadDir           string

	ready atomic.Bool
}

// Config bundles the orchestrator's tunables, pulled from the process
// configuration.
type Config struct {
	LLMModel            string
	TopK                int
	ScoreThreshold      float32
	HistoryBudgetTokens int
	// UploadDir, if non-empty, is where Ingest buffers the raw uploaded
	// bytes, keyed by document_id, per spec §6.4. Buffering is best
	// effort: a failure to write the buffered copy does not fail
	// ingestion, since the vector collection remains authoritative.
	UploadDir string
}

// New builds an Orchestrator in the Uninitialized state. Start must be
// called before it answers queries.
func New(embedder embedding.Service, store vectorstore.Store, llmClient llm.Client, loader *docloader.Loader, chunker *chunking.Utility, cfg Config) *Orchestrator {
	return &Orchestrator{
		embedder:            embedder,
		store:               store,
		llmClient:           llmClient,
		loader:              loader,
		chunker:             chunker,
		llmModel:            cfg.LLMModel,
		topK:                normalizeTopK(cfg.TopK),
		scoreThreshold:      cfg.ScoreThreshold,
		historyBudgetTokens: cfg.HistoryBudgetTokens,
		uploadDir:           cfg.UploadDir,
	}
}

// Start transitions Uninitialized -> Ready by warming up the embedding
// service. The transition is one-way for the process lifetime; Start
// must not be called again after it succeeds.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.embedder.WarmUp(ctx); err != nil {
		return err
	}
	o.ready.Store(true)
	return nil
}

// Ready reports whether the orchestrator has completed startup.
func (o *Orchestrator) Ready() bool { return o.ready.Load() }

func normalizeTopK(k int) int {
	if k <= 0 {
		return 5
	}
	if k > 50 {
		return 50
	}
	return k
}

// HealthProbe reports the reachability of the orchestrator's two
// external dependencies, for the /health endpoint.
func (o *Orchestrator) HealthProbe(ctx context.Context) (llmConnected, vectorStoreConnected bool) {
	llmConnected = o.llmClient.Ping(ctx)
	_, err := o.store.Stats(ctx)
	vectorStoreConnected = err == nil
	return
}

// Ingest runs the full parse -> chunk -> embed -> upsert pipeline for
// one uploaded file, replacing any previously indexed chunks under the
// same document_id so re-ingestion is idempotent rather than additive.
func (o *Orchestrator) Ingest(ctx context.Context, filename string, data []byte) (DocumentSummary, error) {
	if err := o.loader.Validate(filename, int64(len(data))); err != nil {
		return DocumentSummary{}, err
	}

	text, documentID, err := o.loader.Parse(filename, data)
	if err != nil {
		return DocumentSummary{}, err
	}

	o.bufferUpload(documentID, filename, data)

	// Re-ingestion replaces rather than duplicates: deleting first is a
	// no-op when the document_id hasn't been seen before.
	if _, err := o.store.DeleteDocument(ctx, documentID); err != nil {
		return DocumentSummary{}, err
	}

	chunks := o.chunker.Chunk(text)
	if len(chunks) == 0 {
		return DocumentSummary{}, xerr.ParseFailed("no extractable text", nil)
	}

	vectors, err := o.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return DocumentSummary{}, err
	}

	uploadedAt := time.Now().UTC()
	fileType := docloader.FileType(filename)
	records := make([]vectorstore.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = vectorstore.Record{
			ChunkID: fmt.Sprintf("%s:%d", documentID, i),
			Vector:  vectors[i],
			Text:    chunk,
			Metadata: vectorstore.Metadata{
				DocumentID:  documentID,
				Filename:    filename,
				FileType:    fileType,
				FileSize:    int64(len(data)),
				ChunkIndex:  i,
				TotalChunks: len(chunks),
				UploadedAt:  uploadedAt.Format(time.RFC3339),
			},
		}
	}

	if err := o.store.Upsert(ctx, records); err != nil {
		// Compensating delete: partial indexing must not persist.
		if _, delErr := o.store.DeleteDocument(ctx, documentID); delErr != nil {
			zlog.Error("compensating delete failed after upsert failure",
				zap.String("document_id", documentID), zap.Error(delErr))
		}
		return DocumentSummary{}, err
	}

	zlog.Info("document ingested",
		zap.String("document_id", documentID),
		zap.String("filename", filename),
		zap.Int("chunk_count", len(chunks)))

	return DocumentSummary{
		DocumentID: documentID,
		Filename:   filename,
		FileType:   fileType,
		FileSize:   int64(len(data)),
		ChunkCount: len(chunks),
		UploadedAt: uploadedAt,
	}, nil
}

// bufferUpload writes the raw uploaded bytes under uploadDir keyed by
// documentID, per spec §6.4, for debugging/re-ingestion. Written
// atomically (temp file + rename) like the vector store's own
// snapshots. Failures are logged and swallowed: the buffered copy's
// absence never affects retrieval, since the vector collection is the
// authoritative state.
func (o *Orchestrator) bufferUpload(documentID, filename string, data []byte) {
	if o.uploadDir == "" {
		return
	}
	if err := os.MkdirAll(o.uploadDir, 0o755); err != nil {
		zlog.Warn("failed to create upload buffer directory",
			zap.String("upload_dir", o.uploadDir), zap.Error(err))
		return
	}

	dest := filepath.Join(o.uploadDir, documentID+filepath.Ext(filename))
	tmp := filepath.Join(o.uploadDir, "."+util.GenerateShortUUID()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		zlog.Warn("failed to buffer upload", zap.String("document_id", documentID), zap.Error(err))
		return
	}
	if err := os.Rename(tmp, dest); err != nil {
		zlog.Warn("failed to finalize buffered upload", zap.String("document_id", documentID), zap.Error(err))
		_ = os.Remove(tmp)
	}
}

// Answer runs the non-streaming query pipeline: embed -> retrieve ->
// prompt-compose -> generate.
func (o *Orchestrator) Answer(ctx context.Context, message string, history []ChatTurn) (QueryResult, error) {
	queryID, hits, sources, err := o.retrieve(ctx, message)
	if err != nil {
		return QueryResult{}, err
	}

	promptMsgs := o.buildPrompt(message, history, hits)
	answer, err := o.llmClient.Complete(ctx, promptMsgs, llm.Options{Model: o.llmModel})
	if err != nil {
		return QueryResult{}, err
	}

	return QueryResult{Response: answer, Sources: sources, QueryID: queryID}, nil
}

// AnswerStream runs the streaming query pipeline. The returned channel
// emits token fragments in LLM-production order, followed by exactly
// one terminal event carrying the deduplicated source list. If ctx is
// cancelled before the stream completes, the underlying LLM call is
// aborted and the channel closes without a terminal event.
func (o *Orchestrator) AnswerStream(ctx context.Context, message string, history []ChatTurn) (<-chan StreamEvent, error) {
	queryID, hits, sources, err := o.retrieve(ctx, message)
	if err != nil {
		return nil, err
	}

	promptMsgs := o.buildPrompt(message, history, hits)
	stream, err := o.llmClient.Stream(ctx, promptMsgs, llm.Options{Model: o.llmModel})
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)
		var full strings.Builder

		for {
			tok, recvErr := stream.Recv()
			if tok != "" {
				full.WriteString(tok)
				if !sendEvent(ctx, events, StreamEvent{Chunk: tok}) {
					_ = stream.Close()
					return
				}
			}
			if recvErr == io.EOF {
				break
			}
			if recvErr != nil {
				zlog.Error("llm stream failed mid-response", zap.String("query_id", queryID), zap.Error(recvErr))
				sendEvent(ctx, events, StreamEvent{
					Chunk:   "I'm sorry, something went wrong while generating that answer.",
					Done:    true,
					Sources: sources,
				})
				return
			}
		}

		sendEvent(ctx, events, StreamEvent{Done: true, Sources: sources})
	}()

	return events, nil
}

// sendEvent delivers ev unless ctx is already cancelled, in which case
// it returns false so the caller can abort its upstream call instead
// of blocking on a channel nobody is reading anymore.
func sendEvent(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) retrieve(ctx context.Context, message string) (queryID string, hits []vectorstore.SearchHit, sources []string, err error) {
	message = strings.TrimSpace(guardrails.Sanitize(message))
	if message == "" {
		return "", nil, nil, xerr.QueryEmpty("message must not be empty")
	}

	if check := guardrails.CheckInput(message); !check.Safe {
		zlog.Warn("query rejected by input guardrails",
			zap.String("reason", check.Reason), zap.Int("threat", int(check.Threat)))
		return "", nil, nil, xerr.QueryEmpty("query rejected: " + check.Reason)
	}

	queryID = util.GenerateUUID()
	start := time.Now()

	vec, err := o.embedder.Embed(ctx, message)
	if err != nil {
		return "", nil, nil, err
	}
	embeddingDur := time.Since(start)

	searchStart := time.Now()
	rawHits, err := o.store.Query(ctx, vec, o.topK)
	if err != nil {
		return "", nil, nil, xerr.VectorStoreFailed("vector query failed", err)
	}
	searchDur := time.Since(searchStart)

	hits = filterByScore(rawHits, o.scoreThreshold)
	sources = extractSources(hits)

	zlog.Info("query retrieved context",
		zap.String("query_id", queryID),
		zap.Int("hits", len(hits)),
		zap.Strings("chunk_ids", chunkIDs(hits)),
		zap.Duration("embedding_duration", embeddingDur),
		zap.Duration("search_duration", searchDur),
		zap.Duration("total_duration", time.Since(start)))

	return queryID, hits, sources, nil
}

func filterByScore(hits []vectorstore.SearchHit, threshold float32) []vectorstore.SearchHit {
	if threshold <= 0 {
		return hits
	}
	out := make([]vectorstore.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= threshold {
			out = append(out, h)
		}
	}
	return out
}

// extractSources returns the unique ordered deduplication of filenames
// across hits, preserving first-seen order (i.e. rank order).
func extractSources(hits []vectorstore.SearchHit) []string {
	seen := make(map[string]struct{}, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.Metadata.Filename]; ok {
			continue
		}
		seen[h.Metadata.Filename] = struct{}{}
		out = append(out, h.Metadata.Filename)
	}
	return out
}

func chunkIDs(hits []vectorstore.SearchHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.ChunkID
	}
	return out
}

// buildPrompt assembles: a fixed system message, the caller-supplied
// history truncated from the oldest end to fit historyBudgetTokens,
// a system message carrying the retrieved context, and finally the
// user's question.
func (o *Orchestrator) buildPrompt(message string, history []ChatTurn, hits []vectorstore.SearchHit) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+3)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})

	for _, h := range truncateHistory(history, o.historyBudgetTokens) {
		role := llm.RoleUser
		switch h.Role {
		case "assistant":
			role = llm.RoleAssistant
		case "system":
			role = llm.RoleSystem
		}
		msgs = append(msgs, llm.Message{Role: role, Content: h.Content})
	}

	if len(hits) > 0 {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: buildContextMessage(hits)})
	}

	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: message})
	return msgs
}

func buildContextMessage(hits []vectorstore.SearchHit) string {
	var sb strings.Builder
	sb.WriteString("Relevant context retrieved from the document corpus:\n")
	for _, h := range hits {
		sb.WriteString(fmt.Sprintf("[%s chunk %d] %s\n", h.Metadata.Filename, h.Metadata.ChunkIndex, h.Text))
	}
	return sb.String()
}

// approxTokens is a character/4 heuristic; the budget it feeds is
// explicitly approximate, not a true tokenizer count.
func approxTokens(s string) int {
	return (len([]rune(s)) + 3) / 4
}

// truncateHistory drops from the oldest end until the remaining
// history fits within budget tokens, preserving chronological order.
// The most recent turn is always kept, even when it alone exceeds
// budget. A budget <= 0 leaves history untouched.
func truncateHistory(history []ChatTurn, budget int) []ChatTurn {
	if budget <= 0 || len(history) == 0 {
		return history
	}

	kept := make([]ChatTurn, 0, len(history))
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := approxTokens(history[i].Content)
		if total+cost > budget && len(kept) > 0 {
			break
		}
		kept = append(kept, history[i])
		total += cost
	}

	// kept was built newest-first; reverse back to chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// ListDocuments delegates to the VectorStore.
func (o *Orchestrator) ListDocuments(ctx context.Context) ([]DocumentSummary, error) {
	docs, err := o.store.ListDocuments(ctx)
	if err != nil {
		return nil, xerr.VectorStoreFailed("list documents failed", err)
	}
	out := make([]DocumentSummary, len(docs))
	for i, d := range docs {
		uploadedAt, _ := time.Parse(time.RFC3339, d.UploadedAt)
		out[i] = DocumentSummary{
			DocumentID: d.DocumentID,
			Filename:   d.Filename,
			FileType:   d.FileType,
			FileSize:   d.FileSize,
			ChunkCount: d.ChunkCount,
			UploadedAt: uploadedAt,
		}
	}
	return out, nil
}

// DeleteDocument delegates to the VectorStore. Idempotent: deleting a
// non-existent id returns DeletedChunks == 0.
func (o *Orchestrator) DeleteDocument(ctx context.Context, documentID string) (DeleteResult, error) {
	n, err := o.store.DeleteDocument(ctx, documentID)
	if err != nil {
		return DeleteResult{}, xerr.VectorStoreFailed("delete document failed", err)
	}
	return DeleteResult{DeletedChunks: n}, nil
}

// Stats delegates to the VectorStore.
func (o *Orchestrator) Stats(ctx context.Context) (Stats, error) {
	s, err := o.store.Stats(ctx)
	if err != nil {
		return Stats{}, xerr.VectorStoreFailed("stats failed", err)
	}
	return Stats{
		TotalDocuments: s.TotalDocuments,
		TotalChunks:    s.TotalChunks,
		EmbeddingModel: s.EmbeddingModel,
	}, nil
}
