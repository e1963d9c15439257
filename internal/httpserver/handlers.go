package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ragserver/internal/rag"
	"ragserver/pkg/httpx"
	"ragserver/pkg/xerr"
)

type handlers struct {
	deps Deps
}

// connected/disconnected are the two states reported for each
// dependency in the /health response.
const (
	connected    = "connected"
	disconnected = "disconnected"
)

// health implements GET /health.
func (h *handlers) health(c *gin.Context) {
	llmOK, storeOK := h.deps.Orchestrator.HealthProbe(c.Request.Context())

	status := "healthy"
	if !llmOK || !storeOK {
		status = "unhealthy"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"version":   h.deps.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": gin.H{
			"llm":          serviceLabel(llmOK),
			"vector_store": serviceLabel(storeOK),
		},
	})
}

func serviceLabel(ok bool) string {
	if ok {
		return connected
	}
	return disconnected
}

// chatRequest is the body shared by /chat and /chat/stream.
type chatRequest struct {
	Message string         `json:"message" binding:"required"`
	History []rag.ChatTurn `json:"history"`
}

func (r chatRequest) validate() error {
	if len(r.Message) == 0 || len(r.Message) > 4000 {
		return xerr.QueryEmpty("message must be between 1 and 4000 characters")
	}
	return nil
}

// chat implements POST /chat: the non-streaming query pipeline.
func (h *handlers) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, xerr.QueryEmpty("message is required"))
		return
	}
	if err := req.validate(); err != nil {
		httpx.Fail(c, err)
		return
	}

	result, err := h.deps.Orchestrator.Answer(c.Request.Context(), req.Message, req.History)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	c.Header("X-Query-Id", result.QueryID)
	sources := result.Sources
	if sources == nil {
		sources = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"response": result.Response,
		"sources":  sources,
	})
}

// sseEvent is the wire shape of one event on /chat/stream.
type sseEvent struct {
	Chunk   string   `json:"chunk"`
	Done    bool     `json:"done"`
	Sources []string `json:"sources"`
}

// chatStream implements POST /chat/stream: frames the orchestrator's
// transport-agnostic token stream as Server-Sent Events. This handler
// is the only place in the process that knows SSE framing exists.
func (h *handlers) chatStream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, xerr.QueryEmpty("message is required"))
		return
	}
	if err := req.validate(); err != nil {
		httpx.Fail(c, err)
		return
	}

	events, err := h.deps.Orchestrator.AnswerStream(c.Request.Context(), req.Message, req.History)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			writeSSE(w, sseEvent{Chunk: ev.Chunk, Done: ev.Done, Sources: nonNil(ev.Sources)})
			if ev.Done {
				fmt.Fprint(w, "data: [DONE]\n\n")
				return false
			}
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeSSE(w io.Writer, ev sseEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// ingest implements POST /ingest: multipart upload of one file.
func (h *handlers) ingest(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpx.Fail(c, xerr.UnsupportedFormat("multipart field \"file\" is required"))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		httpx.Fail(c, xerr.Internal("open uploaded file", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		httpx.Fail(c, xerr.Internal("read uploaded file", err))
		return
	}

	summary, err := h.deps.Orchestrator.Ingest(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"document": summary,
	})
}

// listDocuments implements GET /admin/documents.
func (h *handlers) listDocuments(c *gin.Context) {
	docs, err := h.deps.Orchestrator.ListDocuments(c.Request.Context())
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"documents":   docs,
		"total_count": len(docs),
	})
}

// deleteDocument implements DELETE /admin/documents/{document_id}.
// Idempotent: deleting a non-existent id returns deleted_chunks == 0
// rather than a 404.
func (h *handlers) deleteDocument(c *gin.Context) {
	documentID := c.Param("document_id")
	result, err := h.deps.Orchestrator.DeleteDocument(c.Request.Context(), documentID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"deleted_chunks": result.DeletedChunks,
		"message":        fmt.Sprintf("deleted %d chunk(s) for document %s", result.DeletedChunks, documentID),
	})
}

// stats implements GET /admin/stats.
func (h *handlers) stats(c *gin.Context) {
	s, err := h.deps.Orchestrator.Stats(c.Request.Context())
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
