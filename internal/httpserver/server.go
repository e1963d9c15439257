// Package httpserver is the transport-agnostic-core's only window
// onto HTTP: it frames the RAGOrchestrator's finite token stream as
// Server-Sent Events, maps the component error taxonomy onto status
// codes, and enforces the admin-key gate. No other package constructs
// a gin.Engine.
package httpserver

import (
	"crypto/subtle"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragserver/internal/config"
	"ragserver/internal/rag"
	"ragserver/pkg/httpx"
	"ragserver/pkg/ssl"
	"ragserver/pkg/xerr"
	"ragserver/pkg/zlog"
)

// Deps bundles everything a handler needs. Built once in cmd/ragserver
// from the application container and passed down explicitly.
type Deps struct {
	Orchestrator *rag.Orchestrator
	Config       *config.Config
	Version      string
}

// NewRouter builds the gin engine with every middleware and route the
// HTTP surface requires: CORS, security headers, request logging, and
// the admin-key gate on admin-only routes. Errors are mapped to status
// codes by httpx.Fail, called from the handlers and the admin gate.
func NewRouter(deps Deps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(ssl.SecurityHeaders())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = deps.Config.CORSOrigins
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "X-Admin-Key"}
	engine.Use(cors.New(corsCfg))

	h := &handlers{deps: deps}

	engine.GET("/health", h.health)
	engine.POST("/chat", h.chat)
	engine.POST("/chat/stream", h.chatStream)

	admin := engine.Group("/")
	admin.Use(adminAuth(deps.Config.AdminAPIKey))
	admin.POST("/ingest", h.ingest)
	admin.GET("/admin/documents", h.listDocuments)
	admin.DELETE("/admin/documents/:document_id", h.deleteDocument)
	admin.GET("/admin/stats", h.stats)

	return engine
}

// requestLogger logs method, path, status, and latency for every
// request at Info, matching the calling convention the rest of the
// process logs through.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		zlog.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// adminAuth enforces the X-Admin-Key gate on admin-only routes: missing
// header, a too-short configured key, or a mismatched key all fail with
// 401 and no side effect. Comparison is constant-time so the gate
// doesn't leak key material through timing.
func adminAuth(configuredKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-Admin-Key")
		if key == "" {
			httpx.Fail(c, xerr.AuthMissing("X-Admin-Key header is required"))
			return
		}
		if len(configuredKey) < 16 ||
			subtle.ConstantTimeCompare([]byte(key), []byte(configuredKey)) != 1 {
			httpx.Fail(c, xerr.AuthInvalid("invalid admin key"))
			return
		}
		c.Next()
	}
}
