package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ragserver/internal/app"
	"ragserver/internal/config"
	"ragserver/internal/httpserver"
	"ragserver/pkg/zlog"
)

// version is overridable at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// 1. Load configuration. Invalid configuration (missing admin key,
	// CHUNK_OVERLAP >= CHUNK_SIZE, ...) is a programming error and is
	// fatal before anything else starts.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	zlog.Init(zlog.Config{
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Debug:      cfg.Debug,
	})
	defer zlog.Sync()

	// 2. Build the application container: EmbeddingService, VectorStore,
	// LLMClient, RAGOrchestrator, warmed up and transitioned to Ready.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	container, err := app.Build(ctx, cfg)
	cancel()
	if err != nil {
		zlog.Fatal("application startup failed: " + err.Error())
		return
	}

	router := httpserver.NewRouter(httpserver.Deps{
		Orchestrator: container.Orchestrator,
		Config:       cfg,
		Version:      version,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// 3. Start the HTTP listener.
	go func() {
		zlog.Info(fmt.Sprintf("server starting, listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed to start: " + err.Error())
		}
	}()

	// 4. Graceful shutdown: wait for SIGINT/SIGTERM, stop accepting new
	// connections, let in-flight requests (including open SSE streams)
	// drain, then release the vector store.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server shutdown error: " + err.Error())
	}

	if err := container.Close(); err != nil {
		zlog.Error("container close error: " + err.Error())
	}

	zlog.Info("server shut down")
}
