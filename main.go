package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felo/mail-ingest/internal/attachment"
	"github.com/felo/mail-ingest/internal/config"
	"github.com/felo/mail-ingest/internal/handlers"
	"github.com/felo/mail-ingest/internal/ingest"
	"github.com/felo/mail-ingest/internal/mime"
	"github.com/felo/mail-ingest/internal/parser"
	"github.com/felo/mail-ingest/internal/pipeline"
	"github.com/felo/mail-ingest/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	ingestDir := flag.String("dir", "", "ingest all .eml files under this directory and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Storage.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("database opened", "path", cfg.Storage.DBPath)

	p := parser.New(mime.NewMessageDecomposer(), logger)
	fb := parser.NewFallback(logger)
	proc := attachment.NewProcessor(logger)
	pl := pipeline.New(p, fb, proc, st, logger)

	// Bulk mode: ingest a directory tree and exit.
	if *ingestDir != "" {
		runner := ingest.NewRunner(pl, *ingestDir, logger)
		result, err := runner.Run(context.Background())
		if err != nil {
			logger.Error("bulk ingest failed", "error", err)
			os.Exit(1)
		}
		logger.Info("done",
			"found", result.TotalFound,
			"ingested", result.Ingested,
			"recovered", result.Recovered,
			"failed", result.Failed,
		)
		if result.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	h := handlers.New(pl, st, cfg, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/v1/ingest", h.Ingest)
	r.Get("/v1/emails", h.ListEmails)
	r.Get("/v1/emails/{messageID}", h.GetEmail)
	r.Get("/healthz", h.Health)

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-sigChan
	logger.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
