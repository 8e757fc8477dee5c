package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/api"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/config"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/extractor"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/model"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/ner"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/parser"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if limit := cfg.GoMemoryLimitBytes(); limit > 0 {
		model.ApplySoftLimit(limit)
		log.Info("go memory limit", "limit", humanize.IBytes(limit))
	}

	// Initialize model and recognizer. The model loads on first use.
	models := model.NewManager(cfg.ModelOptions(), log)
	stats := ner.NewInferenceStats(time.Hour)
	recognizer := ner.NewRecognizer(ner.ManagerSource(models), ner.Options{
		MaxSeqLength:    cfg.MaxSeqLength,
		Windowed:        cfg.WindowedInference,
		MaxConcurrent:   cfg.MaxConcurrentInference,
		MemorySoftLimit: cfg.MemorySoftLimitBytes(),
	}, stats, log)

	// Initialize pipeline.
	ext := extractor.New(log, parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext})
	worker := pipeline.NewWorker(ext, recognizer, cfg.MinTextLength, log)
	orch := pipeline.NewOrchestrator(cfg, worker, models, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, worker, models, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}

		orch.Stop()
		models.Unload()
	}()

	log.Info("starting resumener",
		"port", cfg.Port,
		"model", cfg.ModelPath,
		"device", cfg.Device,
		"max_seq_length", cfg.MaxSeqLength,
		"windowed", cfg.WindowedInference,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
