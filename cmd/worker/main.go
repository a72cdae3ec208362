package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"ttsgate/internal/config"
	"ttsgate/internal/engine"
	"ttsgate/internal/queue"
	"ttsgate/internal/registry"
	"ttsgate/internal/store"
	"ttsgate/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.EngineName == "" {
		log.Fatal("ENGINE_NAME is required")
	}

	log.Printf("Starting worker for engine %s...", cfg.EngineName)

	q := queue.New(cfg.DataDir)
	st := store.New(cfg.DataDir)
	reg := registry.New(cfg.DataDir)

	if err := st.EnsureDirs(); err != nil {
		log.Fatalf("Failed to prepare artifact store: %v", err)
	}
	if err := reg.EnsureDir(); err != nil {
		log.Fatalf("Failed to prepare readiness registry: %v", err)
	}

	cap, err := engine.New(cfg.EngineName, cfg)
	if err != nil {
		// Publish the failure so the gateway learns the engine exists but
		// could not load, instead of waiting out its full startup budget.
		if pubErr := reg.PublishError(cfg.EngineName, err); pubErr != nil {
			log.Printf("Failed to publish error record: %v", pubErr)
		}
		log.Fatalf("Failed to initialize engine %s: %v", cfg.EngineName, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.New(cap, q, st, reg, cfg.ScanInterval)
	if err := w.Run(ctx); err != nil {
		log.Fatalf("Worker for %s failed: %v", cfg.EngineName, err)
	}

	log.Printf("Worker for %s exited", cfg.EngineName)
}
