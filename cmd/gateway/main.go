package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ttsgate/internal/api"
	"ttsgate/internal/config"
	"ttsgate/internal/dispatch"
	"ttsgate/internal/engine"
	"ttsgate/internal/queue"
	"ttsgate/internal/registry"
	"ttsgate/internal/store"
	"ttsgate/internal/worker"
)

func main() {
	log.Println("Starting TTS Gateway...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	q := queue.New(cfg.DataDir)
	st := store.New(cfg.DataDir)
	reg := registry.New(cfg.DataDir)

	if err := st.EnsureDirs(); err != nil {
		log.Fatalf("Failed to prepare artifact store: %v", err)
	}
	if err := reg.EnsureDir(); err != nil {
		log.Fatalf("Failed to prepare readiness registry: %v", err)
	}
	for _, name := range cfg.EnabledEngines {
		if err := q.EnsureEngine(name); err != nil {
			log.Fatalf("Failed to prepare queue for %s: %v", name, err)
		}
	}

	// Dev mode: run the engine poll loops inside this process instead of
	// as separate worker deployments.
	var workerCancel context.CancelFunc
	if cfg.EmbedWorkers {
		log.Println("Embedded workers enabled, starting poll loops...")

		workers := make([]*worker.Worker, 0, len(cfg.EnabledEngines))
		for _, name := range cfg.EnabledEngines {
			cap, err := engine.New(name, cfg)
			if err != nil {
				log.Printf("WARNING: engine %s failed to initialize: %v", name, err)
				if pubErr := reg.PublishError(name, err); pubErr != nil {
					log.Printf("Failed to publish error record for %s: %v", name, pubErr)
				}
				continue
			}
			workers = append(workers, worker.New(cap, q, st, reg, cfg.ScanInterval))
		}

		var workerCtx context.Context
		workerCtx, workerCancel = context.WithCancel(context.Background())
		go func() {
			if err := worker.RunAll(workerCtx, workers...); err != nil {
				log.Printf("Embedded workers stopped: %v", err)
			}
		}()
	}

	// One-time startup wait: collect every enabled engine's readiness
	// descriptor, then freeze the capability table for the process lifetime.
	log.Printf("Waiting for engines: %v", cfg.EnabledEngines)
	table, err := reg.AwaitAll(context.Background(), cfg.EnabledEngines, cfg.StartupTimeout, cfg.StartupPoll)
	if err != nil {
		log.Fatalf("Failed to wait for engines: %v", err)
	}
	log.Printf("Available engines: %v", table.Engines())

	dispatcher := dispatch.New(q, st, table, cfg.JobTimeout, cfg.JobPoll)
	handler := api.NewHandler(dispatcher, table)
	router := api.NewRouter(handler, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	if cfg.BackendAPIKey != "" {
		log.Println("API key authentication enabled")
	} else {
		log.Println("WARNING: No BACKEND_API_KEY set — API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("Gateway listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gateway...")

	if workerCancel != nil {
		workerCancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Gateway exited")
}
