package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"boatresearch/internal/config"
	"boatresearch/internal/core/browser"
	"boatresearch/internal/core/job"
	"boatresearch/internal/core/listing"
	"boatresearch/internal/core/research"
	"boatresearch/internal/core/specs"
	"boatresearch/internal/core/websearch"
	"boatresearch/internal/logger"
	rds "boatresearch/internal/platform/redis"
	tasks "boatresearch/internal/platform/tasks"
	"boatresearch/internal/server"
	"boatresearch/internal/storage"
)

type entityStore interface {
	listing.Store
	research.Store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.Printf("[boatresearch] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis backs the job tracker and the task queue even with the memory store.
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	var store entityStore
	switch cfg.StoreBackend {
	case "memory":
		logr.LogWarnf("using the in-memory store; data is lost on restart")
		store = storage.NewMemory()
	default:
		store = storage.NewRedis(redisSvc)
	}

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	defer taskClient.Close()
	asynqServer := tasks.NewServer(redisSvc, 4)

	// Core services
	jobSvc := job.NewJobService(redisSvc)
	ingestSvc := listing.NewIngestService(store, jobSvc, taskClient, cfg.DataDir, cfg.TaskMaxRetries)

	browserMutex := browser.NewMutex()
	fetcher := browser.NewFetcher(browserMutex, browser.Options{
		Engine:            cfg.BrowserEngine,
		Headless:          cfg.BrowserHeadless,
		ProfileDir:        cfg.BrowserProfileDir,
		NavigationTimeout: cfg.NavigationTimeout,
		RenderWait:        cfg.RenderWait,
		SettleDelay:       cfg.SettleDelay,
		ChallengeTitles:   cfg.Sources.ChallengeTitles,
	})
	specsClient := specs.NewClient(fetcher, cfg.Sources.SpecsSite.BaseURL, cfg.Sources.SpecsSite.ResultsPerPage)
	searchClient := websearch.NewClient(websearch.Options{
		Endpoint:  cfg.Sources.WebSearch.Endpoint,
		UserAgent: cfg.Sources.WebSearch.UserAgent,
		Timeout:   cfg.SearchTimeout,
	})

	runner := research.NewRunner(research.RunnerDeps{
		Store:           store,
		Fetcher:         fetcher,
		Specs:           specsClient,
		Search:          searchClient,
		ReviewQualifier: cfg.Sources.ReviewQualifier,
		ForumQualifier:  cfg.Sources.ForumQualifier,
	})
	registry := research.NewRegistry(store, runner, research.NewPublisher(), research.RegistryOptions{
		MaxConcurrent: cfg.MaxConcurrentResearch,
		Retention:     cfg.JobRetention,
	})

	// Worker mux
	mux := tasks.NewMux()
	mux.HandleFunc(tasks.TaskTypeIngest, ingestSvc.HandleIngestTask)

	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Boat Research",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	deps := server.Dependencies{
		Job:           jobSvc,
		Listings:      store,
		Ingest:        ingestSvc,
		Research:      registry,
		ResearchStore: store,
		Browser:       browserMutex,
		Redis:         redisSvc,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisSvc.HealthCheck(ctx); err != nil {
		logr.LogWarnf("redis health check failed at startup: %v", err)
	}
	cancel()
	healthHandler.SetReady()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		asynqServer.Shutdown()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
	// Paused research jobs fail with a shutdown error and persist it.
	registry.Close()
	logr.LogInfo("Stopped")
}
