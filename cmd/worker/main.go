package main

// Queue worker process:
//   go run ./cmd/worker
//
// Requires REDIS_ADDR; the API enqueues jobs it cannot run in-process.

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"exam-backend/internal/bootstrap"
	"exam-backend/internal/queue"
	"exam-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()
	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()
	if app.Queue == nil {
		log.Fatal("redis queue unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.Sweeper.Run(ctx)

	worker := &queue.Worker{
		Queue:       app.Queue,
		Runner:      app.Runner,
		Concurrency: cfg.WorkerConcurrency,
		JobTimeout:  cfg.JobTimeout,
	}
	worker.Run(ctx)
}
