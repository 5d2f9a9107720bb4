package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anthology/autoposter/internal/api"
	"github.com/anthology/autoposter/internal/classifier"
	"github.com/anthology/autoposter/internal/config"
	"github.com/anthology/autoposter/internal/imagegen"
	"github.com/anthology/autoposter/internal/pkg/distlock"
	"github.com/anthology/autoposter/internal/pkg/logger"
	"github.com/anthology/autoposter/internal/store"
	"github.com/anthology/autoposter/internal/telegram"
	"github.com/anthology/autoposter/internal/worker"
)

func main() {
	log.Println("Starting publishing pipeline...")

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := store.Open(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	st := store.New(db)
	log.Printf("Connected to database (%s)", logger.RedactDSN(cfg.Database.URL))

	// Redis is optional; without it the planner lock falls back to a
	// Postgres advisory lock.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		log.Println("Connected to Redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cl, err := classifier.New(ctx, cfg.Classifier)
	if err != nil {
		log.Fatalf("Failed to initialize classifier: %v", err)
	}

	sender := telegram.New(cfg.Telegram)
	painterClient := imagegen.New(cfg.Painter)

	plannerLock := distlock.NewLock(redisClient, db, "planner:round", 2*time.Minute)
	balancer := worker.NewMTBalancer(st, cl, cfg.Schedule.MTPosts)
	scorer := worker.NewTimeScorer(st)

	workers := []interface{ Start(context.Context) }{
		worker.NewPlanner(st, balancer, scorer, cfg.Schedule, plannerLock),
		worker.NewAggregator(st, cfg.Scoring),
		worker.NewLTUpdater(st, cl, cfg.Schedule),
		worker.NewLTMonitor(st, cl),
		worker.NewPainter(st, painterClient),
		worker.NewPreparator(st, cfg.Telegram.ChannelURL),
		worker.NewPublisher(st, sender, cfg.Schedule, cfg.Telegram.Group),
		worker.NewPreviewer(st, sender, cfg.Telegram.PreviewGroup),
		worker.NewCleaner(st),
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w interface{ Start(context.Context) }) {
			defer wg.Done()
			w.Start(ctx)
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		api.New(st, cfg.Server).Start(ctx)
	}()

	logger.Info("pipeline started",
		"workers", len(workers)+1,
		"database", cfg.Database.URL,
		"window", cfg.Schedule.MinHour, "window_end", cfg.Schedule.MaxHour)

	<-ctx.Done()
	log.Println("Shutdown signal received, waiting for workers...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("All workers stopped")
	case <-time.After(30 * time.Second):
		log.Println("Shutdown timed out, exiting anyway")
	}
}
