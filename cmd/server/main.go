package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kgrenier/indicator-pipeline/internal/api"
	"github.com/kgrenier/indicator-pipeline/internal/cache"
	"github.com/kgrenier/indicator-pipeline/internal/config"
	"github.com/kgrenier/indicator-pipeline/internal/database"
	"github.com/kgrenier/indicator-pipeline/internal/kafka"
	"github.com/kgrenier/indicator-pipeline/internal/pipeline"
	"github.com/kgrenier/indicator-pipeline/internal/scheduler"
	"github.com/kgrenier/indicator-pipeline/internal/terminal"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] indicator pipeline starting...")

	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] no .env file found, using environment")
	}

	cfg := config.Load()

	// Database
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("[FATAL] connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
		log.Fatalf("[FATAL] run migrations: %v", err)
	}

	// Redis cache (optional)
	var latestCache *cache.Client
	if cfg.Redis.Enabled {
		latestCache, err = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err != nil {
			log.Printf("[WARN] redis unavailable, running without cache: %v", err)
			latestCache = nil
		} else {
			defer latestCache.Close()
		}
	}

	// Kafka producer (optional)
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.IndicatorTopic)
		defer producer.Close()
	}

	// Terminal gateway client
	fetcher := terminal.NewClient(cfg.Terminal.BaseURL, cfg.Terminal.APIKey)

	// Refresh pipeline
	pipe := newPipeline(db, fetcher, latestCache, producer, cfg.Terminal.FetchLimit)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Kafka consumer for bar events (optional)
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.BarTopic, cfg.Kafka.GroupID, db, pipe)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Printf("[ERROR] kafka consumer stopped: %v", err)
			}
		}()
	}

	// Scheduled refresh
	sched := scheduler.NewScheduler(ctx, pipe)
	if err := sched.Register(cfg.Scheduler.RefreshCron); err != nil {
		log.Fatalf("[FATAL] register refresh task: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Scheduler.RunOnStart {
		log.Println("[INFO] REFRESH_ON_START enabled, refreshing now")
		go sched.RunRefreshNow()
	}

	// HTTP API
	handler := api.NewHandler(db, latestCache, pipe)
	router := api.SetupRoutes(handler)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("[INFO] HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] http shutdown: %v", err)
	}

	log.Println("[INFO] indicator pipeline stopped")
}

func newPipeline(db *database.DB, fetcher terminal.Fetcher, c *cache.Client, p *kafka.Producer, fetchLimit int) *pipeline.Pipeline {
	var latest pipeline.LatestCache
	if c != nil {
		latest = c
	}
	var publisher pipeline.Publisher
	if p != nil {
		publisher = p
	}
	return pipeline.New(db, fetcher, latest, publisher, fetchLimit)
}
