package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/denisplanner/backend/internal/aggregator"
	"github.com/denisplanner/backend/internal/api"
	"github.com/denisplanner/backend/internal/config"
	"github.com/denisplanner/backend/internal/database"
	"github.com/denisplanner/backend/internal/decider"
	"github.com/denisplanner/backend/internal/gtfs"
	"github.com/denisplanner/backend/internal/infra"
	"github.com/denisplanner/backend/internal/pipeline"
	"github.com/denisplanner/backend/internal/predict"
	"github.com/denisplanner/backend/internal/reputation"
)

const queueKey = "report_queue"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Store init failed: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	if err := db.SeedReportTypes(ctx); err != nil {
		log.Fatalf("Type seeding failed: %v", err)
	}

	queue, err := infra.NewRedisQueue(cfg.RedisAddr(), cfg.RedisDB, queueKey)
	if err != nil {
		log.Fatalf("Redis init failed: %v", err)
	}
	defer queue.Close()

	var predictor *predict.Predictor
	if cfg.ModelPath != "" {
		predictor, err = predict.Load(cfg.ModelPath)
		if err != nil {
			log.Printf("Predictor disabled: %v", err)
			predictor = nil
		}
	}

	agg := aggregator.New(db)
	agg.StartSweeper(ctx, cfg.SweepInterval)

	routine := pipeline.NewRoutine(
		queue,
		db,
		decider.New(decider.DefaultThresholds()),
		reputation.NewEngine(),
		agg,
		pipeline.NewMetrics(prometheus.DefaultRegisterer),
	)

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- routine.Run(ctx)
	}()

	server := api.NewServer(db, queue, gtfs.NewFeed(db), predictor)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	httpDone := make(chan error, 1)
	go func() {
		log.Printf("HTTP listening on %s", cfg.ListenAddr())
		httpDone <- httpServer.ListenAndServe()
	}()

	consumerExited := false
	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received")
	case err := <-consumerDone:
		consumerExited = true
		if err != nil {
			log.Printf("Consumer exited: %v", err)
		}
		stop()
	case err := <-httpDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server exited: %v", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if !consumerExited {
		<-consumerDone
	}
	log.Println("Stopped")
}
