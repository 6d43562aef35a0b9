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

	"github.com/pulsemetrics/guardrail/internal/config"
	"github.com/pulsemetrics/guardrail/internal/models"
	"github.com/pulsemetrics/guardrail/internal/repository"
	"github.com/pulsemetrics/guardrail/internal/server"
	"github.com/pulsemetrics/guardrail/internal/storage"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// The account store is required: without it the engine cannot read
	// plan tiers or enforce suspensions.
	postgres, err := storage.NewPostgres(cfg.Postgres.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if err := seedTiers(postgres, cfg); err != nil {
		log.Fatalf("Failed to seed plan tiers: %v", err)
	}

	// Redis is not: the engine degrades to its in-process counters when
	// the durable store is missing or down.
	redis, err := storage.NewRedis(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("WARNING: Redis unavailable, counters are per-instance only: %v", err)
		redis = nil
	} else {
		defer redis.Close()
		log.Println("Connected to Redis successfully")
	}

	srv, err := server.New(cfg, redis, postgres)
	if err != nil {
		log.Fatalf("Failed to build server: %v", err)
	}

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

func seedTiers(postgres *storage.Postgres, cfg *config.Config) error {
	tiers := make([]models.PlanTier, 0, len(cfg.RateLimit.Tiers))
	for _, tier := range cfg.RateLimit.Tiers {
		tiers = append(tiers, models.PlanTier{
			Name:             tier.Name,
			PerMinute:        tier.PerMinute,
			PerHour:          tier.PerHour,
			PerDay:           tier.PerDay,
			WarningThreshold: tier.WarningThreshold,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return repository.NewTierRepository(postgres).Seed(ctx, tiers)
}
