package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulsemetrics/guardrail/internal/abuse"
	"github.com/pulsemetrics/guardrail/internal/alert"
	"github.com/pulsemetrics/guardrail/internal/circuitbreaker"
	"github.com/pulsemetrics/guardrail/internal/clock"
	"github.com/pulsemetrics/guardrail/internal/config"
	"github.com/pulsemetrics/guardrail/internal/counter"
	"github.com/pulsemetrics/guardrail/internal/handler"
	"github.com/pulsemetrics/guardrail/internal/middleware"
	"github.com/pulsemetrics/guardrail/internal/ratelimit"
	"github.com/pulsemetrics/guardrail/internal/repository"
	"github.com/pulsemetrics/guardrail/internal/service"
	"github.com/pulsemetrics/guardrail/internal/storage"
	"github.com/pulsemetrics/guardrail/internal/suspension"
)

type Server struct {
	router     *gin.Engine
	config     *config.Config
	redis      *storage.RedisClient
	postgres   *storage.Postgres
	store      *counter.FailoverStore
	dispatcher *alert.AsyncDispatcher
	engine     *service.Engine
	httpServer *http.Server
	sweepStop  context.CancelFunc
}

// New assembles the decision engine and its admin surface. redis may be
// nil: the engine then runs entirely on the in-process fallback store.
func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	clk := clock.System()

	// Counter stores: durable Redis behind a breaker, in-process fallback
	// swept in the background.
	memStore := counter.NewMemoryStore(clk)
	sweepCtx, sweepStop := context.WithCancel(context.Background())
	memStore.StartSweeper(sweepCtx, time.Hour)

	var durable counter.Store
	if redis != nil {
		durable = counter.NewRedisStore(redis, clk)
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{Clock: clk})
	store := counter.NewFailoverStore(durable, memStore, breaker, cfg.RateLimit.StoreTimeout())

	table, err := ratelimit.NewTable(cfg.RateLimit.Tiers)
	if err != nil {
		sweepStop()
		return nil, err
	}

	limiter := ratelimit.New(store, table, clk)
	summarizer := abuse.NewSummarizer(store)
	heuristics := abuse.NewHeuristics(cfg.Abuse)

	// Alerts: always log, webhook when configured.
	sinks := []alert.Sink{alert.LogSink{}}
	if cfg.Alerts.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookSink(cfg.Alerts.WebhookURL))
	}
	dispatcher := alert.NewAsyncDispatcher(cfg.Alerts.QueueSize, cfg.Alerts.MaxPerSecond, sinks...)

	memDedup := suspension.NewMemoryDedup(clk)
	var dedup suspension.DedupStore = memDedup
	if redis != nil {
		dedup = suspension.NewRedisDedup(redis, memDedup)
	}

	accountRepo := repository.NewAccountRepository(postgres)
	eventRepo := repository.NewAbuseEventRepository(postgres)
	userRepo := repository.NewUserRepository(postgres)

	machine := suspension.NewStateMachine(accountRepo, eventRepo, dispatcher, dedup, clk)
	engine := service.NewEngine(limiter, summarizer, heuristics, machine, accountRepo)

	adminService := service.NewAdminService(store, machine, accountRepo, eventRepo)
	authService := service.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)

	adminHandler := handler.NewAdminHandler(adminService, engine)
	authHandler := handler.NewAuthHandler(authService)
	checkHandler := handler.NewCheckHandler(engine)

	router := gin.New()

	s := &Server{
		router:     router,
		config:     cfg,
		redis:      redis,
		postgres:   postgres,
		store:      store,
		dispatcher: dispatcher,
		engine:     engine,
		sweepStop:  sweepStop,
	}

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	router.GET("/health", s.healthCheck)
	router.POST("/check", checkHandler.Check)
	router.POST("/auth/login", authHandler.Login)

	admin := router.Group("/admin")
	admin.Use(middleware.RequireAuth(authService))
	{
		admin.GET("/status", s.adminStatus)
		admin.GET("/accounts", adminHandler.ListAccounts)
		admin.GET("/accounts/:identifier", adminHandler.GetAccount)
		admin.POST("/accounts/:identifier/reset", adminHandler.ResetCounters)
		admin.POST("/accounts/:identifier/suspend", adminHandler.Suspend)
		admin.POST("/accounts/:identifier/unsuspend", adminHandler.Unsuspend)
		admin.GET("/events", adminHandler.ListEvents)
		admin.POST("/operators", authHandler.Register)
	}

	return s, nil
}

// Engine exposes the decision pipeline for in-process embedding.
func (s *Server) Engine() *service.Engine {
	return s.engine
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := s.redis != nil
	if s.redis != nil {
		if err := s.redis.Ping(c.Request.Context()); err != nil {
			redisHealthy = false
			log.Printf("Redis health check failed: %v", err)
		}
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	// The engine keeps answering on the fallback store without Redis, so
	// a Redis outage is degraded, not down.
	status := "healthy"
	statusCode := http.StatusOK
	if !redisHealthy {
		status = "degraded"
	}
	if !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "guardrail",
		"version":   "1.0.0",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) adminStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"engine":         "running",
		"fallback_calls": s.store.FallbackCalls(),
		"uptime":         time.Since(startTime).Seconds(),
		"timestamp":      time.Now().Unix(),
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting guardrail on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	s.sweepStop()
	s.dispatcher.Close()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

var startTime = time.Now()
