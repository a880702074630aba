package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/jmcale/go-incident-dispatch/internal/api"
	"github.com/jmcale/go-incident-dispatch/internal/broadcast"
	"github.com/jmcale/go-incident-dispatch/internal/config"
	"github.com/jmcale/go-incident-dispatch/internal/costmodel"
	"github.com/jmcale/go-incident-dispatch/internal/engine"
	"github.com/jmcale/go-incident-dispatch/internal/ledger"
	"github.com/jmcale/go-incident-dispatch/internal/logging"
	"github.com/jmcale/go-incident-dispatch/internal/planner"
	"github.com/jmcale/go-incident-dispatch/internal/queue"
	"github.com/jmcale/go-incident-dispatch/internal/registry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, "dispatchd")

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	store, err := ledger.NewSQLiteStore(cfg.Ledger.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize ledger database: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Async ledger writer keeps persistence off the allocation path. It
	// runs on its own context so cancelling the engine cannot drop entries
	// still buffered during shutdown.
	writerCtx, writerCancel := context.WithCancel(context.Background())
	defer writerCancel()
	writer := ledger.NewWriter(store, ledger.WriterConfig{
		Workers:     cfg.Ledger.Workers,
		BufferSize:  cfg.Ledger.BufferSize,
		MaxAttempts: cfg.Ledger.MaxAttempts,
		RetryDelay:  cfg.Ledger.RetryDelay,
	})
	writer.Start(writerCtx)

	// Broadcaster for the live assignment stream
	broadcaster := broadcast.New()

	costParams := costmodel.DefaultParams()
	costParams.PerKmRate = cfg.Cost.PerKmRate
	costParams.OvertimeThresholdHours = cfg.Cost.OvertimeThresholdHours
	costParams.OvertimeMultiplier = cfg.Cost.OvertimeMultiplier
	costs := costmodel.New(costParams)

	reg := registry.New()
	q := queue.New()

	eng := engine.New(reg, q, costs, writer, broadcaster, engine.Config{
		TickInterval:          cfg.Engine.TickInterval,
		RetryBudget:           cfg.Engine.RetryBudget,
		MaxResponseDistanceKm: cfg.Engine.MaxResponseDistanceKm,
	})
	engineDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engineDone)
	}()

	planParams := planner.DefaultParams()
	planParams.Trials = cfg.Planner.Trials
	planParams.RefineIters = cfg.Planner.RefineIters

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

	handler := api.NewHandler(reg, q, eng, store, broadcaster, costs, planParams)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	<-engineDone        // No new ledger entries after the engine exits
	broadcaster.Close() // Close all streams gracefully
	writer.Stop()       // Drain pending ledger entries on the live writer context

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
