package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/tripplanner/internal/adapters/geodb"
	"github.com/samirrijal/tripplanner/internal/adapters/http"
	natsadapter "github.com/samirrijal/tripplanner/internal/adapters/nats"
	"github.com/samirrijal/tripplanner/internal/adapters/postgres"
	"github.com/samirrijal/tripplanner/internal/adapters/valkey"
	"github.com/samirrijal/tripplanner/internal/core/ports"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
	"github.com/samirrijal/tripplanner/internal/pkg/config"
	"github.com/samirrijal/tripplanner/internal/pkg/logging"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
	"github.com/samirrijal/tripplanner/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("tripplanner-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer func() {
				flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer flushCancel()
				_ = shutdown(flushCtx)
			}()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	go reportPoolStats(ctx, db)

	// Cache and events are optional; the interfaces stay nil when unavailable.
	var cache ports.CacheService
	valkeyCache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer valkeyCache.Close()
		cache = valkeyCache
	}

	var events ports.EventPublisher
	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer publisher.Close()
		events = publisher
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// Repos and clients
	tripRepo := postgres.NewTripRepo(db)
	directory := geodb.New(cfg.GeoDB.BaseURL, time.Duration(cfg.GeoDB.TimeoutMs)*time.Millisecond, cfg.GeoDB.Limit)

	deps := &http.Dependencies{
		Trips:  usecases.NewTripService(tripRepo, cache, events),
		Cities: usecases.NewCityService(directory, cache),
		NATS:   natsConn,
		DB:     db,
		Cache:  valkeyCache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Trip Planner API",
		ErrorHandler: http.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "ETag, Location, X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// reportPoolStats refreshes the DB pool gauges until ctx is done.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s := db.Stat(); s != nil {
				metrics.UpdateDBPoolMetrics(s)
			}
		}
	}
}
