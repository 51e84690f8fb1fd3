package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"github.com/samirrijal/tripplanner/internal/adapters/postgres"
	"github.com/samirrijal/tripplanner/internal/pkg/config"
	"github.com/samirrijal/tripplanner/internal/pkg/logging"
)

// migrate creates the trips and waypoints tables if they do not exist.
// It is safe to run repeatedly.
func main() {
	cfg, err := config.Load("tripplanner-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 1)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	slog.Info("schema ready", "database", cfg.Database.DBName)
}
