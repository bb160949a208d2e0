package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nextmessage/backend/config"
	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/migrate/main.go [up|status|indexes]")
		os.Exit(1)
	}

	command := os.Args[1]

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.SetupWith(cfg.Log.Level, cfg.Log.Format)

	switch command {
	case "up":
		db := connectPostgres(cfg)
		defer db.Close()

		slog.Info("running migrations")
		if err := database.RunMigrations(db.DB); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations completed successfully")

	case "status":
		db := connectPostgres(cfg)
		defer db.Close()
		showMigrationStatus(db)

	case "indexes":
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		m, err := database.NewMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			slog.Error("failed to connect to MongoDB", "error", err)
			os.Exit(1)
		}
		defer m.Close(context.Background())

		if err := m.EnsureIndexes(ctx); err != nil {
			slog.Error("failed to create indexes", "error", err)
			os.Exit(1)
		}
		slog.Info("indexes ensured", "database", cfg.Mongo.Database, "collections", len(database.Indexes))

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: up, status, indexes")
		os.Exit(1)
	}
}

func connectPostgres(cfg *config.Config) *database.DB {
	db, err := database.NewPostgresDB(cfg.GetDSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	return db
}

func showMigrationStatus(db *database.DB) {
	applied, err := database.MigrationStatus(db.DB)
	if err != nil {
		slog.Warn("no migrations found or table doesn't exist", "error", err)
		return
	}

	fmt.Println("\nApplied Migrations:")
	fmt.Println("-------------------")
	for _, m := range applied {
		fmt.Printf("Version %d - Applied at: %s\n", m.Version, m.AppliedAt.Format(time.RFC3339))
	}
}
