// Package main provides a CLI tool for running database migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/verse-scribe/internal/config"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		dbType = flag.String("db", "postgres", "Database type: postgres, clickhouse")
		path   = flag.String("path", "", "Migrations directory (defaults to migrations/<db>)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.WithFields(map[string]interface{}{
		"db":     *dbType,
		"action": *action,
	})

	switch *dbType {
	case "postgres":
		dir := *path
		if dir == "" {
			dir = storage.DefaultMigrationsPath
		}
		err = runPostgres(logger, &cfg.Database.Postgres, dir, *action)
	case "clickhouse":
		dir := *path
		if dir == "" {
			dir = storage.DefaultClickHouseMigrationsPath
		}
		err = runClickHouse(logger, &cfg.Database.ClickHouse, dir, *action)
	default:
		err = fmt.Errorf("unknown database type: %s", *dbType)
	}
	if err != nil {
		logger.WithError(err).Fatal("Migration failed")
	}
}

func postgresURL(cfg *config.PostgresConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

func runPostgres(logger *logging.Logger, cfg *config.PostgresConfig, dir, action string) error {
	databaseURL := postgresURL(cfg)

	switch action {
	case "up":
		if err := storage.RunMigrations(databaseURL, dir); err != nil {
			return err
		}
		logger.Info("Postgres schema is up to date")
	case "down":
		if err := storage.RollbackMigrations(databaseURL, dir); err != nil {
			return err
		}
		logger.Info("Rolled back one Postgres migration")
	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, dir)
		if err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"version": version,
			"dirty":   dirty,
		}).Info("Current Postgres migration version")
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
	return nil
}

// runClickHouse applies the activity log schema. Its statements are
// idempotent, so only "up" exists.
func runClickHouse(logger *logging.Logger, cfg *config.ClickHouseConfig, dir, action string) error {
	if action != "up" {
		return fmt.Errorf("ClickHouse migrations only support 'up' action")
	}
	if !cfg.Enabled {
		logger.Warn("CLICKHOUSE_ENABLED is false; the server will not use this schema")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("migrations directory not found: %s", dir)
	}

	db, err := storage.NewClickHouseDB(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close ClickHouse connection")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := storage.RunClickHouseMigrations(ctx, db, dir); err != nil {
		return err
	}
	logger.Info("ClickHouse schema is up to date")
	return nil
}
