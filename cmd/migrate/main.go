package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/infrastructure/config"
	"github.com/davidleathers/gstbooks/internal/infrastructure/database"
	"github.com/davidleathers/gstbooks/internal/infrastructure/telemetry"
)

// schema is the part of database.Migrator the command drives.
type schema interface {
	Up(steps int) error
	Down(steps int) error
	Version() (version uint, dirty bool, err error)
}

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, status")
		steps  = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
		dbURL  = flag.String("database-url", "", "Overrides database.url from configuration")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	logger, err := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to set up logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	url := cfg.Database.URL
	if *dbURL != "" {
		url = *dbURL
	}
	if url == "" {
		logger.Error("database url is required")
		os.Exit(1)
	}

	migrator, err := database.NewMigrator(url, logger)
	if err != nil {
		logger.Error("failed to initialise migrations", zap.Error(err))
		os.Exit(1)
	}
	defer migrator.Close()

	if err := runAction(migrator, *action, *steps, logger); err != nil {
		logger.Error("migration failed", zap.String("action", *action), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func runAction(m schema, action string, steps int, logger *zap.Logger) error {
	if steps < 0 {
		return fmt.Errorf("steps must not be negative")
	}
	switch action {
	case "up":
		return m.Up(steps)
	case "down":
		return m.Down(steps)
	case "status":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		logger.Info("schema status", zap.Uint("version", version), zap.Bool("dirty", dirty))
		if dirty {
			return fmt.Errorf("schema version %d is dirty, fix it manually before migrating", version)
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}
