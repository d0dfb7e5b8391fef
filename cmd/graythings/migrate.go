package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/logging"
)

// migrateDown rolls back the most recently applied history migration and
// exits without starting the service.
func migrateDown(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(cfg.Logging, version)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	if len(applied) == 0 {
		log.Info("no migrations to roll back", "path", db.Path())
		return nil
	}

	if err := db.MigrateDown(ctx); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	log.Info("migration rolled back",
		"path", db.Path(),
		"version", applied[len(applied)-1].Version,
	)
	return nil
}
