package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"go.uber.org/zap"

	"github.com/remindgo/backend/internal/config"
)

// RunMigrations brings the reminders schema up to date. It is a no-op when
// migrations are disabled in configuration; an already-current schema is not
// an error.
func RunMigrations(cfg *config.Config, logger *zap.Logger) error {
	if cfg == nil || !cfg.Migrations.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("migration connection ping: %w", err)
	}

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	source := "file://" + filepath.ToSlash(cfg.Migrations.Path)
	m, err := migrate.NewWithDatabaseInstance(source, cfg.Database.Name, driver)
	if err != nil {
		return fmt.Errorf("migration source %s: %w", source, err)
	}
	defer m.Close()

	switch err := m.Up(); {
	case err == nil:
		logger.Info("reminders schema migrated")
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("reminders schema already current")
	default:
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
