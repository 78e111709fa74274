package repository

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/AaronBergman/flyer-tracker/internal/config"
	"github.com/AaronBergman/flyer-tracker/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrNoDatabaseURL means the process runs without a store; callers keep the
// HTTP surface up and serve diagnostics instead of crashing.
var ErrNoDatabaseURL = errors.New("DATABASE_URL is not set")

func InitDB(cfg config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, ErrNoDatabaseURL
	}

	var dialer gorm.Dialector
	if strings.HasPrefix(cfg.DatabaseURL, "postgres") {
		dialer = postgres.Open(cfg.DatabaseURL)
	} else if strings.HasPrefix(cfg.DatabaseURL, "sqlite") {
		dialer = sqlite.Open(strings.TrimPrefix(cfg.DatabaseURL, "sqlite://"))
	} else {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.DatabaseURL)
	}

	// TranslateError turns driver-specific unique violations into
	// gorm.ErrDuplicatedKey, so a slug race still surfaces as a conflict.
	db, err := gorm.Open(dialer, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// Migrate brings the schema up to date. Postgres goes through versioned SQL
// migrations; sqlite (dev and tests) uses the model definitions directly.
// It runs once at startup, never per request.
func Migrate(db *gorm.DB, databaseURL string, sourcePath string) error {
	if strings.HasPrefix(databaseURL, "postgres") {
		return runMigrations(databaseURL, sourcePath)
	}
	if err := db.AutoMigrate(&models.Link{}, &models.Scan{}); err != nil {
		return fmt.Errorf("failed to auto-migrate schema: %w", err)
	}
	return nil
}

func runMigrations(databaseURL string, sourcePath string) error {
	if sourcePath == "" {
		sourcePath = "file://migration"
	}
	m, err := migrate.New(
		sourcePath,
		databaseURL,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run up migrations: %w", err)
	}

	log.Println("Database migrations ran successfully")
	return nil
}
