package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/holdings"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/hrid"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/instances"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/items"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the driver and connection string.
type Config struct {
	Driver string
	DSN    string
	Logger *zap.Logger
}

// Open connects with the configured driver and brings the schema up to date.
func Open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "":
		return OpenSQLite(ctx, cfg.DSN, cfg.Logger)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN, cfg.Logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := prepare(ctx, db, logger); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("database initialized", zap.String("driver", DriverSQLite), zap.String("path", path))
	}
	return db, nil
}

// OpenPostgres connects to PostgreSQL through pgx and performs schema migrations.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	if err := prepare(ctx, db, logger); err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("database initialized", zap.String("driver", DriverPostgres))
	}
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

func prepare(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&instances.Instance{},
		&holdings.Record{},
		&items.Item{},
		&hrid.Setting{},
		&migrationRecord{},
	); err != nil {
		return err
	}
	return applyMigrations(ctx, db, logger)
}
