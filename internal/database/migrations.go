package database

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/holdings"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/items"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillHoldingsEffectiveLocation = "2026-09-14_backfill_holdings_effective_location"
	migrationBackfillItemEffectiveValues       = "2026-09-14_backfill_item_effective_values"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(context.Context, *gorm.DB, *zap.Logger) error
}

func applyMigrations(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillHoldingsEffectiveLocation, apply: backfillHoldingsEffectiveLocation},
		{name: migrationBackfillItemEffectiveValues, apply: backfillItemEffectiveValues},
	}

	session := db.WithContext(ctx)
	for _, migration := range migrations {
		var record migrationRecord
		err := session.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(ctx, db, logger); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := session.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func backfillHoldingsEffectiveLocation(ctx context.Context, db *gorm.DB, _ *zap.Logger) error {
	return db.WithContext(ctx).
		Model(&holdings.Record{}).
		Where("effective_location_id = ''").
		Update("effective_location_id", gorm.Expr(
			"CASE WHEN temporary_location_id <> '' THEN temporary_location_id ELSE permanent_location_id END",
		)).Error
}

func backfillItemEffectiveValues(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	updated, err := items.RecomputeAll(ctx, db)
	if err != nil {
		return err
	}
	if logger != nil && updated > 0 {
		logger.Info("item effective values backfilled", zap.Int("updated_items", updated))
	}
	return nil
}
