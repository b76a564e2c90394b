package holdings

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists holdings records through gorm.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a Repository over db.
func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errMissingDatabaseConn
	}
	return &Repository{db: db}, nil
}

// GetByID returns the record stored under id, or nil when there is none.
func (r *Repository) GetByID(ctx context.Context, id string) (*Record, error) {
	var record Record
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get holdings record: %w", err)
	}
	return &record, nil
}

// GetByIDForUpdate loads the record inside tx and locks its row until tx ends.
// It returns nil when there is no such record.
func (r *Repository) GetByIDForUpdate(ctx context.Context, tx *storage.Tx, id string) (*Record, error) {
	session, err := tx.DB()
	if err != nil {
		return nil, err
	}
	var record Record
	err = session.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock holdings record: %w", err)
	}
	return &record, nil
}

// ListByInstance returns the records attached to an instance ordered by hrid.
func (r *Repository) ListByInstance(ctx context.Context, instanceID string) ([]Record, error) {
	var records []Record
	if err := r.db.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		Order("hrid ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list holdings records: %w", err)
	}
	return records, nil
}

// Save inserts a new record as a single statement.
func (r *Repository) Save(ctx context.Context, record Record) (Record, error) {
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Record{}, r.classifyDuplicate(ctx, record, err)
		}
		return Record{}, fmt.Errorf("insert holdings record: %w", err)
	}
	return record, nil
}

// classifyDuplicate tells an hrid collision apart from an id collision.
func (r *Repository) classifyDuplicate(ctx context.Context, record Record, cause error) error {
	var holder Record
	err := r.db.WithContext(ctx).
		Select("id").
		Where("hrid = ? AND id <> ?", record.HRID, record.ID).
		Take(&holder).Error
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrDuplicateHRID, record.HRID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s: %v", ErrAlreadyExists, record.ID, cause)
	default:
		return fmt.Errorf("insert holdings record: %w", cause)
	}
}

// Update overwrites every mutable column of the record within tx.
func (r *Repository) Update(ctx context.Context, tx *storage.Tx, id string, record Record) error {
	session, err := tx.DB()
	if err != nil {
		return err
	}
	record.ID = id
	result := session.WithContext(ctx).
		Model(&Record{}).
		Where("id = ?", id).
		Select("*").
		Omit("id", "created_at").
		Updates(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrDuplicateHRID, record.HRID)
		}
		return fmt.Errorf("update holdings record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
