package items

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/holdings"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/ids"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const recomputeBatchSize = 200

var (
	// ErrNotFound indicates that no item exists for the identifier.
	ErrNotFound = errors.New("items: item not found")
	// ErrHoldingsNotFound indicates that the referenced holdings record does not exist.
	ErrHoldingsNotFound = errors.New("items: holdings record not found")
	// ErrMissingHoldingsID indicates that an item carries no holdings reference.
	ErrMissingHoldingsID = errors.New("items: holdings record id is required")
	// ErrAlreadyExists indicates that an item with the identifier is already stored.
	ErrAlreadyExists = errors.New("items: item already exists")
	// ErrDuplicateHRID indicates that another item already carries the hrid.
	ErrDuplicateHRID = errors.New("items: hrid already in use")

	errMissingDatabase   = errors.New("items: database handle is required")
	errMissingHoldings   = errors.New("items: holdings lookup is required")
	errMissingHRIDSource = errors.New("items: hrid source is required")
	errMissingIDProvider = errors.New("items: id provider is required")
	errMissingTransactor = errors.New("items: transaction manager is required")
)

// HoldingsLookup loads a holdings record inside tx and holds its row lock
// until tx ends.
type HoldingsLookup interface {
	GetByIDForUpdate(ctx context.Context, tx *storage.Tx, id string) (*holdings.Record, error)
}

// Transactor begins and completes transactions.
type Transactor interface {
	Begin(ctx context.Context) (*storage.Tx, error)
	Commit(tx *storage.Tx) error
	Rollback(tx *storage.Tx) error
}

// HRIDSource issues the next item hrid.
type HRIDSource interface {
	NextItemHRID(ctx context.Context) (string, error)
}

// ServiceConfig describes the dependencies of the item service.
type ServiceConfig struct {
	Database     *gorm.DB
	Holdings     HoldingsLookup
	HRIDs        HRIDSource
	Transactions Transactor
	IDProvider   ids.Provider
	Logger       *zap.Logger
}

// Service stores items and keeps their effective fields in step with holdings.
type Service struct {
	db           *gorm.DB
	holdings     HoldingsLookup
	hrids        HRIDSource
	transactions Transactor
	idProvider   ids.Provider
	logger       *zap.Logger
}

// NewService constructs an item service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Holdings == nil {
		return nil, errMissingHoldings
	}
	if cfg.HRIDs == nil {
		return nil, errMissingHRIDSource
	}
	if cfg.Transactions == nil {
		return nil, errMissingTransactor
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:           cfg.Database,
		holdings:     cfg.Holdings,
		hrids:        cfg.HRIDs,
		transactions: cfg.Transactions,
		idProvider:   cfg.IDProvider,
		logger:       logger,
	}, nil
}

// UpdateItemsOnHoldingChanged recomputes the effective fields of every item
// attached to record, writing through tx. Items whose values are unchanged
// are not touched.
func (s *Service) UpdateItemsOnHoldingChanged(ctx context.Context, tx *storage.Tx, record holdings.Record) error {
	session, err := tx.DB()
	if err != nil {
		return err
	}
	updated, err := recomputeForHoldings(ctx, session, record)
	if err != nil {
		return err
	}
	s.logger.Debug("items recomputed for holdings change",
		zap.String("holdings_id", record.ID),
		zap.Int("updated_items", updated))
	return nil
}

// CreateItem inserts an item under an existing holdings record. The holdings
// row stays locked from the lookup until the insert commits, so a concurrent
// holdings update either precedes the item or recomputes it.
func (s *Service) CreateItem(ctx context.Context, item Item) (Item, error) {
	holdingsID := strings.TrimSpace(item.HoldingsRecordID)
	if holdingsID == "" {
		return Item{}, ErrMissingHoldingsID
	}
	item.HoldingsRecordID = holdingsID

	if strings.TrimSpace(item.ID) == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return Item{}, fmt.Errorf("generate item id: %w", err)
		}
		item.ID = id
	}
	if strings.TrimSpace(item.HRID) == "" {
		hrid, err := s.hrids.NextItemHRID(ctx)
		if err != nil {
			return Item{}, fmt.Errorf("generate item hrid: %w", err)
		}
		item.HRID = hrid
	}

	tx, err := s.transactions.Begin(ctx)
	if err != nil {
		return Item{}, fmt.Errorf("begin item insert: %w", err)
	}
	if err := s.insertLocked(ctx, tx, &item); err != nil {
		if rollbackErr := s.transactions.Rollback(tx); rollbackErr != nil {
			s.logger.Warn("unable to revert transaction", zap.String("item_id", item.ID), zap.Error(rollbackErr))
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Item{}, s.classifyDuplicate(ctx, item, err)
		}
		return Item{}, err
	}
	if err := s.transactions.Commit(tx); err != nil {
		s.logger.Error("item insert commit failed", zap.String("item_id", item.ID), zap.Error(err))
		return Item{}, fmt.Errorf("commit item insert: %w", err)
	}
	return item, nil
}

func (s *Service) insertLocked(ctx context.Context, tx *storage.Tx, item *Item) error {
	record, err := s.holdings.GetByIDForUpdate(ctx, tx, item.HoldingsRecordID)
	if err != nil {
		return fmt.Errorf("lookup holdings for item: %w", err)
	}
	if record == nil {
		return fmt.Errorf("%w: %s", ErrHoldingsNotFound, item.HoldingsRecordID)
	}
	session, err := tx.DB()
	if err != nil {
		return err
	}
	applyEffectiveValues(item, *record)
	if err := session.WithContext(ctx).Create(item).Error; err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Error("item insert failed", zap.String("item_id", item.ID), zap.Error(err))
		}
		return err
	}
	return nil
}

// classifyDuplicate tells an hrid collision apart from an id collision.
// It runs after the failed transaction has been rolled back.
func (s *Service) classifyDuplicate(ctx context.Context, item Item, cause error) error {
	var holder Item
	err := s.db.WithContext(ctx).
		Select("id").
		Where("hrid = ? AND id <> ?", item.HRID, item.ID).
		Take(&holder).Error
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrDuplicateHRID, item.HRID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrAlreadyExists, item.ID)
	default:
		return fmt.Errorf("insert item: %w", cause)
	}
}

// GetItem returns the item stored under id.
func (s *Service) GetItem(ctx context.Context, id string) (Item, error) {
	var item Item
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Item{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListByHoldings returns the items attached to a holdings record ordered by id.
func (s *Service) ListByHoldings(ctx context.Context, holdingsID string) ([]Item, error) {
	var list []Item
	if err := s.db.WithContext(ctx).
		Where("holdings_record_id = ?", holdingsID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return list, nil
}

// RecomputeAll brings every item's effective fields in line with its holdings
// record. It returns the number of items that changed.
func RecomputeAll(ctx context.Context, db *gorm.DB) (int, error) {
	total := 0
	var batch []holdings.Record
	result := db.WithContext(ctx).
		Order("id ASC").
		FindInBatches(&batch, recomputeBatchSize, func(_ *gorm.DB, _ int) error {
			for _, record := range batch {
				updated, err := recomputeForHoldings(ctx, db, record)
				if err != nil {
					return err
				}
				total += updated
			}
			return nil
		})
	if result.Error != nil {
		return total, result.Error
	}
	return total, nil
}

func recomputeForHoldings(ctx context.Context, session *gorm.DB, record holdings.Record) (int, error) {
	var attached []Item
	if err := session.WithContext(ctx).
		Where("holdings_record_id = ?", record.ID).
		Order("id ASC").
		Find(&attached).Error; err != nil {
		return 0, fmt.Errorf("load items for holdings %s: %w", record.ID, err)
	}

	updated := 0
	for i := range attached {
		item := attached[i]
		if !applyEffectiveValues(&item, record) {
			continue
		}
		if err := session.WithContext(ctx).
			Model(&Item{}).
			Where("id = ?", item.ID).
			Updates(effectiveValues(item).columns()).Error; err != nil {
			return updated, fmt.Errorf("update item %s: %w", item.ID, err)
		}
		updated++
	}
	return updated, nil
}
