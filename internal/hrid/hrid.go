// Package hrid issues human-readable identifiers for inventory records.
package hrid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Kind names an HRID sequence.
type Kind string

const (
	KindInstances Kind = "instances"
	KindHoldings  Kind = "holdings"
	KindItems     Kind = "items"
)

const (
	numberWidth        = 8
	defaultStartNumber = 1
)

var (
	errMissingDatabase = errors.New("hrid: database handle is required")
	// ErrUnknownKind indicates a sequence that has no configured prefix.
	ErrUnknownKind = errors.New("hrid: unknown kind")
)

// Setting is the persisted state of one HRID sequence.
type Setting struct {
	Kind       string `gorm:"column:kind;primaryKey;size:32;not null"`
	Prefix     string `gorm:"column:prefix;size:32;not null;default:''"`
	NextNumber int64  `gorm:"column:next_number;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Setting) TableName() string {
	return "hrid_settings"
}

// Config describes the seed values used when a sequence row does not exist yet.
type Config struct {
	Database        *gorm.DB
	InstancesPrefix string
	HoldingsPrefix  string
	ItemsPrefix     string
	StartNumber     int64
	Logger          *zap.Logger
}

// Manager hands out monotonically increasing HRIDs. It is safe for concurrent use.
type Manager struct {
	db       *gorm.DB
	prefixes map[Kind]string
	start    int64
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewManager constructs a Manager backed by the hrid_settings table.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	start := cfg.StartNumber
	if start < 1 {
		start = defaultStartNumber
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		db: cfg.Database,
		prefixes: map[Kind]string{
			KindInstances: strings.TrimSpace(cfg.InstancesPrefix),
			KindHoldings:  strings.TrimSpace(cfg.HoldingsPrefix),
			KindItems:     strings.TrimSpace(cfg.ItemsPrefix),
		},
		start:  start,
		logger: logger,
	}, nil
}

// NextInstanceHRID returns the next instance HRID.
func (m *Manager) NextInstanceHRID(ctx context.Context) (string, error) {
	return m.Next(ctx, KindInstances)
}

// NextHoldingsHRID returns the next holdings HRID.
func (m *Manager) NextHoldingsHRID(ctx context.Context) (string, error) {
	return m.Next(ctx, KindHoldings)
}

// NextItemHRID returns the next item HRID.
func (m *Manager) NextItemHRID(ctx context.Context) (string, error) {
	return m.Next(ctx, KindItems)
}

// Next reserves and formats the next number of the given sequence.
func (m *Manager) Next(ctx context.Context, kind Kind) (string, error) {
	seedPrefix, ok := m.prefixes[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var issued string
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var setting Setting
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("kind = ?", string(kind)).
			Take(&setting).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			setting = Setting{Kind: string(kind), Prefix: seedPrefix, NextNumber: m.start}
			if err := tx.Create(&setting).Error; err != nil {
				return fmt.Errorf("seed %s sequence: %w", kind, err)
			}
		} else if err != nil {
			return fmt.Errorf("load %s sequence: %w", kind, err)
		}

		issued = Format(setting.Prefix, setting.NextNumber)
		return tx.Model(&Setting{}).
			Where("kind = ?", string(kind)).
			Update("next_number", setting.NextNumber+1).Error
	})
	if err != nil {
		m.logger.Error("hrid allocation failed", zap.String("kind", string(kind)), zap.Error(err))
		return "", err
	}
	return issued, nil
}

// Format renders an HRID as prefix followed by a zero-padded number.
func Format(prefix string, number int64) string {
	return fmt.Sprintf("%s%0*d", prefix, numberWidth, number)
}
