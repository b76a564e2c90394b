// Package inventoryview assembles an instance together with its holdings
// records and their items.
package inventoryview

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/holdings"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/instances"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/items"
	"go.uber.org/zap"
)

var (
	// ErrNotFound indicates that the instance does not exist.
	ErrNotFound = errors.New("inventoryview: instance not found")

	errMissingInstances = errors.New("inventoryview: instance reader is required")
	errMissingHoldings  = errors.New("inventoryview: holdings lister is required")
	errMissingItems     = errors.New("inventoryview: item lister is required")
)

// InstanceReader loads a single instance.
type InstanceReader interface {
	GetInstance(ctx context.Context, id string) (instances.Instance, error)
}

// HoldingsLister lists the holdings records of an instance.
type HoldingsLister interface {
	ListByInstance(ctx context.Context, instanceID string) ([]holdings.Record, error)
}

// ItemLister lists the items of a holdings record.
type ItemLister interface {
	ListByHoldings(ctx context.Context, holdingsID string) ([]items.Item, error)
}

type ServiceConfig struct {
	Instances InstanceReader
	Holdings  HoldingsLister
	Items     ItemLister
	Logger    *zap.Logger
}

// View is an instance with every holdings record and item attached to it.
// Items are flattened across holdings records, in holdings order.
type View struct {
	InstanceID      string
	Instance        instances.Instance
	HoldingsRecords []holdings.Record
	Items           []items.Item
}

type Service struct {
	instances InstanceReader
	holdings  HoldingsLister
	items     ItemLister
	logger    *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Instances == nil {
		return nil, errMissingInstances
	}
	if cfg.Holdings == nil {
		return nil, errMissingHoldings
	}
	if cfg.Items == nil {
		return nil, errMissingItems
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		instances: cfg.Instances,
		holdings:  cfg.Holdings,
		items:     cfg.Items,
		logger:    logger,
	}, nil
}

// GetInstanceView returns the view rooted at instanceID.
func (s *Service) GetInstanceView(ctx context.Context, instanceID string) (View, error) {
	instance, err := s.instances.GetInstance(ctx, instanceID)
	if errors.Is(err, instances.ErrNotFound) {
		return View{}, fmt.Errorf("%w: %s", ErrNotFound, instanceID)
	}
	if err != nil {
		return View{}, fmt.Errorf("load instance: %w", err)
	}

	records, err := s.holdings.ListByInstance(ctx, instanceID)
	if err != nil {
		s.logger.Error("inventory view holdings lookup failed", zap.String("instance_id", instanceID), zap.Error(err))
		return View{}, fmt.Errorf("load holdings: %w", err)
	}

	view := View{
		InstanceID:      instance.ID,
		Instance:        instance,
		HoldingsRecords: records,
		Items:           []items.Item{},
	}
	for _, record := range records {
		attached, err := s.items.ListByHoldings(ctx, record.ID)
		if err != nil {
			s.logger.Error("inventory view items lookup failed",
				zap.String("instance_id", instanceID),
				zap.String("holdings_id", record.ID),
				zap.Error(err))
			return View{}, fmt.Errorf("load items for holdings %s: %w", record.ID, err)
		}
		view.Items = append(view.Items, attached...)
	}
	if view.HoldingsRecords == nil {
		view.HoldingsRecords = []holdings.Record{}
	}
	return view, nil
}
