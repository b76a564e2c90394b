package instances

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/ids"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// DefaultListLimit is the page size used when a caller gives none.
	DefaultListLimit = 10
	// MaxListLimit bounds a single page.
	MaxListLimit = 1000
)

var (
	// ErrNotFound indicates that no instance exists for the identifier.
	ErrNotFound = errors.New("instances: instance not found")
	// ErrAlreadyExists indicates that an instance with the identifier is already stored.
	ErrAlreadyExists = errors.New("instances: instance already exists")
	// ErrDuplicateHRID indicates that another instance already carries the hrid.
	ErrDuplicateHRID = errors.New("instances: hrid already in use")

	errMissingDatabase   = errors.New("instances: database handle is required")
	errMissingHRIDSource = errors.New("instances: hrid source is required")
	errMissingIDProvider = errors.New("instances: id provider is required")
)

// HRIDSource issues the next instance hrid.
type HRIDSource interface {
	NextInstanceHRID(ctx context.Context) (string, error)
}

type ServiceConfig struct {
	Database   *gorm.DB
	HRIDs      HRIDSource
	IDProvider ids.Provider
	Logger     *zap.Logger
}

type Service struct {
	db         *gorm.DB
	hrids      HRIDSource
	idProvider ids.Provider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.HRIDs == nil {
		return nil, errMissingHRIDSource
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		hrids:      cfg.HRIDs,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateInstance stores instance, assigning an id and hrid when they are blank.
func (s *Service) CreateInstance(ctx context.Context, instance Instance) (Instance, error) {
	if strings.TrimSpace(instance.ID) == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			return Instance{}, fmt.Errorf("generate instance id: %w", err)
		}
		instance.ID = id
	} else if _, err := s.GetInstance(ctx, instance.ID); err == nil {
		return Instance{}, fmt.Errorf("%w: %s", ErrAlreadyExists, instance.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return Instance{}, err
	}

	if strings.TrimSpace(instance.HRID) == "" {
		hrid, err := s.hrids.NextInstanceHRID(ctx)
		if err != nil {
			return Instance{}, fmt.Errorf("generate instance hrid: %w", err)
		}
		instance.HRID = hrid
	}

	if err := s.db.WithContext(ctx).Create(&instance).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return Instance{}, s.classifyDuplicate(ctx, instance, err)
		}
		s.logger.Error("instance insert failed", zap.String("instance_id", instance.ID), zap.Error(err))
		return Instance{}, fmt.Errorf("insert instance: %w", err)
	}
	return instance, nil
}

// classifyDuplicate tells an hrid collision apart from an id collision that
// raced past the existence check.
func (s *Service) classifyDuplicate(ctx context.Context, instance Instance, cause error) error {
	var holder Instance
	err := s.db.WithContext(ctx).
		Select("id").
		Where("hrid = ? AND id <> ?", instance.HRID, instance.ID).
		Take(&holder).Error
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", ErrDuplicateHRID, instance.HRID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrAlreadyExists, instance.ID)
	default:
		return fmt.Errorf("insert instance: %w", cause)
	}
}

// GetInstance returns the instance stored under id.
func (s *Service) GetInstance(ctx context.Context, id string) (Instance, error) {
	var instance Instance
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Instance{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Instance{}, fmt.Errorf("get instance: %w", err)
	}
	return instance, nil
}

// Collection is one page of instances together with the total row count.
type Collection struct {
	Instances    []Instance
	TotalRecords int64
}

// ListInstances returns up to limit instances ordered by hrid, skipping offset.
// A non-positive limit falls back to DefaultListLimit and limits above
// MaxListLimit are clamped.
func (s *Service) ListInstances(ctx context.Context, limit, offset int) (Collection, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&Instance{}).Count(&total).Error; err != nil {
		return Collection{}, fmt.Errorf("count instances: %w", err)
	}
	page := make([]Instance, 0, limit)
	if err := s.db.WithContext(ctx).
		Order("hrid ASC").
		Limit(limit).
		Offset(offset).
		Find(&page).Error; err != nil {
		return Collection{}, fmt.Errorf("list instances: %w", err)
	}
	return Collection{Instances: page, TotalRecords: total}, nil
}
