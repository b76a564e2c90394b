package holdings

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/inventory-storage/internal/ids"
	"github.com/MarcoPoloResearchLab/inventory-storage/internal/storage"
	"go.uber.org/zap"
)

const (
	opServiceNew      = "holdings.service.new"
	opUpdateHolding   = "holdings.update_holding"
	opCreateHolding   = "holdings.create_holding"
	opGetHolding      = "holdings.get_holding"
	fieldHoldingsID   = "holdings_id"
	fieldHRID         = "hrid"
	fieldIncomingHRID = "incoming_hrid"

	reasonMissingID         = "missing_id"
	reasonLookupFailed      = "lookup_failed"
	reasonNotFound          = "not_found"
	reasonAlreadyExists     = "already_exists"
	reasonHRIDFailed        = "hrid_generation_failed"
	reasonIDFailed          = "id_generation_failed"
	reasonSaveFailed        = "save_failed"
	reasonDuplicateHRID     = "duplicate_hrid"
	reasonHRIDChanged       = "hrid_changed"
	reasonTxBeginFailed     = "transaction_begin_failed"
	reasonHoldingsUpdate    = "holdings_update_failed"
	reasonItemsPropagation  = "items_propagation_failed"
	reasonTxCommitFailed    = "transaction_commit_failed"
	reasonMissingStore      = "missing_store"
	reasonMissingHRIDSource = "missing_hrid_source"
	reasonMissingPropagator = "missing_item_propagator"
	reasonMissingTransactor = "missing_transaction_manager"
	reasonMissingIDProvider = "missing_id_provider"

	outcomeSuccess    = "success"
	outcomeBadRequest = "bad_request"
	outcomeFailure    = "failure"
	pathCreate        = "create"
	pathUpdate        = "update"
	pathLookup        = "lookup"

	logRevertingTransaction  = "reverting transaction"
	logUnableToRevert        = "unable to revert transaction"
	logTransactionClosed     = "transaction already closed"
	logHoldingsServiceFailed = "holdings service error"
)

var noOpLogger = zap.NewNop()

// Store performs keyed lookup, insert and update of holdings rows.
type Store interface {
	GetByID(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, record Record) (Record, error)
	Update(ctx context.Context, tx *storage.Tx, id string, record Record) error
}

// HRIDSource issues the next holdings hrid.
type HRIDSource interface {
	NextHoldingsHRID(ctx context.Context) (string, error)
}

// ItemPropagator recomputes dependent item records inside the caller's transaction.
type ItemPropagator interface {
	UpdateItemsOnHoldingChanged(ctx context.Context, tx *storage.Tx, holdings Record) error
}

// Transactor begins and completes transactions.
type Transactor interface {
	Begin(ctx context.Context) (*storage.Tx, error)
	Commit(tx *storage.Tx) error
	Rollback(tx *storage.Tx) error
}

// Metrics receives update outcomes and rollback failures.
type Metrics interface {
	ObserveHoldingsWrite(path, outcome string)
	ObserveRollbackFailure()
}

type noopMetrics struct{}

func (noopMetrics) ObserveHoldingsWrite(string, string) {}
func (noopMetrics) ObserveRollbackFailure()             {}

// ServiceConfig describes the collaborators of the holdings service.
type ServiceConfig struct {
	Store        Store
	HRIDs        HRIDSource
	Items        ItemPropagator
	Transactions Transactor
	IDProvider   ids.Provider
	Metrics      Metrics
	Logger       *zap.Logger
}

// Service orchestrates holdings writes and keeps dependent items consistent.
type Service struct {
	store        Store
	hrids        HRIDSource
	items        ItemPropagator
	transactions Transactor
	idProvider   ids.Provider
	metrics      Metrics
	logger       *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, reasonMissingStore, errMissingStore)
	}
	if cfg.HRIDs == nil {
		return nil, newServiceError(opServiceNew, reasonMissingHRIDSource, errMissingHRIDSource)
	}
	if cfg.Items == nil {
		return nil, newServiceError(opServiceNew, reasonMissingPropagator, errMissingPropagator)
	}
	if cfg.Transactions == nil {
		return nil, newServiceError(opServiceNew, reasonMissingTransactor, errMissingTransactor)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, reasonMissingIDProvider, errMissingIDProvider)
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:        cfg.Store,
		hrids:        cfg.HRIDs,
		items:        cfg.Items,
		transactions: cfg.Transactions,
		idProvider:   cfg.IDProvider,
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// UpdateHoldingRecord stores record under holdingsID. A missing record is
// created; an existing one is updated together with its items in a single
// transaction. The hrid of an existing record cannot change.
func (s *Service) UpdateHoldingRecord(ctx context.Context, holdingsID string, record Record) error {
	existing, err := s.store.GetByID(ctx, holdingsID)
	if err != nil {
		s.logError(opUpdateHolding, reasonLookupFailed, err, zap.String(fieldHoldingsID, holdingsID))
		s.metrics.ObserveHoldingsWrite(pathLookup, outcomeFailure)
		return newServiceError(opUpdateHolding, reasonLookupFailed, err)
	}

	if existing == nil {
		record.ID = holdingsID
		_, err := s.saveHolding(ctx, opUpdateHolding, record)
		return err
	}
	return s.updateHolding(ctx, *existing, record)
}

// CreateHoldingRecord inserts a new record, assigning an id and hrid when they are blank.
func (s *Service) CreateHoldingRecord(ctx context.Context, record Record) (Record, error) {
	if strings.TrimSpace(record.ID) == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opCreateHolding, reasonIDFailed, err)
			return Record{}, newServiceError(opCreateHolding, reasonIDFailed, err)
		}
		record.ID = id
	} else {
		existing, err := s.store.GetByID(ctx, record.ID)
		if err != nil {
			s.logError(opCreateHolding, reasonLookupFailed, err, zap.String(fieldHoldingsID, record.ID))
			return Record{}, newServiceError(opCreateHolding, reasonLookupFailed, err)
		}
		if existing != nil {
			return Record{}, newServiceError(opCreateHolding, reasonAlreadyExists, ErrAlreadyExists)
		}
	}
	return s.saveHolding(ctx, opCreateHolding, record)
}

// GetHoldingRecord returns the stored record for holdingsID.
func (s *Service) GetHoldingRecord(ctx context.Context, holdingsID string) (Record, error) {
	if strings.TrimSpace(holdingsID) == "" {
		return Record{}, newServiceError(opGetHolding, reasonMissingID, errMissingHoldingsID)
	}
	existing, err := s.store.GetByID(ctx, holdingsID)
	if err != nil {
		s.logError(opGetHolding, reasonLookupFailed, err, zap.String(fieldHoldingsID, holdingsID))
		return Record{}, newServiceError(opGetHolding, reasonLookupFailed, err)
	}
	if existing == nil {
		return Record{}, newServiceError(opGetHolding, reasonNotFound, ErrNotFound)
	}
	return *existing, nil
}

func (s *Service) saveHolding(ctx context.Context, operation string, record Record) (Record, error) {
	if strings.TrimSpace(record.HRID) == "" {
		hrid, err := s.hrids.NextHoldingsHRID(ctx)
		if err != nil {
			s.logError(operation, reasonHRIDFailed, err, zap.String(fieldHoldingsID, record.ID))
			s.metrics.ObserveHoldingsWrite(pathCreate, outcomeFailure)
			return Record{}, newServiceError(operation, reasonHRIDFailed, err)
		}
		record.HRID = hrid
	}
	record.deriveEffectiveLocation()

	saved, err := s.store.Save(ctx, record)
	if err != nil {
		reason := reasonSaveFailed
		outcome := outcomeFailure
		switch {
		case errors.Is(err, ErrDuplicateHRID):
			reason = reasonDuplicateHRID
			outcome = outcomeBadRequest
		case errors.Is(err, ErrAlreadyExists):
			reason = reasonAlreadyExists
		}
		s.logError(operation, reason, err,
			zap.String(fieldHoldingsID, record.ID),
			zap.String(fieldHRID, record.HRID))
		s.metrics.ObserveHoldingsWrite(pathCreate, outcome)
		return Record{}, newServiceError(operation, reason, err)
	}

	s.metrics.ObserveHoldingsWrite(pathCreate, outcomeSuccess)
	return saved, nil
}

func (s *Service) updateHolding(ctx context.Context, existing, incoming Record) error {
	if err := refuseIfHRIDChanged(existing, incoming); err != nil {
		s.logger.Info("holdings hrid change refused",
			zap.String(fieldHoldingsID, existing.ID),
			zap.String(fieldHRID, existing.HRID),
			zap.String(fieldIncomingHRID, incoming.HRID))
		s.metrics.ObserveHoldingsWrite(pathUpdate, outcomeBadRequest)
		return newServiceError(opUpdateHolding, reasonHRIDChanged, err)
	}

	incoming.ID = existing.ID
	incoming.deriveEffectiveLocation()

	tx, err := s.transactions.Begin(ctx)
	if err != nil {
		s.logError(opUpdateHolding, reasonTxBeginFailed, err, zap.String(fieldHoldingsID, existing.ID))
		s.metrics.ObserveHoldingsWrite(pathUpdate, outcomeFailure)
		return newServiceError(opUpdateHolding, reasonTxBeginFailed, err)
	}

	if err := s.applyUpdate(ctx, tx, existing.ID, incoming); err != nil {
		s.revertTransaction(tx, existing.ID, err)
		s.metrics.ObserveHoldingsWrite(pathUpdate, outcomeFailure)
		return err
	}

	if err := s.transactions.Commit(tx); err != nil {
		s.logError(opUpdateHolding, reasonTxCommitFailed, err, zap.String(fieldHoldingsID, existing.ID))
		s.metrics.ObserveHoldingsWrite(pathUpdate, outcomeFailure)
		return newServiceError(opUpdateHolding, reasonTxCommitFailed, err)
	}

	s.metrics.ObserveHoldingsWrite(pathUpdate, outcomeSuccess)
	return nil
}

func (s *Service) applyUpdate(ctx context.Context, tx *storage.Tx, holdingsID string, record Record) error {
	if err := s.store.Update(ctx, tx, holdingsID, record); err != nil {
		s.logError(opUpdateHolding, reasonHoldingsUpdate, err, zap.String(fieldHoldingsID, holdingsID))
		return newServiceError(opUpdateHolding, reasonHoldingsUpdate, err)
	}
	if err := s.items.UpdateItemsOnHoldingChanged(ctx, tx, record); err != nil {
		s.logError(opUpdateHolding, reasonItemsPropagation, err, zap.String(fieldHoldingsID, holdingsID))
		return newServiceError(opUpdateHolding, reasonItemsPropagation, err)
	}
	return nil
}

// revertTransaction rolls tx back. A rollback failure is logged and counted
// but never replaces the error that triggered it.
func (s *Service) revertTransaction(tx *storage.Tx, holdingsID string, cause error) {
	s.logger.Warn(logRevertingTransaction,
		zap.String(fieldHoldingsID, holdingsID),
		zap.NamedError("cause", cause))
	if tx.Done() {
		s.logger.Warn(logTransactionClosed, zap.String(fieldHoldingsID, holdingsID))
		return
	}
	if err := s.transactions.Rollback(tx); err != nil {
		s.metrics.ObserveRollbackFailure()
		s.logger.Warn(logUnableToRevert,
			zap.String(fieldHoldingsID, holdingsID),
			zap.Error(err))
	}
}

func refuseIfHRIDChanged(existing, incoming Record) error {
	if existing.HRID == incoming.HRID {
		return nil
	}
	return &HRIDChangedError{Existing: existing.HRID, Incoming: incoming.HRID}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error(logHoldingsServiceFailed, attrs...)
}
