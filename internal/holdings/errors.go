package holdings

import (
	"errors"
	"fmt"
)

var (
	// ErrBadRequest classifies failures caused by the caller's input.
	ErrBadRequest = errors.New("holdings: bad request")
	// ErrNotFound indicates that no holdings record exists for the identifier.
	ErrNotFound = errors.New("holdings: record not found")
	// ErrAlreadyExists indicates that a record with the identifier is already stored.
	ErrAlreadyExists = errors.New("holdings: record already exists")
	// ErrDuplicateHRID indicates that another record already carries the hrid.
	ErrDuplicateHRID = errors.New("holdings: hrid already in use")

	errMissingStore        = errors.New("holdings store is required")
	errMissingHRIDSource   = errors.New("hrid source is required")
	errMissingPropagator   = errors.New("item propagator is required")
	errMissingTransactor   = errors.New("transaction manager is required")
	errMissingIDProvider   = errors.New("id provider is required")
	errMissingHoldingsID   = errors.New("holdings identifier is required")
	errMissingDatabaseConn = errors.New("database handle is required")
)

// HRIDChangedError reports an attempt to replace the hrid of an existing record.
type HRIDChangedError struct {
	Existing string
	Incoming string
}

func (e *HRIDChangedError) Error() string {
	return fmt.Sprintf("The hrid field cannot be changed: new=%s, old=%s", e.Incoming, e.Existing)
}

// Is classifies the error as a bad request.
func (e *HRIDChangedError) Is(target error) bool {
	return target == ErrBadRequest
}

// ServiceError carries a stable code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
