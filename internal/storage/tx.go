// Package storage owns the transaction boundary shared by the inventory services.
package storage

import (
	"context"
	"errors"
	"sync"

	"gorm.io/gorm"
)

var (
	// ErrMissingDatabase indicates that no gorm handle was supplied.
	ErrMissingDatabase = errors.New("storage: database handle is required")
	// ErrTxDone indicates that a transaction handle was used after commit or rollback.
	ErrTxDone = errors.New("storage: transaction has already been committed or rolled back")
	// ErrNilTx indicates that a nil transaction handle was passed.
	ErrNilTx = errors.New("storage: transaction handle is required")
)

// Tx is an explicit transaction handle. It is owned by a single caller and
// passed by reference to every collaborator that must join the transaction.
type Tx struct {
	mu   sync.Mutex
	db   *gorm.DB
	done bool
}

// DB returns the transactional gorm session.
func (tx *Tx) DB() (*gorm.DB, error) {
	if tx == nil {
		return nil, ErrNilTx
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil, ErrTxDone
	}
	if tx.db == nil {
		return nil, ErrMissingDatabase
	}
	return tx.db, nil
}

// Done reports whether the transaction has been completed.
func (tx *Tx) Done() bool {
	if tx == nil {
		return true
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.done
}

// finish marks the handle as completed and returns the session for the final statement.
func (tx *Tx) finish() (*gorm.DB, error) {
	if tx == nil {
		return nil, ErrNilTx
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil, ErrTxDone
	}
	tx.done = true
	if tx.db == nil {
		return nil, ErrMissingDatabase
	}
	return tx.db, nil
}

// TxManager begins, commits and rolls back transactions over a gorm connection.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager constructs a manager for the provided database.
func NewTxManager(db *gorm.DB) (*TxManager, error) {
	if db == nil {
		return nil, ErrMissingDatabase
	}
	return &TxManager{db: db}, nil
}

// Begin opens a transaction bound to ctx.
func (m *TxManager) Begin(ctx context.Context) (*Tx, error) {
	session := m.db.WithContext(ctx).Begin()
	if session.Error != nil {
		return nil, session.Error
	}
	return &Tx{db: session}, nil
}

// Commit commits the transaction. The handle is closed even when the commit fails.
func (m *TxManager) Commit(tx *Tx) error {
	session, err := tx.finish()
	if err != nil {
		return err
	}
	return session.Commit().Error
}

// Rollback reverts the transaction. The handle is closed even when the rollback fails.
func (m *TxManager) Rollback(tx *Tx) error {
	session, err := tx.finish()
	if err != nil {
		return err
	}
	return session.Rollback().Error
}
