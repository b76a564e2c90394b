package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type counterRow struct {
	Name  string `gorm:"column:name;primaryKey;size:32"`
	Value int64  `gorm:"column:value;not null"`
}

func (counterRow) TableName() string {
	return "counters"
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:storage_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&counterRow{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := db.Create(&counterRow{Name: "c", Value: 1}).Error; err != nil {
		t.Fatalf("failed to seed: %v", err)
	}
	return db
}

func TestTxManagerCommitPersistsChanges(t *testing.T) {
	db := newTestDB(t)
	manager, err := NewTxManager(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	session, err := tx.DB()
	if err != nil {
		t.Fatalf("unexpected handle error: %v", err)
	}
	if err := session.Model(&counterRow{}).Where("name = ?", "c").Update("value", 2).Error; err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := manager.Commit(tx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	var stored counterRow
	if err := db.Take(&stored, "name = ?", "c").Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.Value != 2 {
		t.Fatalf("expected committed value 2, got %d", stored.Value)
	}
}

func TestTxManagerRollbackRevertsChanges(t *testing.T) {
	db := newTestDB(t)
	manager, err := NewTxManager(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	session, _ := tx.DB()
	if err := session.Model(&counterRow{}).Where("name = ?", "c").Update("value", 5).Error; err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := manager.Rollback(tx); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	var stored counterRow
	if err := db.Take(&stored, "name = ?", "c").Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.Value != 1 {
		t.Fatalf("expected value to be reverted to 1, got %d", stored.Value)
	}
}

func TestTxHandleRefusesReuse(t *testing.T) {
	manager, err := NewTxManager(newTestDB(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx, err := manager.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if err := manager.Commit(tx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if !tx.Done() {
		t.Fatalf("expected handle to report completion")
	}
	if _, err := tx.DB(); !errors.Is(err, ErrTxDone) {
		t.Fatalf("expected ErrTxDone from DB, got %v", err)
	}
	if err := manager.Rollback(tx); !errors.Is(err, ErrTxDone) {
		t.Fatalf("expected ErrTxDone from Rollback, got %v", err)
	}
	if err := manager.Commit(tx); !errors.Is(err, ErrTxDone) {
		t.Fatalf("expected ErrTxDone from Commit, got %v", err)
	}
}

func TestNewTxManagerRequiresDatabase(t *testing.T) {
	if _, err := NewTxManager(nil); !errors.Is(err, ErrMissingDatabase) {
		t.Fatalf("expected ErrMissingDatabase, got %v", err)
	}
}
