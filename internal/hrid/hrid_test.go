package hrid

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestManager(t *testing.T, start int64) (*Manager, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:hrid_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Setting{}))

	manager, err := NewManager(Config{
		Database:        db,
		InstancesPrefix: "in",
		HoldingsPrefix:  "ho",
		ItemsPrefix:     "it",
		StartNumber:     start,
	})
	require.NoError(t, err)
	return manager, db
}

func TestFormatPadsNumber(t *testing.T) {
	assert.Equal(t, "ho00000001", Format("ho", 1))
	assert.Equal(t, "it12345678", Format("it", 12345678))
	assert.Equal(t, "00000042", Format("", 42))
}

func TestManagerIssuesSequentialHoldingsHRIDs(t *testing.T) {
	manager, db := newTestManager(t, 1)
	ctx := context.Background()

	first, err := manager.NextHoldingsHRID(ctx)
	require.NoError(t, err)
	second, err := manager.NextHoldingsHRID(ctx)
	require.NoError(t, err)

	assert.Equal(t, "ho00000001", first)
	assert.Equal(t, "ho00000002", second)

	var setting Setting
	require.NoError(t, db.Take(&setting, "kind = ?", string(KindHoldings)).Error)
	assert.Equal(t, int64(3), setting.NextNumber)
}

func TestManagerKeepsSequencesIndependent(t *testing.T) {
	manager, _ := newTestManager(t, 100)
	ctx := context.Background()

	instance, err := manager.NextInstanceHRID(ctx)
	require.NoError(t, err)
	item, err := manager.NextItemHRID(ctx)
	require.NoError(t, err)
	holdings, err := manager.NextHoldingsHRID(ctx)
	require.NoError(t, err)

	assert.Equal(t, "in00000100", instance)
	assert.Equal(t, "it00000100", item)
	assert.Equal(t, "ho00000100", holdings)
}

func TestManagerUsesStoredPrefix(t *testing.T) {
	manager, db := newTestManager(t, 1)
	require.NoError(t, db.Create(&Setting{Kind: string(KindHoldings), Prefix: "hold", NextNumber: 7}).Error)

	value, err := manager.NextHoldingsHRID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hold00000007", value)
}

func TestManagerRejectsUnknownKind(t *testing.T) {
	manager, _ := newTestManager(t, 1)

	_, err := manager.Next(context.Background(), Kind("loans"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestManagerNeverIssuesDuplicatesConcurrently(t *testing.T) {
	manager, _ := newTestManager(t, 1)
	const workers = 16

	var wg sync.WaitGroup
	results := make(chan string, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := manager.NextHoldingsHRID(context.Background())
			if err != nil {
				errs <- err
				return
			}
			results <- value
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	seen := make(map[string]struct{}, workers)
	for value := range results {
		assert.True(t, strings.HasPrefix(value, "ho"), "unexpected prefix in %s", value)
		_, dup := seen[value]
		assert.False(t, dup, "duplicate hrid %s", value)
		seen[value] = struct{}{}
	}
	assert.Len(t, seen, workers)
}

func TestNewManagerRequiresDatabase(t *testing.T) {
	_, err := NewManager(Config{})
	assert.Error(t, err)
}
