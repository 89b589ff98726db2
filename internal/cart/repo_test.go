package cart

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/substractum/storefront/pkg/config"
	"github.com/substractum/storefront/pkg/db/models"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openCartDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.CartItem{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func testCartConfig() config.CartConfig {
	return config.CartConfig{
		GuestTTL:            time.Hour,
		SyncWorkers:         2,
		SyncMaxAttempts:     4,
		SyncBaseBackoff:     time.Millisecond,
		SyncMaxBackoff:      5 * time.Millisecond,
		SyncTimeout:         time.Second,
		DrainTimeout:        time.Second,
		BreakerMaxRequests:  1,
		BreakerInterval:     time.Minute,
		BreakerTimeout:      time.Minute,
		BreakerMinRequests:  3,
		BreakerFailureRatio: 0.5,
	}
}

func TestRepositoryUpsertIsAtomicPerLine(t *testing.T) {
	db := openCartDB(t)
	repo := NewRepository(db, testCartConfig(), nil)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, models.CartItem{UserID: userID, ProductID: "A", Quantity: 1, Name: "Aspirina", Price: decimal.RequireFromString("10.00")}))
	require.NoError(t, repo.Upsert(ctx, models.CartItem{UserID: userID, ProductID: "A", Quantity: 3, Name: "Aspirina", Price: decimal.RequireFromString("10.00")}))
	require.NoError(t, repo.Upsert(ctx, models.CartItem{UserID: userID, ProductID: "B", Quantity: 2, Name: "Bepantol", Price: decimal.RequireFromString("25.50"), ImageURL: "b.png"}))

	rows, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byID := map[string]models.CartItem{}
	for _, row := range rows {
		byID[row.ProductID] = row
	}
	assert.Equal(t, 3, byID["A"].Quantity)
	assert.Equal(t, "b.png", byID["B"].ImageURL)
	assert.True(t, byID["B"].Price.Equal(decimal.RequireFromString("25.50")))
}

func TestRepositoryDeletes(t *testing.T) {
	db := openCartDB(t)
	repo := NewRepository(db, testCartConfig(), nil)
	ctx := context.Background()
	userID := uuid.New()
	other := uuid.New()

	for _, id := range []string{"A", "B"} {
		require.NoError(t, repo.Upsert(ctx, models.CartItem{UserID: userID, ProductID: id, Quantity: 1, Name: id}))
	}
	require.NoError(t, repo.Upsert(ctx, models.CartItem{UserID: other, ProductID: "A", Quantity: 1, Name: "A"}))

	require.NoError(t, repo.Delete(ctx, userID, "A"))
	require.NoError(t, repo.Delete(ctx, userID, "missing"))
	rows, err := repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "B", rows[0].ProductID)

	require.NoError(t, repo.DeleteByUser(ctx, userID))
	rows, err = repo.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = repo.ListByUser(ctx, other)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRepositoryUpsertValidation(t *testing.T) {
	repo := NewRepository(openCartDB(t), testCartConfig(), nil)
	ctx := context.Background()

	err := repo.Upsert(ctx, models.CartItem{ProductID: "A", Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	err = repo.Upsert(ctx, models.CartItem{UserID: uuid.New(), ProductID: "A", Quantity: 0})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepositoryBreakerOpensOnFailures(t *testing.T) {
	db := openCartDB(t)
	repo := NewRepository(db, testCartConfig(), nil)
	ctx := context.Background()

	require.NoError(t, db.Migrator().DropTable(&models.CartItem{}))

	for i := 0; i < 3; i++ {
		err := repo.DeleteByUser(ctx, uuid.New())
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "attempt %d: %v", i, err)
	}

	err := repo.DeleteByUser(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnavailable))
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.True(t, pkgerrors.Retryable(err))
	assert.Equal(t, gobreaker.StateOpen, repo.State())
}

func TestLineFromRowDefaults(t *testing.T) {
	line := lineFromRow(models.CartItem{ProductID: "X"})
	assert.Equal(t, DefaultLineName, line.Name)
	assert.Equal(t, 1, line.Quantity)
	assert.True(t, line.Price.IsZero())
	assert.Equal(t, "", line.ImageURL)
}
