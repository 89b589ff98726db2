package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/substractum/storefront/pkg/db/models"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
)

func newTestService(t *testing.T, remote RemoteStore) (*Service, *memoryKV, *SyncQueue) {
	t.Helper()
	kv := newMemoryKV()
	q, _ := newTestQueue(t, remote)
	svc, err := NewService(NewGuestStore(kv, time.Hour, nil), remote, q, nil)
	require.NoError(t, err)
	return svc, kv, q
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(nil, newFakeRemote(), nil, nil)
	require.Error(t, err)
}

func TestOpenSelectsStrategyByIdentity(t *testing.T) {
	remote := newFakeRemote()
	svc, kv, q := newTestService(t, remote)
	ctx := context.Background()
	userID := uuid.New()

	guest := svc.Open(ctx, GuestIdentity("g1"))
	require.NoError(t, guest.AddItem(ctx, ProductRef{ID: "A", Price: priced("1")}, 1))
	assert.Contains(t, kv.values, "substractum:cart_guest:g1")
	assert.True(t, q.Idle())

	authed := svc.Open(ctx, AuthenticatedIdentity(userID))
	require.NoError(t, authed.AddItem(ctx, ProductRef{ID: "B", Price: priced("2")}, 1))
	waitIdle(t, q)
	_, ok := remote.row(userID, "B")
	assert.True(t, ok)
	assert.Len(t, kv.values, 1)
}

func TestAuthenticatedSyncFailureThenSuccessConverges(t *testing.T) {
	remote := newFakeRemote()
	remote.failNext("upsert:A", 1)
	svc, _, q := newTestService(t, remote)
	ctx := context.Background()
	userID := uuid.New()

	c := svc.Open(ctx, AuthenticatedIdentity(userID))
	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "A", Name: "Aspirina", Price: priced("10.00")}, 1))
	c.UpdateQuantity(ctx, "A", 4)
	assert.Equal(t, 4, c.Items()[0].Quantity)

	waitIdle(t, q)
	row, ok := remote.row(userID, "A")
	require.True(t, ok)
	assert.Equal(t, 4, row.Quantity)
	assert.Equal(t, "Aspirina", row.Name)
}

func TestHydrateOverlaysPendingWrites(t *testing.T) {
	remote := newFakeRemote()
	userID := uuid.New()
	remote.rows[userID] = map[string]models.CartItem{
		"A": {UserID: userID, ProductID: "A", Quantity: 1, Name: "Aspirina", Price: decimal.NewFromInt(10)},
	}
	remote.gate = make(chan struct{})
	svc, _, q := newTestService(t, remote)
	ctx := context.Background()

	first := svc.Open(ctx, AuthenticatedIdentity(userID))
	first.UpdateQuantity(ctx, "A", 6)
	require.NoError(t, first.AddItem(ctx, ProductRef{ID: "B", Name: "Bepantol"}, 2))

	second := svc.Open(ctx, AuthenticatedIdentity(userID))
	items := second.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 6, items[0].Quantity)
	assert.Equal(t, "B", items[1].ProductID)

	close(remote.gate)
	waitIdle(t, q)
}

func TestHydrateReadFailureYieldsEmptyCart(t *testing.T) {
	remote := newFakeRemote()
	remote.listErr = errors.New("relation does not exist")
	svc, _, _ := newTestService(t, remote)

	c := svc.Open(context.Background(), AuthenticatedIdentity(uuid.New()))
	assert.True(t, c.Ready())
	assert.Empty(t, c.Items())
}

func TestMergeGuestFoldsLinesAndErasesGuest(t *testing.T) {
	remote := newFakeRemote()
	svc, kv, q := newTestService(t, remote)
	ctx := context.Background()
	userID := uuid.New()

	guest := svc.Open(ctx, GuestIdentity("g1"))
	require.NoError(t, guest.AddItem(ctx, ProductRef{ID: "A", Name: "Guest A", Price: priced("3")}, 2))
	require.NoError(t, guest.AddItem(ctx, ProductRef{ID: "C", Name: "Guest C", Price: priced("5")}, 1))

	authed := svc.Open(ctx, AuthenticatedIdentity(userID))
	require.NoError(t, authed.AddItem(ctx, ProductRef{ID: "A", Name: "Remote A", Price: priced("4")}, 1))

	merged, err := svc.MergeGuest(ctx, authed, "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, merged)

	items := authed.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Remote A", items[0].Name)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "Guest C", items[1].Name)
	assert.NotContains(t, kv.values, "substractum:cart_guest:g1")

	waitIdle(t, q)
	row, ok := remote.row(userID, "C")
	require.True(t, ok)
	assert.True(t, row.Price.Equal(decimal.NewFromInt(5)))
}

func TestMergeGuestRequiresAuthenticatedCart(t *testing.T) {
	svc, _, _ := newTestService(t, newFakeRemote())
	ctx := context.Background()

	_, err := svc.MergeGuest(ctx, svc.Open(ctx, GuestIdentity("g1")), "g1")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.MergeGuest(ctx, svc.Open(ctx, AuthenticatedIdentity(uuid.New())), "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
