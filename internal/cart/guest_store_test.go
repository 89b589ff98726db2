package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/substractum/storefront/pkg/redis"
)

type memoryKV struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	touched int
	getErr  error
	setErr  error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryKV) Touch(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched++
	m.ttls[key] = ttl
	return nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryKV) GuestCartKey(guestID string) string {
	return "substractum:cart_guest:" + guestID
}

func TestGuestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	store := NewGuestStore(kv, time.Hour, nil)
	ctx := context.Background()

	items := []LineItem{
		{ProductID: "C", Name: "Creme", ImageURL: "c.png", Price: decimal.RequireFromString("12.90"), Quantity: 2},
		{ProductID: "D", Name: "Dorflex", Price: decimal.NewFromInt(7), Quantity: 1},
	}
	store.Save(ctx, "g1", items)
	assert.Equal(t, time.Hour, kv.ttls["substractum:cart_guest:g1"])

	loaded := store.Load(ctx, "g1")
	require.Len(t, loaded, 2)
	for i := range items {
		assert.Equal(t, items[i].ProductID, loaded[i].ProductID)
		assert.Equal(t, items[i].Name, loaded[i].Name)
		assert.Equal(t, items[i].ImageURL, loaded[i].ImageURL)
		assert.Equal(t, items[i].Quantity, loaded[i].Quantity)
		assert.True(t, items[i].Price.Equal(loaded[i].Price))
	}
	assert.Equal(t, 1, kv.touched)
}

func TestGuestStoreWireFormat(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	store := NewGuestStore(kv, 0, nil)
	store.Save(context.Background(), "g1", []LineItem{{ProductID: "A", Name: "Aspirina", Price: decimal.RequireFromString("10.5"), Quantity: 3, ImageURL: "a.png"}})

	var raw []map[string]any
	require.NoError(t, json.Unmarshal([]byte(kv.values["substractum:cart_guest:g1"]), &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "A", raw[0]["productId"])
	assert.Equal(t, "Aspirina", raw[0]["name"])
	assert.Equal(t, 10.5, raw[0]["price"])
	assert.Equal(t, float64(3), raw[0]["quantity"])
	assert.Equal(t, "a.png", raw[0]["imageUrl"])
}

func TestGuestStoreLoadMissingOrCorrupt(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	store := NewGuestStore(kv, time.Hour, nil)
	ctx := context.Background()

	assert.Empty(t, store.Load(ctx, "nobody"))

	kv.values["substractum:cart_guest:bad"] = "{not json"
	assert.Empty(t, store.Load(ctx, "bad"))

	kv.getErr = errors.New("connection refused")
	assert.Empty(t, store.Load(ctx, "bad"))
	assert.Empty(t, store.Load(ctx, ""))
}

func TestGuestStoreLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	kv.values["substractum:cart_guest:g1"] = `[{"productId":"A"},{"name":"orphan","quantity":2},{"productId":"B","price":"3.20","quantity":4}]`
	store := NewGuestStore(kv, 0, nil)

	loaded := store.Load(context.Background(), "g1")
	require.Len(t, loaded, 2)
	assert.Equal(t, DefaultLineName, loaded[0].Name)
	assert.Equal(t, 1, loaded[0].Quantity)
	assert.True(t, loaded[0].Price.IsZero())
	assert.True(t, loaded[1].Price.Equal(decimal.RequireFromString("3.20")))
	assert.Equal(t, 0, kv.touched)
}

func TestGuestStoreWriteFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	kv.setErr = errors.New("readonly replica")
	store := NewGuestStore(kv, time.Hour, nil)

	store.Save(context.Background(), "g1", []LineItem{{ProductID: "A", Quantity: 1}})
	assert.Empty(t, kv.values)
}

func TestGuestCartSurvivesRemount(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	store := NewGuestStore(kv, time.Hour, nil)
	ctx := context.Background()

	first := Open(ctx, GuestIdentity("g1"), store.For("g1"))
	require.NoError(t, first.AddItem(ctx, ProductRef{ID: "C", Name: "Colírio", Price: priced("8.75")}, 2))

	second := Open(ctx, GuestIdentity("g1"), store.For("g1"))
	items := second.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "C", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("8.75")))

	second.Clear(ctx)
	_, present := kv.values["substractum:cart_guest:g1"]
	assert.False(t, present)
	assert.Empty(t, Open(ctx, GuestIdentity("g1"), store.For("g1")).Items())
}
