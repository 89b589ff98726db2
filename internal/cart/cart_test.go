package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
)

type recordingPersister struct {
	mu       sync.Mutex
	loaded   []LineItem
	changes  []LineItem
	saved    [][]LineItem
	clears   int
	hydrates int
}

func (p *recordingPersister) Hydrate(context.Context) []LineItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hydrates++
	return cloneLines(p.loaded)
}

func (p *recordingPersister) Sync(_ context.Context, change LineItem, items []LineItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	p.saved = append(p.saved, items)
}

func (p *recordingPersister) Clear(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clears++
}

func priced(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func TestAddItemMergesQuantities(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{}
	c := Open(context.Background(), GuestIdentity("g1"), p)
	ctx := context.Background()

	product := ProductRef{ID: "A", Name: "Dipirona", Price: priced("10.00")}
	require.NoError(t, c.AddItem(ctx, product, 1))
	require.NoError(t, c.AddItem(ctx, product, 2))

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	totals := c.Totals()
	assert.Equal(t, 3, totals.TotalItems)
	assert.True(t, totals.TotalPrice.Equal(decimal.RequireFromString("30.00")), "total %s", totals.TotalPrice)

	require.Len(t, p.changes, 2)
	assert.Equal(t, 1, p.changes[0].Quantity)
	assert.Equal(t, 3, p.changes[1].Quantity)
}

func TestAddItemKeepsFirstSnapshot(t *testing.T) {
	t.Parallel()

	c := Open(context.Background(), GuestIdentity("g1"), &recordingPersister{})
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "A", Name: "Old", Price: priced("5")}, 1))
	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "A", Name: "New", Price: priced("9")}, 1))

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Old", items[0].Name)
	assert.True(t, items[0].Price.Equal(decimal.NewFromInt(5)))
}

func TestAddItemFieldFallbacks(t *testing.T) {
	t.Parallel()

	c := Open(context.Background(), GuestIdentity("g1"), &recordingPersister{})
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, ProductRef{ProductID: "B", Title: "Titled", UnitPrice: priced("2.50"), ImageURLCamel: "b.png"}, 1))
	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "C", ProductName: "Named", UnitPriceCamel: priced("1"), Image: "c.png"}, 1))
	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "D"}, 1))

	items := c.Items()
	require.Len(t, items, 3)
	assert.Equal(t, LineItem{ProductID: "B", Name: "Titled", ImageURL: "b.png", Price: decimal.RequireFromString("2.50"), Quantity: 1}, items[0])
	assert.Equal(t, "Named", items[1].Name)
	assert.Equal(t, "c.png", items[1].ImageURL)
	assert.Equal(t, DefaultLineName, items[2].Name)
	assert.True(t, items[2].Price.IsZero())
	assert.Equal(t, "", items[2].ImageURL)
}

func TestAddItemWithoutKeyIsNoop(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{}
	c := Open(context.Background(), GuestIdentity("g1"), p)
	require.NoError(t, c.AddItem(context.Background(), ProductRef{Name: "nameless"}, 1))
	assert.Empty(t, c.Items())
	assert.Empty(t, p.changes)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()

	c := Open(context.Background(), GuestIdentity("g1"), &recordingPersister{})
	err := c.AddItem(context.Background(), ProductRef{ID: "A"}, 0)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, c.Items())
}

func TestUpdateQuantityToZeroRemoves(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{}
	c := Open(context.Background(), GuestIdentity("g1"), p)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "B", Price: priced("4")}, 1))
	c.UpdateQuantity(ctx, "B", 0)

	assert.Empty(t, c.Items())
	assert.Equal(t, 0, c.Totals().TotalItems)
	last := p.changes[len(p.changes)-1]
	assert.Equal(t, "B", last.ProductID)
	assert.Equal(t, 0, last.Quantity)
}

func TestUpdateQuantitySetsValue(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{}
	c := Open(context.Background(), GuestIdentity("g1"), p)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "B", Name: "Bandage", Price: priced("4")}, 1))
	c.UpdateQuantity(ctx, "B", 5)

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	last := p.changes[len(p.changes)-1]
	assert.Equal(t, "Bandage", last.Name)
	assert.Equal(t, 5, last.Quantity)
}

func TestUpdateQuantityOfAbsentLineSyncsDefaults(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{}
	c := Open(context.Background(), GuestIdentity("g1"), p)
	c.UpdateQuantity(context.Background(), "ghost", 2)

	assert.Empty(t, c.Items())
	require.Len(t, p.changes, 1)
	assert.Equal(t, DefaultLineName, p.changes[0].Name)
	assert.True(t, p.changes[0].Price.IsZero())
	assert.Equal(t, 2, p.changes[0].Quantity)
}

func TestClearTwiceIsSafe(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{}
	c := Open(context.Background(), GuestIdentity("g1"), p)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "A"}, 2))
	c.Clear(ctx)
	c.Clear(ctx)

	assert.Empty(t, c.Items())
	assert.Equal(t, 2, p.clears)
}

func TestMutationsBeforeHydrationAreNotPersisted(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{loaded: []LineItem{{ProductID: "Z", Name: "Stored", Price: decimal.NewFromInt(1), Quantity: 4}}}
	c := New(GuestIdentity("g1"), p)
	ctx := context.Background()

	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "A"}, 1))
	c.Clear(ctx)
	assert.False(t, c.Ready())
	assert.Empty(t, p.changes)
	assert.Zero(t, p.clears)

	c.Hydrate(ctx)
	assert.True(t, c.Ready())
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Z", items[0].ProductID)
}

func TestViewReportsTotalsAndIdentity(t *testing.T) {
	t.Parallel()

	c := Open(context.Background(), GuestIdentity("g1"), &recordingPersister{})
	ctx := context.Background()
	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "A", Price: priced("1.25")}, 2))
	require.NoError(t, c.AddItem(ctx, ProductRef{ID: "B", Price: priced("3")}, 1))

	view := c.View()
	assert.True(t, view.IsReady)
	assert.Equal(t, "guest", view.Identity.String())
	assert.Equal(t, 3, view.TotalItems)
	assert.True(t, view.TotalPrice.Equal(decimal.RequireFromString("5.50")))
}

func TestItemsReturnsCopy(t *testing.T) {
	t.Parallel()

	c := Open(context.Background(), GuestIdentity("g1"), &recordingPersister{})
	require.NoError(t, c.AddItem(context.Background(), ProductRef{ID: "A"}, 1))

	items := c.Items()
	items[0].Quantity = 99
	assert.Equal(t, 1, c.Items()[0].Quantity)
}
