package cart

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/substractum/storefront/pkg/enums"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
)

// Persister is the storage strategy chosen for a cart when it is opened.
// Implementations swallow their own failures; the in-memory cart is the
// source of truth for the caller.
type Persister interface {
	Hydrate(ctx context.Context) []LineItem
	// Sync records a single line change. A change with Quantity 0 removes
	// the line. items is the full collection after the mutation.
	Sync(ctx context.Context, change LineItem, items []LineItem)
	Clear(ctx context.Context)
}

// Cart holds the line items of one mounted session.
type Cart struct {
	mu        sync.Mutex
	identity  Identity
	persister Persister
	items     []LineItem
	ready     bool
}

// View is the read model returned to clients.
type View struct {
	Items      []LineItem         `json:"items"`
	TotalItems int                `json:"total_items"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	IsReady    bool               `json:"is_ready"`
	Identity   enums.IdentityKind `json:"identity"`
}

// New returns an empty cart that persists nothing until Hydrate runs.
func New(identity Identity, persister Persister) *Cart {
	return &Cart{identity: identity, persister: persister, items: []LineItem{}}
}

// Open builds a cart bound to persister and hydrates it.
func Open(ctx context.Context, identity Identity, persister Persister) *Cart {
	c := New(identity, persister)
	c.Hydrate(ctx)
	return c
}

// Hydrate replaces the collection with the persisted one and marks the cart
// ready. Mutations made before hydration are discarded.
func (c *Cart) Hydrate(ctx context.Context) {
	loaded := c.persister.Hydrate(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = cloneLines(loaded)
	c.ready = true
}

func (c *Cart) Identity() Identity {
	return c.identity
}

func (c *Cart) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Has reports whether productID is already a line in the cart.
func (c *Cart) Has(productID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexOf(strings.TrimSpace(productID)) >= 0
}

// Items returns a copy of the current lines.
func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneLines(c.items)
}

func (c *Cart) Totals() Totals {
	return ComputeTotals(c.Items())
}

func (c *Cart) View() View {
	c.mu.Lock()
	items := cloneLines(c.items)
	ready := c.ready
	c.mu.Unlock()

	totals := ComputeTotals(items)
	return View{
		Items:      items,
		TotalItems: totals.TotalItems,
		TotalPrice: totals.TotalPrice,
		IsReady:    ready,
		Identity:   c.identity.Kind,
	}
}

// AddItem merges quantity into an existing line or appends a new one using
// the product's current snapshot. A product without an id is ignored.
func (c *Cart) AddItem(ctx context.Context, product ProductRef, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	key := product.Key()
	if key == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var change LineItem
	if idx := c.indexOf(key); idx >= 0 {
		c.items[idx].Quantity += quantity
		change = c.items[idx]
	} else {
		change = product.snapshot()
		change.Quantity = quantity
		c.items = append(c.items, change)
	}
	c.persist(ctx, change)
	return nil
}

// RemoveItem drops the line for productID and syncs a zero quantity.
func (c *Cart) RemoveItem(ctx context.Context, productID string) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	change := LineItem{ProductID: productID, Name: DefaultLineName, Price: decimal.Zero}
	if idx := c.indexOf(productID); idx >= 0 {
		change = c.items[idx]
		c.items = append(c.items[:idx], c.items[idx+1:]...)
	}
	change.Quantity = 0
	c.persist(ctx, change)
}

// UpdateQuantity sets the quantity of a line. Non-positive quantities
// remove it. Updating a line that is not in the cart still syncs the
// quantity with default snapshot fields.
func (c *Cart) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	if quantity <= 0 {
		c.RemoveItem(ctx, productID)
		return
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	change := LineItem{ProductID: productID, Name: DefaultLineName, Price: decimal.Zero}
	if idx := c.indexOf(productID); idx >= 0 {
		c.items[idx].Quantity = quantity
		change = c.items[idx]
	}
	change.Quantity = quantity
	c.persist(ctx, change)
}

// Clear empties the cart and its backing store.
func (c *Cart) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = []LineItem{}
	if c.ready {
		c.persister.Clear(ctx)
	}
}

func (c *Cart) persist(ctx context.Context, change LineItem) {
	if !c.ready {
		return
	}
	c.persister.Sync(ctx, change, cloneLines(c.items))
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func cloneLines(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
