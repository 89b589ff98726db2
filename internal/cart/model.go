package cart

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/enums"
)

// DefaultLineName is used when a product carries no usable name.
const DefaultLineName = "Produto"

// LineItem is one product in a cart. Name, ImageURL and Price are captured
// when the product is first added and never refreshed from the catalog.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns price times quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ProductRef is a loosely shaped product record handed to AddItem. Several
// sources name the same attribute differently; the first populated field
// wins.
type ProductRef struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	ProductName string `json:"product_name"`

	Price          *decimal.Decimal `json:"price"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	UnitPriceCamel *decimal.Decimal `json:"unitPrice"`

	ImageURL      string `json:"image_url"`
	ImageURLCamel string `json:"imageUrl"`
	Image         string `json:"image"`
}

// Key resolves the product identifier, preferring id over productId.
func (p ProductRef) Key() string {
	return firstNonBlank(p.ID, p.ProductID)
}

func (p ProductRef) snapshot() LineItem {
	name := firstNonBlank(p.Name, p.Title, p.ProductName)
	if name == "" {
		name = DefaultLineName
	}
	price := decimal.Zero
	for _, candidate := range []*decimal.Decimal{p.Price, p.UnitPrice, p.UnitPriceCamel} {
		if candidate != nil {
			price = *candidate
			break
		}
	}
	return LineItem{
		ProductID: p.Key(),
		Name:      name,
		ImageURL:  firstNonBlank(p.ImageURL, p.ImageURLCamel, p.Image),
		Price:     price,
	}
}

// ProductRefFromModel adapts a catalog row.
func ProductRefFromModel(p models.Product) ProductRef {
	price := p.Price
	ref := ProductRef{
		ID:    p.ID.String(),
		Name:  p.Name,
		Price: &price,
	}
	if p.ImageURL != nil {
		ref.ImageURL = *p.ImageURL
	}
	return ref
}

// Identity is the resolved session a cart belongs to.
type Identity struct {
	Kind    enums.IdentityKind
	GuestID string
	UserID  uuid.UUID
}

// GuestIdentity builds an anonymous identity bound to a browser guest id.
func GuestIdentity(guestID string) Identity {
	return Identity{Kind: enums.IdentityGuest, GuestID: guestID}
}

// AuthenticatedIdentity builds an identity for a signed-in user.
func AuthenticatedIdentity(userID uuid.UUID) Identity {
	return Identity{Kind: enums.IdentityAuthenticated, UserID: userID}
}

func (i Identity) IsAuthenticated() bool {
	return i.Kind == enums.IdentityAuthenticated && i.UserID != uuid.Nil
}

func lineFromRow(row models.CartItem) LineItem {
	name := row.Name
	if strings.TrimSpace(name) == "" {
		name = DefaultLineName
	}
	qty := row.Quantity
	if qty <= 0 {
		qty = 1
	}
	return LineItem{
		ProductID: row.ProductID,
		Name:      name,
		ImageURL:  row.ImageURL,
		Price:     row.Price,
		Quantity:  qty,
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
