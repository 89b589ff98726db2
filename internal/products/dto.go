package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/substractum/storefront/pkg/db/models"
)

// ProductDTO is the catalog entry returned to clients.
type ProductDTO struct {
	ID                   uuid.UUID       `json:"id"`
	Name                 string          `json:"name"`
	Description          *string         `json:"description,omitempty"`
	Price                decimal.Decimal `json:"price"`
	Category             string          `json:"category"`
	ImageURL             *string         `json:"image_url,omitempty"`
	Stock                int             `json:"stock"`
	InStock              bool            `json:"in_stock"`
	Supplier             *string         `json:"supplier,omitempty"`
	RequiresPrescription bool            `json:"requires_prescription"`
	CreatedAt            time.Time       `json:"created_at"`
}

// ProductListDTO is one page of catalog entries.
type ProductListDTO struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor"`
}

// ToProductDTO maps a catalog row.
func ToProductDTO(p models.Product) ProductDTO {
	return ProductDTO{
		ID:                   p.ID,
		Name:                 p.Name,
		Description:          p.Description,
		Price:                p.Price,
		Category:             p.Category,
		ImageURL:             p.ImageURL,
		Stock:                p.Stock,
		InStock:              p.InStock,
		Supplier:             p.Supplier,
		RequiresPrescription: p.RequiresPrescription,
		CreatedAt:            p.CreatedAt,
	}
}
