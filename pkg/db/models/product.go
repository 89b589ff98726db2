package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog listing. Cart lines snapshot its name, price and image
// at add time.
type Product struct {
	ID                   uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string          `gorm:"column:name;not null"`
	Description          *string         `gorm:"column:description"`
	Price                decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Category             string          `gorm:"column:category;not null"`
	ImageURL             *string         `gorm:"column:image_url"`
	Stock                int             `gorm:"column:stock;not null;default:0"`
	InStock              bool            `gorm:"column:in_stock;not null;default:true"`
	Supplier             *string         `gorm:"column:supplier"`
	RequiresPrescription bool            `gorm:"column:requires_prescription;not null;default:false"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }
