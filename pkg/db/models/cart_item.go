package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem is one line of an authenticated user's remote cart. A user holds
// at most one row per product.
type CartItem struct {
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	ProductID string          `gorm:"column:product_id;primaryKey"`
	Quantity  int             `gorm:"column:quantity;not null;default:1"`
	Name      string          `gorm:"column:name;not null;default:'Produto'"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	ImageURL  string          `gorm:"column:image_url;not null;default:''"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartItem) TableName() string { return "cart_items" }
