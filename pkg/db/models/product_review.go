package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductReview is a buyer's rating of a catalog product.
type ProductReview struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:product_reviews_product_user_key"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:product_reviews_product_user_key"`
	Rating       int       `gorm:"column:rating;not null"`
	Title        string    `gorm:"column:title;not null"`
	Comment      string    `gorm:"column:comment;not null"`
	HelpfulCount int       `gorm:"column:helpful_count;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProductReview) TableName() string { return "product_reviews" }
