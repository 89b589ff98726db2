package reviews

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/substractum/storefront/pkg/db/models"
)

// ReviewDTO is a published review.
type ReviewDTO struct {
	ID           uuid.UUID `json:"id"`
	ProductID    uuid.UUID `json:"product_id"`
	UserID       uuid.UUID `json:"user_id"`
	Rating       int       `json:"rating"`
	Title        string    `json:"title"`
	Comment      string    `json:"comment"`
	HelpfulCount int       `json:"helpful_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary aggregates a product's ratings. Average is rounded to one decimal
// place and zero when there are no reviews.
type Summary struct {
	Count        int             `json:"count"`
	Average      decimal.Decimal `json:"average"`
	Distribution map[int]int     `json:"distribution"`
}

// ReviewList is one page of a product's reviews with its rating summary.
type ReviewList struct {
	Summary    Summary     `json:"summary"`
	Reviews    []ReviewDTO `json:"reviews"`
	NextCursor string      `json:"next_cursor"`
}

func (s Summary) withAverage() Summary {
	s.Average = decimal.Zero
	if s.Count == 0 {
		return s
	}
	total := 0
	for rating, count := range s.Distribution {
		total += rating * count
	}
	s.Average = decimal.NewFromInt(int64(total)).Div(decimal.NewFromInt(int64(s.Count))).Round(1)
	return s
}

// ToReviewDTO maps the stored row.
func ToReviewDTO(row models.ProductReview) ReviewDTO {
	return ReviewDTO{
		ID:           row.ID,
		ProductID:    row.ProductID,
		UserID:       row.UserID,
		Rating:       row.Rating,
		Title:        row.Title,
		Comment:      row.Comment,
		HelpfulCount: row.HelpfulCount,
		CreatedAt:    row.CreatedAt,
	}
}
