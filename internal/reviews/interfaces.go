package reviews

import (
	"context"

	"github.com/google/uuid"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/pagination"
)

// Repository defines persistence operations for product reviews.
type Repository interface {
	Create(ctx context.Context, review *models.ProductReview) (*models.ProductReview, error)
	ExistsForUser(ctx context.Context, productID, userID uuid.UUID) (bool, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ProductReview, error)
	Summarize(ctx context.Context, productID uuid.UUID) (Summary, error)
}
