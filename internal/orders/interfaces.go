package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/enums"
	"github.com/substractum/storefront/pkg/pagination"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	// TransitionStatus moves the order from one of the allowed statuses to
	// next and reports whether a row changed.
	TransitionStatus(ctx context.Context, orderID uuid.UUID, allowed []enums.OrderStatus, next enums.OrderStatus) (bool, error)
}
