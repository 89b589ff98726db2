package prescriptions

import (
	"context"

	"github.com/google/uuid"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/pagination"
	"gorm.io/gorm"
)

// Repository defines persistence operations for prescription requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.PrescriptionRequest) (*models.PrescriptionRequest, error)
	FindForUser(ctx context.Context, requestID, userID uuid.UUID) (*models.PrescriptionRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PrescriptionRequest, error)
}
