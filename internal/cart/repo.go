package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/substractum/storefront/pkg/config"
	"github.com/substractum/storefront/pkg/db/models"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteStore is the relational persistence surface used by authenticated
// carts and the sync queue.
type RemoteStore interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Upsert(ctx context.Context, item models.CartItem) error
	Delete(ctx context.Context, userID uuid.UUID, productID string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

// Repository persists authenticated cart lines in cart_items. Every call
// passes through a circuit breaker.
type Repository struct {
	db *gorm.DB
	cb *gobreaker.CircuitBreaker
}

// NewRepository binds the repository to db with breaker settings from cfg.
func NewRepository(db *gorm.DB, cfg config.CartConfig, logg *logger.Logger) *Repository {
	if logg == nil {
		logg = logger.Nop()
	}
	st := gobreaker.Settings{
		Name:        "cart_items",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.BreakerMinRequests && ratio >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "circuit breaker state changed")
		},
	}
	return &Repository{db: db, cb: gobreaker.NewCircuitBreaker(st)}
}

// State exposes the breaker state for health reporting.
func (r *Repository) State() gobreaker.State {
	return r.cb.State()
}

// ListByUser returns the user's rows ordered by creation.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.execute(func() error {
		return r.db.WithContext(ctx).
			Select("user_id", "product_id", "quantity", "name", "price", "image_url", "created_at", "updated_at").
			Where("user_id = ?", userID).
			Order("created_at ASC").
			Order("product_id ASC").
			Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert writes the row keyed by (user_id, product_id) in one statement.
func (r *Repository) Upsert(ctx context.Context, item models.CartItem) error {
	if item.UserID == uuid.Nil || strings.TrimSpace(item.ProductID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id and product id are required")
	}
	if item.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive for upsert")
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	return r.execute(func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"quantity", "name", "price", "image_url", "updated_at"}),
			}).
			Create(&item).Error
	})
}

// Delete removes a single line. Deleting an absent line is not an error.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, productID string) error {
	return r.execute(func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND product_id = ?", userID, productID).
			Delete(&models.CartItem{}).Error
	})
}

// DeleteByUser removes every line for the user.
func (r *Repository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.execute(func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Delete(&models.CartItem{}).Error
	})
}

func (r *Repository) execute(fn func() error) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "cart store circuit open")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart store request failed")
}
