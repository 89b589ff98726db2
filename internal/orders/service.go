package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/enums"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/outbox"
	"github.com/substractum/storefront/pkg/outbox/payloads"
	"github.com/substractum/storefront/pkg/pagination"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service exposes a buyer's view of their orders.
type Service interface {
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (OrderList, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (OrderDTO, error)
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (OrderDTO, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds the orders service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher}, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (OrderList, error) {
	if userID == uuid.Nil {
		return OrderList{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return OrderList{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return OrderList{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})

	out := OrderList{Orders: make([]OrderDTO, 0, len(page)), NextCursor: next}
	for _, order := range page {
		out.Orders = append(out.Orders, ToOrderDTO(order))
	}
	return out, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (OrderDTO, error) {
	order, err := s.load(ctx, s.repo, userID, orderID)
	if err != nil {
		return OrderDTO{}, err
	}
	return ToOrderDTO(*order), nil
}

// CancelOrder cancels a pending or processing order and stages an
// order_cancelled event in the same transaction.
func (s *service) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (OrderDTO, error) {
	var result OrderDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, userID, orderID)
		if err != nil {
			return err
		}
		if !order.Status.Cancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}

		previous := order.Status
		changed, err := repo.TransitionStatus(ctx, order.ID, []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing}, enums.OrderStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}

		now := time.Now().UTC()
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.RoleUser.String()},
			OccurredAt:    now,
			Data: payloads.OrderCancelledEvent{
				OrderID:        order.ID,
				UserID:         userID,
				PreviousStatus: previous,
				CancelledAt:    now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stage order_cancelled event")
		}

		order.Status = enums.OrderStatusCancelled
		order.UpdatedAt = now
		result = ToOrderDTO(*order)
		return nil
	})
	if err != nil {
		return OrderDTO{}, err
	}
	return result, nil
}

func (s *service) load(ctx context.Context, repo Repository, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
