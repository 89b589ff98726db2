package cart

import (
	"context"
	"fmt"

	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/logger"
)

// Service opens carts with the persistence strategy matching their identity.
type Service struct {
	guests *GuestStore
	remote RemoteStore
	queue  *SyncQueue
	logg   *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(guests *GuestStore, remote RemoteStore, queue *SyncQueue, logg *logger.Logger) (*Service, error) {
	if guests == nil {
		return nil, fmt.Errorf("guest store required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote store required")
	}
	if queue == nil {
		return nil, fmt.Errorf("sync queue required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{guests: guests, remote: remote, queue: queue, logg: logg}, nil
}

// PersisterFor selects the storage strategy once per identity.
func (s *Service) PersisterFor(identity Identity) Persister {
	if identity.IsAuthenticated() {
		return &remotePersister{userID: identity.UserID, store: s.remote, queue: s.queue, logg: s.logg}
	}
	return s.guests.For(identity.GuestID)
}

// Open returns a hydrated cart for identity.
func (s *Service) Open(ctx context.Context, identity Identity) *Cart {
	return Open(ctx, identity, s.PersisterFor(identity))
}

// MergeGuest folds the lines stored for guestID into an authenticated cart
// and erases the guest entry. Lines already in the cart keep their snapshot
// and gain the guest quantity. It returns the number of lines merged.
func (s *Service) MergeGuest(ctx context.Context, c *Cart, guestID string) (int, error) {
	if c == nil || !c.Identity().IsAuthenticated() {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "merge requires an authenticated cart")
	}
	if guestID == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "guest id is required")
	}

	lines := s.guests.Load(ctx, guestID)
	merged := 0
	for _, line := range lines {
		price := line.Price
		ref := ProductRef{
			ID:       line.ProductID,
			Name:     line.Name,
			Price:    &price,
			ImageURL: line.ImageURL,
		}
		if err := c.AddItem(ctx, ref, line.Quantity); err != nil {
			return merged, err
		}
		merged++
	}
	s.guests.Erase(ctx, guestID)

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"guest_id":     guestID,
		"merged_lines": merged,
	}), "guest cart merged")
	return merged, nil
}
