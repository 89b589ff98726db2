package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/substractum/storefront/pkg/logger"
)

// remotePersister backs an authenticated cart. Reads go straight to the
// store; writes are handed to the sync queue.
type remotePersister struct {
	userID uuid.UUID
	store  RemoteStore
	queue  *SyncQueue
	logg   *logger.Logger
}

func (p *remotePersister) Hydrate(ctx context.Context) []LineItem {
	ctx = p.logg.WithUserID(ctx, p.userID.String())
	rows, err := p.store.ListByUser(ctx, p.userID)
	if err != nil {
		p.logg.Error(ctx, "cart hydrate failed", err)
		return []LineItem{}
	}
	items := make([]LineItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, lineFromRow(row))
	}
	return overlay(items, p.queue.Pending(p.userID))
}

func (p *remotePersister) Sync(ctx context.Context, change LineItem, _ []LineItem) {
	var err error
	if change.Quantity <= 0 {
		err = p.queue.EnqueueDelete(p.userID, change.ProductID)
	} else {
		err = p.queue.EnqueueUpsert(p.userID, change)
	}
	if err != nil {
		ctx = p.logg.WithFields(p.logg.WithUserID(ctx, p.userID.String()), map[string]any{
			"product_id": change.ProductID,
			"quantity":   change.Quantity,
		})
		p.logg.Error(ctx, "cart sync enqueue failed", err)
	}
}

func (p *remotePersister) Clear(ctx context.Context) {
	if err := p.queue.EnqueueClear(p.userID); err != nil {
		p.logg.Error(p.logg.WithUserID(ctx, p.userID.String()), "cart clear enqueue failed", err)
	}
}
