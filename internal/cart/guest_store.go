package cart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/substractum/storefront/pkg/logger"
	"github.com/substractum/storefront/pkg/redis"
)

type guestKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Touch(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	GuestCartKey(guestID string) string
}

// guestLine is the stored shape of a guest cart line.
type guestLine struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Quantity  int         `json:"quantity"`
	ImageURL  string      `json:"imageUrl"`
}

// GuestStore keeps anonymous carts in redis, one key per guest id.
type GuestStore struct {
	kv   guestKV
	ttl  time.Duration
	logg *logger.Logger
}

// NewGuestStore binds the store to a redis client. A zero ttl keeps entries
// until they are erased.
func NewGuestStore(kv guestKV, ttl time.Duration, logg *logger.Logger) *GuestStore {
	if logg == nil {
		logg = logger.Nop()
	}
	return &GuestStore{kv: kv, ttl: ttl, logg: logg}
}

// Load returns the stored lines for guestID. A missing or unreadable entry
// yields an empty collection.
func (s *GuestStore) Load(ctx context.Context, guestID string) []LineItem {
	if strings.TrimSpace(guestID) == "" {
		return []LineItem{}
	}
	ctx = s.logg.WithGuestID(ctx, guestID)
	key := s.kv.GuestCartKey(guestID)

	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logg.Error(ctx, "guest cart read failed", err)
		}
		return []LineItem{}
	}

	var stored []guestLine
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logg.Error(ctx, "guest cart payload unreadable", err)
		return []LineItem{}
	}

	if s.ttl > 0 {
		if err := s.kv.Touch(ctx, key, s.ttl); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "guest cart ttl refresh failed")
		}
	}
	return decodeGuestLines(stored)
}

// Save overwrites the stored entry with items.
func (s *GuestStore) Save(ctx context.Context, guestID string, items []LineItem) {
	if strings.TrimSpace(guestID) == "" {
		return
	}
	ctx = s.logg.WithGuestID(ctx, guestID)

	payload, err := json.Marshal(encodeGuestLines(items))
	if err != nil {
		s.logg.Error(ctx, "guest cart encode failed", err)
		return
	}
	if err := s.kv.Set(ctx, s.kv.GuestCartKey(guestID), string(payload), s.ttl); err != nil {
		s.logg.Error(ctx, "guest cart write failed", err)
	}
}

// Erase deletes the stored entry.
func (s *GuestStore) Erase(ctx context.Context, guestID string) {
	if strings.TrimSpace(guestID) == "" {
		return
	}
	ctx = s.logg.WithGuestID(ctx, guestID)
	if err := s.kv.Del(ctx, s.kv.GuestCartKey(guestID)); err != nil {
		s.logg.Error(ctx, "guest cart erase failed", err)
	}
}

// For returns the persister used by a guest cart.
func (s *GuestStore) For(guestID string) Persister {
	return &guestPersister{store: s, guestID: guestID}
}

type guestPersister struct {
	store   *GuestStore
	guestID string
}

func (p *guestPersister) Hydrate(ctx context.Context) []LineItem {
	return p.store.Load(ctx, p.guestID)
}

func (p *guestPersister) Sync(ctx context.Context, _ LineItem, items []LineItem) {
	p.store.Save(ctx, p.guestID, items)
}

func (p *guestPersister) Clear(ctx context.Context) {
	p.store.Erase(ctx, p.guestID)
}

func encodeGuestLines(items []LineItem) []guestLine {
	out := make([]guestLine, 0, len(items))
	for _, item := range items {
		out = append(out, guestLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     json.Number(item.Price.String()),
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}
	return out
}

func decodeGuestLines(stored []guestLine) []LineItem {
	out := make([]LineItem, 0, len(stored))
	for _, line := range stored {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			continue
		}
		price, err := decimal.NewFromString(line.Price.String())
		if err != nil {
			price = decimal.Zero
		}
		name := line.Name
		if strings.TrimSpace(name) == "" {
			name = DefaultLineName
		}
		qty := line.Quantity
		if qty <= 0 {
			qty = 1
		}
		out = append(out, LineItem{
			ProductID: id,
			Name:      name,
			ImageURL:  line.ImageURL,
			Price:     price,
			Quantity:  qty,
		})
	}
	return out
}
