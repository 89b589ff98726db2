package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/substractum/storefront/pkg/config"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/enums"
	pkgerrors "github.com/substractum/storefront/pkg/errors"
	"github.com/substractum/storefront/pkg/logger"
	"github.com/substractum/storefront/pkg/metrics"
	"go.uber.org/multierr"
)

const defaultSyncTimeout = 5 * time.Second

var (
	errSuperseded  = errors.New("sync op superseded")
	errQueueClosed = errors.New("cart sync queue closed")
)

// SyncOp is a remote cart write waiting to be applied.
type SyncOp struct {
	Kind   enums.SyncOpKind
	UserID uuid.UUID
	Line   LineItem
	seq    uint64
}

func (op SyncOp) productID() string {
	return op.Line.ProductID
}

// supersedes reports whether op makes an older op for the same user moot.
func (op SyncOp) supersedes(older SyncOp) bool {
	if op.Kind == enums.SyncOpClear {
		return true
	}
	return older.Kind != enums.SyncOpClear && op.productID() == older.productID()
}

// SyncQueue applies authenticated cart writes in the background. Ops for one
// user run one at a time in enqueue order; a newer write for the same line
// replaces a pending one.
type SyncQueue struct {
	store   RemoteStore
	cfg     config.CartConfig
	logg    *logger.Logger
	metrics *metrics.CartSyncMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	cond      *sync.Cond
	pending   map[uuid.UUID][]SyncOp
	inFlight  map[uuid.UUID]SyncOp
	runnable  []uuid.UUID
	scheduled map[uuid.UUID]bool
	seq       uint64
	closing   bool
}

// NewSyncQueue starts cfg.SyncWorkers workers against store.
func NewSyncQueue(store RemoteStore, cfg config.CartConfig, logg *logger.Logger, m *metrics.CartSyncMetrics) (*SyncQueue, error) {
	if store == nil {
		return nil, fmt.Errorf("remote store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if cfg.SyncWorkers <= 0 {
		cfg.SyncWorkers = 1
	}
	if cfg.SyncMaxAttempts <= 0 {
		cfg.SyncMaxAttempts = 1
	}
	if cfg.SyncBaseBackoff <= 0 {
		cfg.SyncBaseBackoff = 200 * time.Millisecond
	}
	if cfg.SyncMaxBackoff < cfg.SyncBaseBackoff {
		cfg.SyncMaxBackoff = cfg.SyncBaseBackoff
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = defaultSyncTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &SyncQueue{
		store:     store,
		cfg:       cfg,
		logg:      logg,
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
		pending:   map[uuid.UUID][]SyncOp{},
		inFlight:  map[uuid.UUID]SyncOp{},
		scheduled: map[uuid.UUID]bool{},
	}
	q.cond = sync.NewCond(&q.mu)

	for i := 0; i < cfg.SyncWorkers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q, nil
}

// EnqueueUpsert schedules a write of line for userID.
func (q *SyncQueue) EnqueueUpsert(userID uuid.UUID, line LineItem) error {
	return q.enqueue(SyncOp{Kind: enums.SyncOpUpsert, UserID: userID, Line: line})
}

// EnqueueDelete schedules removal of a single line.
func (q *SyncQueue) EnqueueDelete(userID uuid.UUID, productID string) error {
	return q.enqueue(SyncOp{Kind: enums.SyncOpDelete, UserID: userID, Line: LineItem{ProductID: productID}})
}

// EnqueueClear drops every pending op for userID and schedules removal of
// all of the user's lines.
func (q *SyncQueue) EnqueueClear(userID uuid.UUID) error {
	return q.enqueue(SyncOp{Kind: enums.SyncOpClear, UserID: userID})
}

func (q *SyncQueue) enqueue(op SyncOp) error {
	if op.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if op.Kind != enums.SyncOpClear && op.productID() == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closing {
		q.metrics.IncDropped(op.Kind.String())
		return errQueueClosed
	}

	q.seq++
	op.seq = q.seq
	q.metrics.IncEnqueued(op.Kind.String())

	ops := q.pending[op.UserID]
	if op.Kind == enums.SyncOpClear {
		for _, dropped := range ops {
			q.metrics.IncCollapsed(dropped.Kind.String())
		}
		ops = ops[:0]
		ops = append(ops, op)
	} else {
		replaced := false
		for i := range ops {
			if ops[i].Kind != enums.SyncOpClear && ops[i].productID() == op.productID() {
				q.metrics.IncCollapsed(ops[i].Kind.String())
				ops[i] = op
				replaced = true
				break
			}
		}
		if !replaced {
			ops = append(ops, op)
		}
	}
	q.pending[op.UserID] = ops
	q.scheduleLocked(op.UserID)
	q.reportPendingLocked()
	return nil
}

// Pending returns the ops for userID that have not been confirmed yet, the
// in-flight op first.
func (q *SyncQueue) Pending(userID uuid.UUID) []SyncOp {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []SyncOp
	if op, ok := q.inFlight[userID]; ok {
		out = append(out, op)
	}
	return append(out, q.pending[userID]...)
}

// Idle reports whether no op is queued or running.
func (q *SyncQueue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight) == 0 && len(q.runnable) == 0 && len(q.pending) == 0
}

// Close stops accepting ops and waits for the queued ones to finish. When
// ctx expires first, in-flight attempts are cancelled and the remaining ops
// are dropped.
func (q *SyncQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closing = true
	q.cond.Broadcast()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
	}

	q.cancel()
	<-done

	q.mu.Lock()
	abandoned := 0
	for userID, ops := range q.pending {
		for _, op := range ops {
			q.metrics.IncDropped(op.Kind.String())
		}
		abandoned += len(ops)
		delete(q.pending, userID)
	}
	q.runnable = nil
	q.reportPendingLocked()
	q.mu.Unlock()

	var err error
	err = multierr.Append(err, ctx.Err())
	if abandoned > 0 {
		err = multierr.Append(err, fmt.Errorf("%d cart sync ops abandoned", abandoned))
	}
	return err
}

func (q *SyncQueue) worker() {
	defer q.wg.Done()
	for {
		op, ok := q.next()
		if !ok {
			return
		}
		q.process(op)
		q.finish(op.UserID)
	}
}

func (q *SyncQueue) next() (SyncOp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.runnable) == 0 {
		if q.closing || q.ctx.Err() != nil {
			return SyncOp{}, false
		}
		q.cond.Wait()
	}
	if q.ctx.Err() != nil {
		return SyncOp{}, false
	}

	userID := q.runnable[0]
	q.runnable = q.runnable[1:]
	ops := q.pending[userID]
	op := ops[0]
	if len(ops) == 1 {
		delete(q.pending, userID)
	} else {
		q.pending[userID] = ops[1:]
	}
	q.inFlight[userID] = op
	return op, true
}

func (q *SyncQueue) finish(userID uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.inFlight, userID)
	delete(q.scheduled, userID)
	if len(q.pending[userID]) > 0 {
		q.scheduleLocked(userID)
	}
	q.reportPendingLocked()
}

// scheduleLocked marks userID runnable unless it is already queued or has
// an op in flight.
func (q *SyncQueue) scheduleLocked(userID uuid.UUID) {
	if q.scheduled[userID] {
		return
	}
	if _, busy := q.inFlight[userID]; busy {
		return
	}
	q.scheduled[userID] = true
	q.runnable = append(q.runnable, userID)
	q.cond.Signal()
}

func (q *SyncQueue) superseded(op SyncOp) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, newer := range q.pending[op.UserID] {
		if newer.seq > op.seq && newer.supersedes(op) {
			return true
		}
	}
	return false
}

func (q *SyncQueue) reportPendingLocked() {
	n := len(q.inFlight)
	for _, ops := range q.pending {
		n += len(ops)
	}
	q.metrics.SetPending(n)
}

func (q *SyncQueue) backoff() retry.Backoff {
	b := retry.NewExponential(q.cfg.SyncBaseBackoff)
	b = retry.WithCappedDuration(q.cfg.SyncMaxBackoff, b)
	b = retry.WithJitterPercent(10, b)
	return retry.WithMaxRetries(uint64(q.cfg.SyncMaxAttempts-1), b)
}

func (q *SyncQueue) process(op SyncOp) {
	ctx := q.logg.WithUserID(q.ctx, op.UserID.String())
	ctx = q.logg.WithFields(ctx, map[string]any{
		"sync_op":    op.Kind.String(),
		"product_id": op.productID(),
	})
	kind := op.Kind.String()
	start := time.Now()
	attempts := 0

	err := retry.Do(q.ctx, q.backoff(), func(_ context.Context) error {
		if q.superseded(op) {
			return errSuperseded
		}
		attempts++
		q.metrics.IncAttempt(kind)

		err := q.apply(ctx, op)
		if err == nil {
			return nil
		}
		if pkgerrors.Retryable(err) {
			q.logg.Warn(q.logg.WithFields(ctx, map[string]any{
				"attempt": attempts,
				"error":   err.Error(),
			}), "cart sync attempt failed")
			return retry.RetryableError(err)
		}
		return err
	})

	took := time.Since(start)
	switch {
	case err == nil:
		q.metrics.ObserveOutcome(kind, metrics.SyncOutcomeSucceeded, took)
	case errors.Is(err, errSuperseded):
		q.metrics.ObserveOutcome(kind, metrics.SyncOutcomeSuperseded, took)
		q.logg.Debug(ctx, "cart sync op superseded")
	default:
		q.metrics.ObserveOutcome(kind, metrics.SyncOutcomeFailed, took)
		q.metrics.IncDropped(kind)
		q.logg.Error(q.logg.WithField(ctx, "attempts", attempts), "cart sync op dropped", err)
	}
}

func (q *SyncQueue) apply(ctx context.Context, op SyncOp) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.SyncTimeout)
	defer cancel()

	switch op.Kind {
	case enums.SyncOpUpsert:
		return q.store.Upsert(ctx, models.CartItem{
			UserID:    op.UserID,
			ProductID: op.Line.ProductID,
			Quantity:  op.Line.Quantity,
			Name:      op.Line.Name,
			Price:     op.Line.Price,
			ImageURL:  op.Line.ImageURL,
		})
	case enums.SyncOpDelete:
		return q.store.Delete(ctx, op.UserID, op.Line.ProductID)
	case enums.SyncOpClear:
		return q.store.DeleteByUser(ctx, op.UserID)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown sync op %q", op.Kind))
	}
}

// overlay applies pending ops on top of rows read from the store.
func overlay(items []LineItem, ops []SyncOp) []LineItem {
	for _, op := range ops {
		switch op.Kind {
		case enums.SyncOpClear:
			items = items[:0]
		case enums.SyncOpDelete:
			for i := range items {
				if items[i].ProductID == op.productID() {
					items = append(items[:i], items[i+1:]...)
					break
				}
			}
		case enums.SyncOpUpsert:
			found := false
			for i := range items {
				if items[i].ProductID == op.productID() {
					items[i] = op.Line
					found = true
					break
				}
			}
			if !found {
				items = append(items, op.Line)
			}
		}
	}
	return items
}
