package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/substractum/storefront/pkg/config"
	"github.com/substractum/storefront/pkg/db/models"
	"github.com/substractum/storefront/pkg/enums"
	"github.com/substractum/storefront/pkg/logger"
	"github.com/substractum/storefront/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxIdleBackoff        = 10 * time.Second
	pollJitter            = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type relayMetrics interface {
	ObserveBatch(time.Duration)
	IncPublished(eventType string)
	IncFailed(eventType string)
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// RelayParams wires the relay's collaborators. PublisherFor and Metrics are
// optional.
type RelayParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           dbClient
	PubSub       pubSubClient
	Store        outboxStore
	Registry     eventResolver
	PublisherFor func(topic string) topicPublisher
	Metrics      relayMetrics
}

// Relay drains staged order and prescription events from the outbox table
// into their Pub/Sub topics.
type Relay struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pubSubClient
	store        outboxStore
	registry     eventResolver
	publisherFor func(topic string) topicPublisher
	metrics      relayMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

// settlement is what a single event's publish attempt decided for its row.
type settlement int

const (
	settlePublished settlement = iota
	settleRetry
	settleTerminal
)

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Store == nil:
		return nil, errors.New("outbox store is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	outboxCfg := params.Config.Outbox
	r := &Relay{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		store:        params.Store,
		registry:     params.Registry,
		publisherFor: params.PublisherFor,
		metrics:      params.Metrics,
		batchSize:    positiveOr(outboxCfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(outboxCfg.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(outboxCfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}
	if r.publisherFor == nil {
		r.publisherFor = r.gcpPublisherFor
	}
	return r, nil
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

// Run checks the database and Pub/Sub, then drains the outbox until ctx ends.
// A full batch is followed immediately by the next one. An empty batch waits
// one poll interval. A failing batch backs off exponentially up to
// maxIdleBackoff.
func (r *Relay) Run(ctx context.Context) error {
	deps := []struct {
		name string
		ping func(context.Context) error
	}{{"database", r.db.Ping}, {"pubsub", r.pubsub.Ping}}
	for _, dep := range deps {
		if err := dep.ping(ctx); err != nil {
			r.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}

	idle := r.idleBackoff()
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay context canceled")
			return err
		}

		drained, err := r.drain(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch error", err)
			wait, _ = idle.Next()
		case drained:
			idle = r.idleBackoff()
			continue
		default:
			idle = r.idleBackoff()
			wait = r.pollInterval
		}
		if err := waitFor(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *Relay) idleBackoff() retry.Backoff {
	b := retry.NewExponential(r.pollInterval)
	b = retry.WithCappedDuration(maxIdleBackoff, b)
	return retry.WithJitter(pollJitter, b)
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drain locks one batch of publishable rows and settles each of them inside
// the same transaction. It reports whether any row was claimed.
func (r *Relay) drain(ctx context.Context) (bool, error) {
	claimed := 0
	started := time.Now()
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		claimed = len(rows)
		for _, row := range rows {
			if err := r.relayOne(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if claimed > 0 && r.metrics != nil {
		r.metrics.ObserveBatch(time.Since(started))
	}
	return claimed > 0, err
}

// relayOne publishes a single row and records the outcome. Only bookkeeping
// failures are returned; publish failures are settled on the row.
func (r *Relay) relayOne(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) error {
	fields := rowFields(row)
	resolved, err := r.registry.Resolve(row)
	if err == nil {
		fields["event_id"] = resolved.Envelope.EventID
		fields["topic"] = resolved.Descriptor.Topic
		err = r.publish(ctx, row, resolved)
	}

	outcome := r.classify(row, err)
	ctx = r.logg.WithFields(ctx, fields)
	switch outcome {
	case settlePublished:
		if markErr := r.store.MarkPublishedTx(tx, row.ID); markErr != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, markErr)
		}
		if r.metrics != nil {
			r.metrics.IncPublished(string(row.EventType))
		}
		r.logg.Info(ctx, "outbox event relayed")
		return nil
	case settleRetry:
		r.countFailure(row)
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"attempt_count": row.AttemptCount + 1,
			"error":         err.Error(),
		}), "outbox relay failed, will retry")
		if markErr := r.store.MarkFailedTx(tx, row.ID, err); markErr != nil {
			return fmt.Errorf("mark failure %s: %w", row.ID, markErr)
		}
		return nil
	default:
		if !isNonRetryable(err) {
			err = fmt.Errorf("max publish attempts reached: %w", err)
		}
		r.countFailure(row)
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "outbox event parked")
		// Parked rows stay unpublished so an operator can inspect and replay them.
		if markErr := r.store.MarkTerminalTx(tx, row.ID, err, r.maxAttempts); markErr != nil {
			return fmt.Errorf("mark terminal %s: %w", row.ID, markErr)
		}
		return nil
	}
}

func (r *Relay) classify(row models.OutboxEvent, err error) settlement {
	switch {
	case err == nil:
		return settlePublished
	case isNonRetryable(err), row.AttemptCount+1 >= r.maxAttempts:
		return settleTerminal
	default:
		return settleRetry
	}
}

func isNonRetryable(err error) bool {
	var nonRetry registry.NonRetryableError
	return errors.As(err, &nonRetry)
}

func (r *Relay) countFailure(row models.OutboxEvent) {
	if r.metrics != nil {
		r.metrics.IncFailed(string(row.EventType))
	}
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := r.publisherFor(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:       row.Payload,
		Attributes: messageAttributes(row, resolved),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// messageAttributes lets subscribers filter without decoding the envelope.
// Order events carry order_id and prescription events carry request_id.
func messageAttributes(row models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]string {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		"source":         "substractum-storefront",
	}
	switch row.AggregateType {
	case enums.AggregateOrder:
		attrs["order_id"] = row.AggregateID.String()
	case enums.AggregatePrescriptionRequest:
		attrs["request_id"] = row.AggregateID.String()
	}
	return attrs
}

func rowFields(row models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}
