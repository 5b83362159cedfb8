package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/config"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/metrics"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
	purgeInterval         = time.Hour
	purgeBatchLimit       = 1000
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// nonRetryableError marks a publish failure that will not succeed on retry.
type nonRetryableError struct {
	err error
}

func (e nonRetryableError) Error() string { return e.err.Error() }
func (e nonRetryableError) Unwrap() error { return e.err }

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	PubSub     pinger
	Repository outboxRepository
	Publisher  publisher
	Metrics    *metrics.OutboxMetrics
}

// Service drains outbox_events to the orders topic.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	pubsub       pinger
	repo         outboxRepository
	publisher    publisher
	metrics      *metrics.OutboxMetrics
	topic        string
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	retention    time.Duration
	lastPurge    time.Time
	now          func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	for name, missing := range map[string]bool{
		"config":            params.Config == nil,
		"logger":            params.Logger == nil,
		"database client":   params.DB == nil,
		"pubsub client":     params.PubSub == nil,
		"outbox repository": params.Repository == nil,
		"publisher":         params.Publisher == nil,
	} {
		if missing {
			return nil, fmt.Errorf("%s is required", name)
		}
	}

	oc := params.Config.Outbox
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		repo:         params.Repository,
		publisher:    params.Publisher,
		metrics:      params.Metrics,
		topic:        params.Config.PubSub.OrdersTopic,
		batchSize:    positiveOr(oc.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(oc.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(oc.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		retention:    time.Duration(oc.RetentionHours) * time.Hour,
		now:          time.Now,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	return multierr.Combine(
		pingDependency(ctx, s.logg, "database", s.db.Ping),
		pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping),
	)
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run drains the outbox until ctx ends. A busy outbox is drained back to
// back; an idle one is polled every pollInterval, and batch errors back off
// exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	delay := s.pollInterval
	for ctx.Err() == nil {
		settled, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			delay = nextBackoff(delay, s.pollInterval, maxBackoff)
		case settled > 0:
			delay = s.pollInterval
			continue
		default:
			delay = s.pollInterval
			if _, err := s.purgePublished(ctx); err != nil {
				s.logg.Error(ctx, "outbox purge failed", err)
			}
		}
		if err := s.sleep(ctx, withJitter(delay)); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "outbox publisher context canceled")
	return ctx.Err()
}

// outcome is what happened to one row during a batch.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeTerminal
)

// processBatch publishes one batch inside a transaction and reports how many
// rows left the pending set. Publish failures are recorded per row and
// reported together; only bookkeeping failures abort the batch.
func (s *Service) processBatch(ctx context.Context) (int, error) {
	started := time.Now()
	var (
		processed, settled int
		publishErrs        error
	)

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events)

		for _, event := range events {
			result, publishErr, err := s.handleEvent(ctx, tx, event)
			if err != nil {
				return err
			}
			if publishErr != nil {
				publishErrs = multierr.Append(publishErrs, fmt.Errorf("event %s: %w", event.ID, publishErr))
			}
			if result != outcomeRetry {
				settled++
			}
		}
		return nil
	})

	if processed > 0 {
		s.metrics.ObserveBatch(time.Since(started))
	}
	if err == nil && publishErrs != nil {
		batchCtx := s.logg.WithFields(ctx, map[string]any{
			"failed": len(multierr.Errors(publishErrs)),
			"batch":  processed,
			"error":  publishErrs.Error(),
		})
		s.logg.Warn(batchCtx, "outbox batch finished with failures")
	}
	return settled, err
}

// handleEvent publishes one row and records the result on it. The second
// return is the publish failure, if any; the third aborts the batch.
func (s *Service) handleEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error, error) {
	envelope, err := decodeEnvelope(event)
	if err != nil {
		return outcomeTerminal, err, s.markTerminal(ctx, tx, event, err, s.eventFields(event, envelope))
	}

	fields := s.eventFields(event, envelope)
	pubErr := s.publish(ctx, event, envelope)
	if pubErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, nil, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return outcomePublished, nil, nil
	}

	s.metrics.IncFailed(string(event.EventType))
	var nonRetry nonRetryableError
	if errors.As(pubErr, &nonRetry) {
		return outcomeTerminal, pubErr, s.markTerminal(ctx, tx, event, pubErr, fields)
	}

	attempt := event.AttemptCount + 1
	fields["attempt_count"] = attempt
	if attempt >= s.maxAttempts {
		fields["terminal_reason"] = "max_attempts"
		exhausted := fmt.Errorf("max publish attempts reached: %w", pubErr)
		return outcomeTerminal, pubErr, s.markTerminal(ctx, tx, event, exhausted, fields)
	}

	fields["error"] = pubErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return outcomeRetry, pubErr, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetry, pubErr, nil
}

// purgePublished deletes published rows older than the retention window. It
// runs at most once per purgeInterval and only while the outbox is idle.
func (s *Service) purgePublished(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	now := s.now()
	if !s.lastPurge.IsZero() && now.Sub(s.lastPurge) < purgeInterval {
		return 0, nil
	}
	s.lastPurge = now

	var deleted int64
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.DeletePublishedBefore(tx, now.Add(-s.retention), purgeBatchLimit)
		deleted = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge published outbox rows: %w", err)
	}
	if deleted > 0 {
		s.logg.Info(s.logg.WithField(ctx, "deleted", deleted), "outbox published rows purged")
	}
	return deleted, nil
}

func decodeEnvelope(event models.OutboxEvent) (outbox.PayloadEnvelope, error) {
	var envelope outbox.PayloadEnvelope
	if !event.EventType.IsValid() {
		return envelope, nonRetryableError{err: fmt.Errorf("unknown event type %q", event.EventType)}
	}
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return envelope, nonRetryableError{err: err}
	}
	return envelope, nil
}

func (s *Service) markTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, cause error, fields map[string]any) error {
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, envelope outbox.PayloadEnvelope) error {
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	result := s.publisher.Publish(publishCtx, &gcppubsub.Message{
		Data:       event.Payload,
		Attributes: messageAttributes(event, envelope),
	})
	if result == nil {
		return nonRetryableError{err: fmt.Errorf("publisher returned nil for topic %s", s.topic)}
	}
	_, err := result.Get(publishCtx)
	return classifyPublishError(err)
}

// messageAttributes lets subscribers filter and dedupe without decoding the body.
func messageAttributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]string {
	return map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// classifyPublishError marks errors that retrying cannot fix.
func classifyPublishError(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition:
		return nonRetryableError{err: err}
	}
	return err
}

func (s *Service) eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]any {
	fields := map[string]any{
		"outbox_id":     event.ID.String(),
		"event_type":    event.EventType,
		"order_id":      event.AggregateID.String(),
		"attempt_count": event.AttemptCount,
		"topic":         s.topic,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["envelope_version"] = envelope.Version
	}
	if event.LastError != nil {
		fields["previous_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// nextBackoff doubles current, starting from base, and never exceeds ceiling.
func nextBackoff(current, base, ceiling time.Duration) time.Duration {
	if current < base {
		current = base
	}
	return min(current*2, ceiling)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
