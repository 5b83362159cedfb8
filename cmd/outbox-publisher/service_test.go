package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/config"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/db/models"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/enums"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/logger"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/metrics"
	"github.com/Nikul30701/E-Commerce-Plateform/pkg/outbox"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			orderEvent(t, enums.EventOrderPlaced, "event-one", 0),
			orderEvent(t, enums.EventOrderPlaced, "event-two", 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, nil, nil)

	settled, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if settled != 1 {
		t.Fatalf("expected one settled row, got %d", settled)
	}
	if len(repo.failed) != 1 || repo.failed[0] != repo.events[0].ID {
		t.Fatalf("unexpected failed rows %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != repo.events[1].ID {
		t.Fatalf("unexpected published rows %v", repo.published)
	}
	if len(repo.terminal) != 0 {
		t.Fatalf("transient failure must stay retryable")
	}
}

func TestServicePublishesEnvelopeAttributes(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCancelled, "evt-cancel", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Attributes["event_id"] != "evt-cancel" {
		t.Fatalf("unexpected event_id attribute %q", msg.Attributes["event_id"])
	}
	if msg.Attributes["event_type"] != string(enums.EventOrderCancelled) {
		t.Fatalf("unexpected event_type attribute %q", msg.Attributes["event_type"])
	}
	if msg.Attributes["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id attribute")
	}
	if string(msg.Data) != string(event.Payload) {
		t.Fatalf("payload must be forwarded unchanged")
	}
}

func TestServiceMalformedEnvelopeIsTerminal(t *testing.T) {
	event := orderEvent(t, enums.EventOrderPlaced, "unused", 0)
	event.Payload = json.RawMessage(`not json`)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	service := newTestService(t, repo, pub, nil, nil)

	settled, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if settled != 1 {
		t.Fatalf("terminal rows count as settled, got %d", settled)
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected terminal mark, got %v", repo.terminal)
	}
	if len(pub.messages) != 0 {
		t.Fatalf("malformed event must not be published")
	}
}

func TestServiceNonRetryableStatusIsTerminal(t *testing.T) {
	event := orderEvent(t, enums.EventOrderStatusChanged, "evt-status", 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: status.Error(codes.NotFound, "topic deleted")},
		},
	}
	service := newTestService(t, repo, pub, nil, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected terminal mark for NotFound, got %v", repo.terminal)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("non-retryable error must not be counted as a retry")
	}
}

func TestServiceMaxAttemptsIsTerminal(t *testing.T) {
	event := orderEvent(t, enums.EventOrderPlaced, "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
		},
	}
	service := newTestService(t, repo, pub, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 1 || repo.terminalAttempts != 2 {
		t.Fatalf("expected terminal mark with attempts 2, got %v (%d)", repo.terminal, repo.terminalAttempts)
	}
}

func TestServiceBookkeepingFailureAbortsBatch(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{orderEvent(t, enums.EventOrderPlaced, "evt", 0)},
		publishErr: errors.New("db gone"),
	}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatalf("expected mark published failure to surface")
	}
}

func TestServiceRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewOutboxMetrics(reg)
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			orderEvent(t, enums.EventOrderPlaced, "ok", 0),
			orderEvent(t, enums.EventOrderPlaced, "bad", 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{},
			fakePublishResult{err: errors.New("transient")},
		},
	}
	service := newTestService(t, repo, pub, nil, m)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}

	published, err := testutil.GatherAndCount(reg, "ecom_outbox_published_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected one published series, got %d", published)
	}
	failed, err := testutil.GatherAndCount(reg, "ecom_outbox_failed_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected one failed series, got %d", failed)
	}
}

func TestEnsureReadinessCombinesFailures(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, nil, nil)
	service.db = &fakeDB{pingErr: errors.New("db down")}
	service.pubsub = &fakePubSubClient{err: errors.New("pubsub down")}

	err := service.ensureReadiness(context.Background())
	if err == nil {
		t.Fatalf("expected readiness error")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected both failures reported, got %d", got)
	}
}

func TestPurgePublishedRespectsRetentionAndInterval(t *testing.T) {
	repo := &fakeRepo{purgeCount: 3}
	service := newTestService(t, repo, &fakePublisher{}, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    5,
		RetentionHours: 24,
	}, nil)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	deleted, err := service.purgePublished(context.Background())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted rows, got %d", deleted)
	}
	if want := now.Add(-24 * time.Hour); !repo.purgeCutoff.Equal(want) {
		t.Fatalf("unexpected cutoff %v, want %v", repo.purgeCutoff, want)
	}
	if repo.purgeLimit != purgeBatchLimit {
		t.Fatalf("unexpected purge limit %d", repo.purgeLimit)
	}

	now = now.Add(10 * time.Minute)
	if _, err := service.purgePublished(context.Background()); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if repo.purgeCalls != 1 {
		t.Fatalf("purge must wait for the interval, got %d calls", repo.purgeCalls)
	}

	now = now.Add(purgeInterval)
	if _, err := service.purgePublished(context.Background()); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if repo.purgeCalls != 2 {
		t.Fatalf("expected second purge after interval, got %d calls", repo.purgeCalls)
	}
}

func TestPurgePublishedDisabledWithoutRetention(t *testing.T) {
	repo := &fakeRepo{}
	service := newTestService(t, repo, &fakePublisher{}, nil, nil)

	if _, err := service.purgePublished(context.Background()); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if repo.purgeCalls != 0 {
		t.Fatalf("purge must be skipped when retention is zero")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 100 * time.Millisecond
	if got := nextBackoff(0, base, time.Second); got != 200*time.Millisecond {
		t.Fatalf("unexpected first backoff %v", got)
	}
	if got := nextBackoff(800*time.Millisecond, base, time.Second); got != time.Second {
		t.Fatalf("expected cap at 1s, got %v", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, outboxCfgOverride *config.OutboxConfig, m *metrics.OutboxMetrics) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
		PubSub: config.PubSubConfig{OrdersTopic: "orders-topic"},
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakeDB{},
		PubSub:     &fakePubSubClient{},
		Repository: repo,
		Publisher:  pub,
		Metrics:    m,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func orderEvent(tb testing.TB, eventType enums.OutboxEventType, eventID string, attempts int) models.OutboxEvent {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

type fakeRepo struct {
	events           []models.OutboxEvent
	published        []uuid.UUID
	failed           []uuid.UUID
	terminal         []uuid.UUID
	terminalAttempts int
	publishErr       error
	purgeCount       int64
	purgeCalls       int
	purgeCutoff      time.Time
	purgeLimit       int
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	f.terminalAttempts = terminalAttempts
	return nil
}

func (f *fakeRepo) DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	f.purgeCalls++
	f.purgeCutoff = cutoff
	f.purgeLimit = limit
	return f.purgeCount, nil
}

type fakeDB struct {
	pingErr error
}

func (f *fakeDB) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct {
	err error
}

func (f *fakePubSubClient) Ping(context.Context) error {
	return f.err
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}
