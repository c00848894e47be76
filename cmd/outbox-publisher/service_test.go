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
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

type harness struct {
	repo    *fakeRepo
	dlq     *fakeDLQRepo
	pub     *fakePublisher
	reg     *fakeRegistry
	service *Service
}

func newHarness(t *testing.T, maxAttempts int, events ...models.OutboxEvent) *harness {
	t.Helper()
	h := &harness{
		repo: &fakeRepo{events: events},
		dlq:  &fakeDLQRepo{},
		pub:  &fakePublisher{},
		reg:  &fakeRegistry{topic: "orders-topic"},
	}
	service, err := NewService(ServiceParams{
		Config: &config.Config{Outbox: config.OutboxConfig{
			BatchSize:      len(events) + 1,
			PollIntervalMS: 100,
			MaxAttempts:    maxAttempts,
		}},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               fakeDB{},
		PubSub:           fakePubSubClient{},
		Repository:       h.repo,
		Registry:         h.reg,
		PublisherFactory: func(string) publisher { return h.pub },
		DLQRepository:    h.dlq,
	})
	require.NoError(t, err)
	h.service = service
	return h
}

func orderEvent(t *testing.T, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func TestProcessBatchPublishesWholeBatchBeforeSettling(t *testing.T) {
	first := orderEvent(t, enums.EventOrderCreated, 0)
	second := orderEvent(t, enums.EventOrderPaid, 0)
	h := newHarness(t, 5, first, second)
	h.pub.results = []fakePublishResult{{err: errors.New("transient")}, {}}

	processed, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	require.Len(t, h.pub.sent, 2)
	require.Equal(t, 2, h.pub.sentBeforeFirstGet, "both rows go out before any ack is awaited")
	require.Equal(t, []uuid.UUID{first.ID}, h.repo.failed)
	require.Equal(t, []uuid.UUID{second.ID}, h.repo.published)
	require.Empty(t, h.dlq.entries)
}

func TestProcessBatchMessageCarriesAttributesAndOrderingKey(t *testing.T) {
	event := orderEvent(t, enums.EventOrderCreated, 0)
	h := newHarness(t, 5, event)
	h.pub.results = []fakePublishResult{{}}
	reg := prometheus.NewRegistry()
	h.service.metrics = metrics.NewOutboxMetrics(reg)

	_, err := h.service.processBatch(context.Background())
	require.NoError(t, err)

	msg := h.pub.sent[0]
	require.Equal(t, event.AggregateID.String(), msg.OrderingKey)
	require.Equal(t, messageSource, msg.Attributes["source"])
	require.Equal(t, event.ID.String(), msg.Attributes["event_id"])
	require.Equal(t, "1", msg.Attributes["event_version"])
	require.Equal(t, string(enums.AggregateOrder), msg.Attributes["aggregate_type"])

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	require.Equal(t, "outbox_events_total", mfs[0].GetName())
	require.Equal(t, float64(1), mfs[0].GetMetric()[0].GetCounter().GetValue())
}

func TestProcessBatchDeadLetterReasons(t *testing.T) {
	cases := []struct {
		name     string
		attempts int
		setup    func(h *harness)
		reason   enums.OutboxDLQErrorReason
	}{
		{
			name:   "undecodable row",
			setup:  func(h *harness) { h.reg.err = registry.NewNonRetryableError(errors.New("bad payload")) },
			reason: enums.OutboxDLQReasonUndecodable,
		},
		{
			name:   "no publisher for topic",
			setup:  func(h *harness) { h.service.publisherFactory = func(string) publisher { return nil } },
			reason: enums.OutboxDLQReasonUnroutable,
		},
		{
			name: "publisher rejects permanently",
			setup: func(h *harness) {
				h.pub.results = []fakePublishResult{{err: registry.NewNonRetryableError(errors.New("too large"))}}
			},
			reason: enums.OutboxDLQReasonNonRetryable,
		},
		{
			name:     "attempts exhausted",
			attempts: 1,
			setup:    func(h *harness) { h.pub.results = []fakePublishResult{{err: errors.New("transient")}} },
			reason:   enums.OutboxDLQReasonMaxAttempts,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := orderEvent(t, enums.EventOrderCreated, tc.attempts)
			h := newHarness(t, 2, event)
			tc.setup(h)

			processed, err := h.service.processBatch(context.Background())
			require.NoError(t, err)
			require.True(t, processed)

			require.Len(t, h.dlq.entries, 1)
			entry := h.dlq.entries[0]
			require.Equal(t, tc.reason, entry.ErrorReason)
			require.Equal(t, event.ID, entry.EventID)
			require.JSONEq(t, string(event.Payload), string(entry.Payload))
			require.NotNil(t, entry.ErrorMessage)
			require.Equal(t, []uuid.UUID{event.ID}, h.repo.terminal)
			require.Empty(t, h.repo.published)
		})
	}
}

func TestProcessBatchStopsOnBookkeepingFailure(t *testing.T) {
	h := newHarness(t, 5, orderEvent(t, enums.EventOrderCreated, 0))
	h.pub.results = []fakePublishResult{{}}
	h.repo.markErr = errors.New("connection reset")

	_, err := h.service.processBatch(context.Background())
	require.ErrorIs(t, err, h.repo.markErr)
}

func TestProcessBatchEmpty(t *testing.T) {
	h := newHarness(t, 5)
	processed, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
	require.Empty(t, h.pub.sent)
}

func TestPacerBacksOffAndResets(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, 2*base, nextBackoff(base, base, time.Second))
	require.Equal(t, 2*base, nextBackoff(0, base, time.Second))
	require.Equal(t, time.Second, nextBackoff(800*time.Millisecond, base, time.Second))

	p := pacer{base: base, max: time.Second}
	for range 5 {
		p.failed()
	}
	require.Equal(t, time.Second, p.current)
	wait := p.idle()
	require.Equal(t, base, p.current)
	require.GreaterOrEqual(t, wait, base)
	require.Less(t, wait, base+jitterWindow)
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, h.service.Run(ctx), context.Canceled)
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

// fakePublisher hands out results in order and records how many messages
// were sent before the first Get.
type fakePublisher struct {
	results            []fakePublishResult
	sent               []*gcppubsub.Message
	sentBeforeFirstGet int
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	res := fakePublishResult{}
	if len(f.results) > 0 {
		res, f.results = f.results[0], f.results[1:]
	}
	res.owner = f
	return res
}

type fakePublishResult struct {
	err   error
	owner *fakePublisher
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.owner != nil && f.owner.sentBeforeFirstGet == 0 {
		f.owner.sentBeforeFirstGet = len(f.owner.sent)
	}
	return "msg-id", f.err
}

// fakeRegistry resolves every row to topic unless err is set.
type fakeRegistry struct {
	topic string
	err   error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, registry.NewNonRetryableError(err)
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     event.EventType,
			AggregateType: event.AggregateType,
			Topic:         f.topic,
		},
		Envelope: envelope,
	}, nil
}
