package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

var errNoPublisher = errors.New("publisher not configured")

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLetter
)

// inflight is one claimed row between Publish and its acknowledgement.
// err is set when the row never reached Pub/Sub.
type inflight struct {
	event  models.OutboxEvent
	fields map[string]any
	result publishResult
	reason enums.OutboxDLQErrorReason
	err    error
}

func (i *inflight) fail(reason enums.OutboxDLQErrorReason, err error) {
	i.reason = reason
	i.err = err
}

type batchStats struct {
	published    int
	retried      int
	deadLettered int
}

// processBatch reports whether any rows were claimed. The returned error is a
// bookkeeping failure; publish failures are recorded on the rows themselves.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var (
		stats     batchStats
		processed bool
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return fmt.Errorf("claim outbox batch: %w", err)
		}
		if len(events) == 0 {
			return nil
		}
		processed = true

		publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()
		batch := make([]*inflight, len(events))
		for i, event := range events {
			batch[i] = s.submit(publishCtx, event)
		}
		for _, item := range batch {
			if err := s.settle(publishCtx, tx, item, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	if processed && err == nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"published":     stats.published,
			"retried":       stats.retried,
			"dead_lettered": stats.deadLettered,
		}), "outbox.batch.complete")
	}
	return processed, err
}

// submit resolves the row and hands it to the topic publisher without waiting.
func (s *Service) submit(ctx context.Context, event models.OutboxEvent) *inflight {
	item := &inflight{event: event}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		item.fields = eventFields(event, outbox.PayloadEnvelope{}, "")
		item.fail(enums.OutboxDLQReasonUndecodable, err)
		return item
	}
	topic := resolved.Descriptor.Topic
	item.fields = eventFields(event, resolved.Envelope, topic)

	pub := s.publisherFactory(topic)
	if pub == nil {
		item.fail(enums.OutboxDLQReasonUnroutable, fmt.Errorf("topic %s: %w", topic, errNoPublisher))
		return item
	}
	if item.result = pub.Publish(ctx, buildMessage(event, resolved.Envelope)); item.result == nil {
		item.fail(enums.OutboxDLQReasonNonRetryable, fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	return item
}

func (s *Service) classify(ctx context.Context, item *inflight) (outcome, enums.OutboxDLQErrorReason, error) {
	if item.err != nil {
		return outcomeDeadLetter, item.reason, item.err
	}
	_, err := item.result.Get(ctx)
	if err == nil {
		return outcomePublished, "", nil
	}
	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return outcomeDeadLetter, enums.OutboxDLQReasonNonRetryable, err
	}
	if item.event.AttemptCount+1 >= s.maxAttempts {
		return outcomeDeadLetter, enums.OutboxDLQReasonMaxAttempts, fmt.Errorf("max publish attempts reached: %w", err)
	}
	return outcomeRetry, "", err
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, item *inflight, stats *batchStats) error {
	event := item.event
	result, reason, err := s.classify(ctx, item)
	switch result {
	case outcomePublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		stats.published++
		s.metrics.Inc(string(event.EventType), metrics.OutboxPublished)
		s.logg.Info(s.logg.WithFields(ctx, item.fields), "outbox.event.published")
		return nil
	case outcomeRetry:
		item.fields["attempt_count"] = event.AttemptCount + 1
		if err := s.repo.MarkFailedTx(tx, event.ID, err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
		stats.retried++
		s.metrics.Inc(string(event.EventType), metrics.OutboxRetry)
		s.logg.Warn(s.logg.WithFields(ctx, withError(item.fields, err)), "outbox.event.retry")
		return nil
	}
	stats.deadLettered++
	return s.deadLetter(ctx, tx, item, reason, err)
}

// deadLetter copies the row into outbox_dlq and closes it out so it is never claimed again.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, item *inflight, reason enums.OutboxDLQErrorReason, cause error) error {
	event := item.event
	item.fields["error_reason"] = reason
	s.logg.Warn(s.logg.WithFields(ctx, withError(item.fields, cause)), "outbox.event.dead_lettered")
	s.metrics.Inc(string(event.EventType), metrics.OutboxDeadLettered)

	if err := s.dlq.InsertTx(tx, event.Parked(reason, cause, s.now())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func withError(fields map[string]any, err error) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = err.Error()
	return out
}

// buildMessage keys messages by aggregate so one order's events stay in order.
func buildMessage(event models.OutboxEvent, envelope outbox.PayloadEnvelope) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"source":         messageSource,
			"event_id":       envelope.EventID,
			"event_type":     string(event.EventType),
			"event_version":  strconv.Itoa(envelope.Version),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func eventFields(event models.OutboxEvent, envelope outbox.PayloadEnvelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return orderedResult{res: p.pub.Publish(ctx, msg), pub: p.pub, key: msg.OrderingKey}
}

// orderedResult unpauses the ordering key after a failed publish so the
// retry on the next poll is not rejected outright.
type orderedResult struct {
	res *gcppubsub.PublishResult
	pub *gcppubsub.Publisher
	key string
}

func (r orderedResult) Get(ctx context.Context) (string, error) {
	id, err := r.res.Get(ctx)
	if err != nil && r.key != "" {
		r.pub.ResumePublish(r.key)
	}
	return id, err
}
