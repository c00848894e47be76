// Package registry routes outbox rows to Pub/Sub topics and decodes their
// typed payloads.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

var (
	ErrUnknownEvent      = errors.New("unsupported event type")
	ErrAggregateMismatch = errors.New("aggregate type does not match event")
	ErrMissingAggregate  = errors.New("missing aggregate_id")
)

// EventDescriptor is the routing entry for one event type.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a failure that will not improve on retry.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

// payloadValidator is implemented by payloads with required fields.
type payloadValidator interface {
	Validate() error
}

func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

// EventRegistry is the fixed event type to topic table.
type EventRegistry struct {
	routes map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry sends order events to the orders topic and review events to
// the reviews topic, falling back to the orders topic when none is set.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	orders := cfg.OrdersTopic
	if orders == "" {
		return nil, errors.New("orders topic is required")
	}
	reviews := cfg.ReviewsTopic
	if reviews == "" {
		reviews = orders
	}
	table := []EventDescriptor{
		route[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder, orders),
		route[payloads.OrderPaidEvent](enums.EventOrderPaid, enums.AggregateOrder, orders),
		route[payloads.CouponAppliedEvent](enums.EventCouponApplied, enums.AggregateOrder, orders),
		route[payloads.ReviewCreatedEvent](enums.EventReviewCreated, enums.AggregateProduct, reviews),
	}
	r := &EventRegistry{routes: make(map[enums.OutboxEventType]EventDescriptor, len(table))}
	for _, d := range table {
		r.routes[d.EventType] = d
	}
	return r, nil
}

// Topics lists the distinct destination topics, sorted.
func (r *EventRegistry) Topics() []string {
	set := map[string]struct{}{}
	for _, d := range r.routes {
		set[d.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(set))
	for t := range set {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its route and decodes the payload. Every
// failure is non-retryable: the row will not decode any better next time.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.lookup(event)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s payload: %w", event.EventType, err))
	}
	payload := desc.PayloadFactory()
	if err := envelope.DecodeData(payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	if v, ok := payload.(payloadValidator); ok {
		if err := v.Validate(); err != nil {
			return nil, NewNonRetryableError(fmt.Errorf("%s payload: %w", event.EventType, err))
		}
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func (r *EventRegistry) lookup(event models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.routes[event.EventType]
	switch {
	case !ok:
		return EventDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownEvent, event.EventType)
	case desc.AggregateType != event.AggregateType:
		return EventDescriptor{}, fmt.Errorf("%w: %s wants %s, row has %s", ErrAggregateMismatch, event.EventType, desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return EventDescriptor{}, ErrMissingAggregate
	}
	return desc, nil
}
