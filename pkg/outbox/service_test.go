package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type captureInserter struct {
	rows []models.OutboxEvent
	err  error
}

func (c *captureInserter) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if c.err != nil {
		return c.err
	}
	c.rows = append(c.rows, event)
	return nil
}

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	repo := &captureInserter{}
	svc := &Service{repo: repo}
	userID := uuid.New()
	orderID := uuid.New()

	err := svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Actor:         &ActorRef{UserID: userID, Source: "webhook"},
		Data:          map[string]string{"public_id": "abc"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(repo.rows))
	}
	row := repo.rows[0]
	if row.AggregateID != orderID || row.EventType != enums.EventOrderPaid {
		t.Fatalf("unexpected row %+v", row)
	}

	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Version != currentVersion {
		t.Fatalf("expected default version, got %d", envelope.Version)
	}
	if envelope.EventID != row.ID.String() || envelope.OccurredAt.IsZero() {
		t.Fatalf("envelope metadata does not match row: %+v", envelope)
	}
	if envelope.Actor == nil || envelope.Actor.UserID != userID {
		t.Fatalf("actor not carried: %+v", envelope.Actor)
	}
	if string(envelope.Data) != `{"public_id":"abc"}` {
		t.Fatalf("unexpected data %s", envelope.Data)
	}
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := &Service{repo: &captureInserter{}}
	if err := svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderCreated}); err == nil {
		t.Fatal("expected error without transaction")
	}
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	svc := &Service{repo: &captureInserter{}}
	err := svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{EventType: "order_exploded"})
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestEmitPropagatesInsertError(t *testing.T) {
	boom := errors.New("insert failed")
	svc := &Service{repo: &captureInserter{err: boom}}
	err := svc.Emit(context.Background(), &gorm.DB{}, DomainEvent{
		EventType:     enums.EventReviewCreated,
		AggregateType: enums.AggregateProduct,
		AggregateID:   uuid.New(),
		Data:          struct{}{},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected insert error, got %v", err)
	}
}

func TestEmitRejectsMissingAggregate(t *testing.T) {
	svc := &Service{repo: &captureInserter{}}
	cases := []DomainEvent{
		{EventType: enums.EventOrderPaid, AggregateType: "cart", AggregateID: uuid.New(), Data: struct{}{}},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, Data: struct{}{}},
		{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New()},
	}
	for _, event := range cases {
		if err := svc.Emit(context.Background(), &gorm.DB{}, event); err == nil {
			t.Fatalf("expected rejection for %+v", event)
		}
	}
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"e1","data":{"rating":5}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var data struct {
		Rating int `json:"rating"`
	}
	if err := env.DecodeData(&data); err != nil || data.Rating != 5 {
		t.Fatalf("decode data: %v %+v", err, data)
	}

	if _, err := DecodeEnvelope([]byte(`{"version":1,"data":null}`)); err == nil {
		t.Fatal("expected null data to be rejected")
	}
	if _, err := DecodeEnvelope([]byte(`not json`)); err == nil {
		t.Fatal("expected malformed payload to be rejected")
	}
}
