package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func seedEvent(t *testing.T, db *gorm.DB, createdAt time.Time, attempts int, published bool) models.OutboxEvent {
	t.Helper()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
		CreatedAt:     createdAt,
		AttemptCount:  attempts,
	}
	if published {
		now := createdAt.Add(time.Second)
		event.PublishedAt = &now
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

func TestFetchUnpublishedForPublishSkipsExhaustedRows(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	base := time.Now().UTC().Add(-time.Hour)

	first := seedEvent(t, db, base, 0, false)
	second := seedEvent(t, db, base.Add(time.Minute), 2, false)
	seedEvent(t, db, base.Add(2*time.Minute), 10, false)
	seedEvent(t, db, base.Add(3*time.Minute), 0, true)

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)
}

func TestMarkFailedAndPublished(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	event := seedEvent(t, db, time.Now().UTC(), 0, false)

	require.NoError(t, repo.MarkFailedTx(db, event.ID, errors.New("publish timeout")))

	var reloaded models.OutboxEvent
	require.NoError(t, db.First(&reloaded, "id = ?", event.ID).Error)
	assert.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
	assert.Equal(t, "publish timeout", *reloaded.LastError)

	require.NoError(t, repo.MarkPublishedTx(db, event.ID))
	require.NoError(t, db.First(&reloaded, "id = ?", event.ID).Error)
	assert.NotNil(t, reloaded.PublishedAt)
	assert.Nil(t, reloaded.LastError)
}

func TestMarkTerminalParksRow(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	event := seedEvent(t, db, time.Now().UTC(), 1, false)

	require.NoError(t, repo.MarkTerminalTx(db, event.ID, errors.New("bad payload"), 10))

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeletePublishedBefore(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)

	seedEvent(t, db, old, 0, true)
	seedEvent(t, db, old, 10, false)
	pending := seedEvent(t, db, old, 1, false)
	recent := seedEvent(t, db, time.Now().UTC(), 0, true)

	deleted, err := repo.DeletePublishedBefore(context.Background(), db, time.Now().UTC().Add(-30*24*time.Hour), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, db.Order("created_at ASC").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, pending.ID, remaining[0].ID)
	assert.Equal(t, recent.ID, remaining[1].ID)
}

func TestDLQInsertTruncatesMessage(t *testing.T) {
	db := sqlitetest.Open(t)
	dlq := NewDLQRepository(db)
	event := seedEvent(t, db, time.Now().UTC(), 10, false)

	long := make([]byte, maxDLQErrorLen+100)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	require.NoError(t, dlq.InsertTx(db, models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
	}))

	found, err := dlq.FindByEventID(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, maxDLQErrorLen)
}

func TestDLQInsertIsIdempotentPerEvent(t *testing.T) {
	db := sqlitetest.Open(t)
	dlq := NewDLQRepository(db)
	event := seedEvent(t, db, time.Now().UTC(), 3, false)
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   enums.OutboxDLQReasonUnroutable,
	}
	require.NoError(t, dlq.InsertTx(db, entry))
	require.NoError(t, dlq.InsertTx(db, entry))

	var count int64
	require.NoError(t, db.Model(&models.OutboxDLQ{}).Where("event_id = ?", event.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	entry.ErrorReason = "gave_up"
	require.Error(t, dlq.InsertTx(db, entry))
}

func TestClampMessageKeepsRunesWhole(t *testing.T) {
	msg := "ab" + "é"
	assert.Equal(t, "ab", clampMessage(msg, 3))
	assert.Equal(t, msg, clampMessage(msg, 4))
}
