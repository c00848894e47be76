package reviews

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func newTestService(t *testing.T) (Service, *gorm.DB, models.Product) {
	t.Helper()
	conn := sqlitetest.Open(t)
	id := uuid.New()
	product := models.Product{
		ID:            id,
		Title:         "Kettle",
		Price:         decimal.RequireFromString("30.00"),
		ProductStatus: enums.ProductStatusPublished,
		Status:        true,
		InStock:       true,
		SKU:           fmt.Sprintf("rv%s", id.String()[:10]),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, conn.Omit("Images", "Tags", "Category", "Vendor").Create(&product).Error)

	catalogRepo := catalog.NewRepository(conn)
	products, err := catalog.NewService(catalogRepo, nil, nil)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Products: products,
		Stats:    catalogRepo,
		Tx:       db.Wrap(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	return svc, conn, product
}

func TestCreateReturnsNewAverage(t *testing.T) {
	svc, conn, product := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{UserID: uuid.New(), ProductID: product.ID, Review: "Great", Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, 5.0, first.AverageRating)
	assert.Equal(t, int64(1), first.ReviewCount)
	assert.Equal(t, "Great", first.Review.Review)

	second, err := svc.Create(ctx, CreateInput{UserID: uuid.New(), ProductID: product.ID, Review: " Fine ", Rating: 2})
	require.NoError(t, err)
	assert.Equal(t, 3.5, second.AverageRating)
	assert.Equal(t, int64(2), second.ReviewCount)
	assert.Equal(t, "Fine", second.Review.Review)

	var events int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventReviewCreated).Count(&events).Error)
	assert.Equal(t, int64(2), events)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, conn, product := newTestService(t)
	ctx := context.Background()

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Create(ctx, CreateInput{UserID: uuid.New(), ProductID: product.ID, Review: "ok", Rating: rating})
		typed := pkgerrors.As(err)
		require.NotNil(t, typed, "rating %d", rating)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		assert.Contains(t, typed.Details(), "rating")
	}

	_, err := svc.Create(ctx, CreateInput{UserID: uuid.New(), ProductID: product.ID, Review: "   ", Rating: 3})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, CreateInput{UserID: uuid.New(), ProductID: uuid.New(), Review: "ok", Rating: 3})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Create(ctx, CreateInput{ProductID: product.ID, Review: "ok", Rating: 3})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	var count int64
	require.NoError(t, conn.Model(&models.ProductReview{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSameUserMayReviewTwice(t *testing.T) {
	svc, _, product := newTestService(t)
	userID := uuid.New()

	_, err := svc.Create(context.Background(), CreateInput{UserID: userID, ProductID: product.ID, Review: "one", Rating: 4})
	require.NoError(t, err)
	result, err := svc.Create(context.Background(), CreateInput{UserID: userID, ProductID: product.ID, Review: "two", Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.ReviewCount)
}
