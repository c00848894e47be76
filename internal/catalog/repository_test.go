package catalog

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

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type productSeed struct {
	title    string
	status   enums.ProductStatus
	featured bool
	category *uuid.UUID
	vendor   *uuid.UUID
	age      time.Duration
}

func seedProduct(t *testing.T, db *gorm.DB, seed productSeed) models.Product {
	t.Helper()
	if seed.status == "" {
		seed.status = enums.ProductStatusPublished
	}
	id := uuid.New()
	product := models.Product{
		ID:            id,
		Title:         seed.title,
		Image:         "products.jpg",
		Price:         decimal.RequireFromString("10.00"),
		OldPrice:      decimal.RequireFromString("20.00"),
		ProductStatus: seed.status,
		Status:        true,
		InStock:       true,
		Featured:      seed.featured,
		SKU:           fmt.Sprintf("sku%s", id.String()[:10]),
		CategoryID:    seed.category,
		VendorID:      seed.vendor,
		CreatedAt:     baseTime.Add(-seed.age),
	}
	require.NoError(t, db.Omit("Images", "Tags", "Category", "Vendor").Create(&product).Error)
	return product
}

func seedCategory(t *testing.T, db *gorm.DB, title string) models.Category {
	t.Helper()
	category := models.Category{ID: uuid.New(), Title: title, Image: "category.jpg", CreatedAt: baseTime}
	require.NoError(t, db.Create(&category).Error)
	return category
}

func TestListPublishedPaginatesNewestFirst(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	newest := seedProduct(t, db, productSeed{title: "Newest", age: time.Minute})
	middle := seedProduct(t, db, productSeed{title: "Middle", age: 2 * time.Minute})
	oldest := seedProduct(t, db, productSeed{title: "Oldest", age: 3 * time.Minute})
	seedProduct(t, db, productSeed{title: "Draft", status: enums.ProductStatusDraft})

	page, next, err := repo.ListPublished(ctx, pagination.Params{Limit: 2}, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, newest.ID, page[0].ID)
	assert.Equal(t, middle.ID, page[1].ID)
	require.NotEmpty(t, next)

	page, next, err = repo.ListPublished(ctx, pagination.Params{Limit: 2, Cursor: next}, "")
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, oldest.ID, page[0].ID)
	assert.Empty(t, next)
}

func TestListPublishedFiltersByTag(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)

	tagged := seedProduct(t, db, productSeed{title: "Tagged"})
	seedProduct(t, db, productSeed{title: "Untagged"})
	tag := models.Tag{ID: uuid.New(), Name: "Summer", Slug: "summer"}
	require.NoError(t, db.Create(&tag).Error)
	require.NoError(t, db.Create(&models.ProductTag{ProductID: tagged.ID, TagID: tag.ID}).Error)

	rows, _, err := repo.ListPublished(context.Background(), pagination.Params{}, "summer")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, tagged.ID, rows[0].ID)
}

func TestFindPublishedHidesUnpublished(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)

	draft := seedProduct(t, db, productSeed{title: "Hidden", status: enums.ProductStatusInReview})
	_, err := repo.FindPublished(context.Background(), draft.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListRelatedExcludesSelfAndCapsAtFour(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	category := seedCategory(t, db, "Shoes")
	other := seedCategory(t, db, "Hats")

	self := seedProduct(t, db, productSeed{title: "Self", category: &category.ID})
	for i := 0; i < 5; i++ {
		seedProduct(t, db, productSeed{title: fmt.Sprintf("Shoe %d", i), category: &category.ID, age: time.Duration(i+1) * time.Minute})
	}
	seedProduct(t, db, productSeed{title: "Hat", category: &other.ID})

	related, err := repo.ListRelated(context.Background(), category.ID, self.ID, relatedLimit)
	require.NoError(t, err)
	require.Len(t, related, 4)
	for _, p := range related {
		assert.NotEqual(t, self.ID, p.ID)
		require.NotNil(t, p.CategoryID)
		assert.Equal(t, category.ID, *p.CategoryID)
	}
}

func TestSearchTitleIsCaseInsensitive(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)

	match := seedProduct(t, db, productSeed{title: "Blue Running Shoe"})
	seedProduct(t, db, productSeed{title: "Red Hat"})
	seedProduct(t, db, productSeed{title: "Blue Draft", status: enums.ProductStatusDraft})

	rows, err := repo.SearchTitle(context.Background(), "BLUE", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, match.ID, rows[0].ID)

	rows, err = repo.SearchTitle(context.Background(), "100%", 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReviewStatsAndHasReviewed(t *testing.T) {
	db := sqlitetest.Open(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := seedProduct(t, db, productSeed{title: "Rated"})
	reviewer := uuid.New()
	for i, rating := range []int{5, 4} {
		require.NoError(t, db.Create(&models.ProductReview{
			ID:        uuid.New(),
			ProductID: product.ID,
			UserID:    []uuid.UUID{reviewer, uuid.New()}[i],
			Review:    "ok",
			Rating:    rating,
			CreatedAt: baseTime,
		}).Error)
	}

	stats, err := repo.ReviewStats(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.InDelta(t, 4.5, stats.Average, 0.001)

	reviewed, err := repo.HasReviewed(ctx, product.ID, reviewer)
	require.NoError(t, err)
	assert.True(t, reviewed)

	reviewed, err = repo.HasReviewed(ctx, product.ID, uuid.New())
	require.NoError(t, err)
	assert.False(t, reviewed)

	empty, err := repo.ReviewStats(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.Zero(t, empty.Average)
}
