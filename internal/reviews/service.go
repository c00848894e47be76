package reviews

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	minRating = 1
	maxRating = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLookup interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*catalog.ProductSummaryDTO, error)
}

type statsReader interface {
	ReviewStats(ctx context.Context, productID uuid.UUID) (catalog.ReviewStats, error)
}

// Service records product reviews.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
}

type CreateInput struct {
	UserID    uuid.UUID
	ProductID uuid.UUID
	Review    string
	Rating    int
}

// CreateResult carries the stored review and the product's rating after it.
type CreateResult struct {
	Review        catalog.ReviewDTO `json:"review"`
	AverageRating float64           `json:"average_rating"`
	ReviewCount   int64             `json:"review_count"`
}

type ServiceParams struct {
	Repo     *Repository
	Products productLookup
	Stats    statsReader
	Tx       txRunner
	Outbox   outbox.Emitter
}

type service struct {
	repo     *Repository
	products productLookup
	stats    statsReader
	tx       txRunner
	outbox   outbox.Emitter
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("review repository required")
	case params.Products == nil:
		return nil, fmt.Errorf("product lookup required")
	case params.Stats == nil:
		return nil, fmt.Errorf("review stats reader required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		stats:    params.Stats,
		tx:       params.Tx,
		outbox:   params.Outbox,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	text := strings.TrimSpace(input.Review)
	details := map[string]string{}
	if text == "" {
		details["review"] = "is required"
	}
	if input.Rating < minRating || input.Rating > maxRating {
		details["rating"] = fmt.Sprintf("must be between %d and %d", minRating, maxRating)
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid review").WithDetails(details)
	}

	if _, err := s.products.FindProduct(ctx, input.ProductID); err != nil {
		return nil, err
	}

	review := models.ProductReview{
		ProductID: input.ProductID,
		UserID:    input.UserID,
		Review:    text,
		Rating:    input.Rating,
		CreatedAt: time.Now().UTC(),
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, &review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewCreated,
			AggregateType: enums.AggregateProduct,
			AggregateID:   review.ProductID,
			Actor:         &outbox.ActorRef{UserID: review.UserID, Source: "storefront"},
			Data: payloads.ReviewCreatedEvent{
				ReviewID:  review.ID,
				ProductID: review.ProductID,
				UserID:    review.UserID,
				Rating:    review.Rating,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit review created")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats, err := s.stats.ReviewStats(ctx, review.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review stats")
	}
	return &CreateResult{
		Review: catalog.ReviewDTO{
			ID:        review.ID,
			UserID:    review.UserID,
			Review:    review.Review,
			Rating:    review.Rating,
			CreatedAt: review.CreatedAt,
		},
		AverageRating: math.Round(stats.Average*10) / 10,
		ReviewCount:   stats.Count,
	}, nil
}
