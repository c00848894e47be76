package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/search"
	"github.com/google/uuid"
)

const reindexBatchSize = 200

type productSource interface {
	ListIndexable(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Product, error)
	ListUnpublishedIDs(ctx context.Context) ([]uuid.UUID, error)
}

type productIndex interface {
	IndexProduct(ctx context.Context, doc search.ProductDocument) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type SearchReindexJobParams struct {
	Logger    *logger.Logger
	Products  productSource
	Index     productIndex
	BatchSize int
}

// NewSearchReindexJob upserts every published product into the search index and drops
// documents for products that are no longer published.
func NewSearchReindexJob(params SearchReindexJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product source required")
	}
	if params.Index == nil {
		return nil, fmt.Errorf("search index required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = reindexBatchSize
	}
	return &searchReindexJob{
		logg:     params.Logger,
		products: params.Products,
		index:    params.Index,
		batch:    batch,
	}, nil
}

type searchReindexJob struct {
	logg     *logger.Logger
	products productSource
	index    productIndex
	batch    int
}

func (j *searchReindexJob) Name() string { return "search-reindex" }

func (j *searchReindexJob) Run(ctx context.Context) error {
	indexed := 0
	after := uuid.Nil
	for {
		rows, err := j.products.ListIndexable(ctx, after, j.batch)
		if err != nil {
			return fmt.Errorf("list indexable products: %w", err)
		}
		for _, product := range rows {
			if err := j.index.IndexProduct(ctx, documentFor(product)); err != nil {
				return fmt.Errorf("index product %s: %w", product.ID, err)
			}
			indexed++
		}
		if len(rows) < j.batch {
			break
		}
		after = rows[len(rows)-1].ID
	}

	hidden, err := j.products.ListUnpublishedIDs(ctx)
	if err != nil {
		return fmt.Errorf("list unpublished products: %w", err)
	}
	for _, id := range hidden {
		if err := j.index.DeleteProduct(ctx, id); err != nil {
			return fmt.Errorf("delete product %s: %w", id, err)
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"indexed": indexed,
		"removed": len(hidden),
	})
	j.logg.Info(logCtx, "cron.search_reindex.complete")
	return nil
}

func documentFor(p models.Product) search.ProductDocument {
	doc := search.ProductDocument{ID: p.ID, Title: p.Title}
	if p.Description != nil {
		doc.Description = *p.Description
	}
	if p.Category != nil {
		doc.Category = p.Category.Title
	}
	if p.Vendor != nil {
		doc.Vendor = p.Vendor.Name
	}
	return doc
}
