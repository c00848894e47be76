// Package search wraps an optional Elasticsearch backend for product title search.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const defaultSize = 50

// ProductDocument is the indexed shape of a published product.
type ProductDocument struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
}

// Client issues queries against the configured products index.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New connects to Elasticsearch and verifies the cluster answers.
func New(ctx context.Context, cfg config.SearchConfig, logg *logger.Logger) (*Client, error) {
	return newWithTransport(ctx, cfg, nil, logg)
}

func newWithTransport(ctx context.Context, cfg config.SearchConfig, transport http.RoundTripper, logg *logger.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("search backend not configured")
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	res, err := es.Info(es.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), strings.TrimSpace(string(body)))
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "index", cfg.Index), "elasticsearch connection established")
	}
	return &Client{es: es, index: cfg.Index}, nil
}

// SearchProducts runs a fuzzy multi_match over title and description and returns the
// matching product ids in relevance order plus the total hit count.
func (c *Client) SearchProducts(ctx context.Context, query string, size int) ([]uuid.UUID, int64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, nil
	}
	if size <= 0 {
		size = defaultSize
	}
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"_source": []string{"id"},
		"size":    size,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, 0, fmt.Errorf("encode search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("search request: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source ProductDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		if hit.Source.ID == uuid.Nil {
			continue
		}
		ids = append(ids, hit.Source.ID)
	}
	return ids, r.Hits.Total.Value, nil
}

// IndexProduct upserts one product document keyed by its id.
func (c *Client) IndexProduct(ctx context.Context, doc ProductDocument) error {
	if doc.ID == uuid.Nil {
		return errors.New("document id is required")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	res, err := c.es.Index(
		c.index,
		bytes.NewReader(payload),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(doc.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index request: %s", res.Status())
	}
	return nil
}

// DeleteProduct removes a product document. Missing documents are not an error.
func (c *Client) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res, err := c.es.Delete(c.index, id.String(), c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete request: %s", res.Status())
	}
	return nil
}
