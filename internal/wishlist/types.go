package wishlist

import (
	"time"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
)

// ItemDTO wraps the product summary included in a wishlist row.
type ItemDTO struct {
	Product   catalog.ProductSummaryDTO `json:"product"`
	CreatedAt time.Time                 `json:"created_at"`
}

// ItemsPageDTO returns a cursor-paginated wishlist view.
type ItemsPageDTO struct {
	Items      []ItemDTO `json:"items"`
	Total      int       `json:"total"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// AddResultDTO reports the outcome of an add. Created is false when the product was
// already saved.
type AddResultDTO struct {
	Created bool  `json:"created"`
	Count   int64 `json:"count"`
}
