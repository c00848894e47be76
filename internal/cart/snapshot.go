package cart

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one product held in a cart. Price is the unit price captured when the line
// was added.
type Line struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"qty"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
}

// Total is quantity times unit price.
func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is the whole cart document stored under one session key.
type Snapshot struct {
	Items map[string]Line `json:"items"`
}

func newSnapshot() *Snapshot {
	return &Snapshot{Items: map[string]Line{}}
}

func decodeSnapshot(raw []byte) (*Snapshot, error) {
	snap := newSnapshot()
	if len(raw) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if snap.Items == nil {
		snap.Items = map[string]Line{}
	}
	return snap, nil
}

// encode returns nil for an empty cart so the key is dropped instead of rewritten.
func (s *Snapshot) encode() ([]byte, error) {
	if s.Empty() {
		return nil, nil
	}
	return json.Marshal(s)
}

// Put inserts the line or overwrites the existing line for the same product.
func (s *Snapshot) Put(line Line) {
	s.Items[line.ProductID.String()] = line
}

// Remove drops the product's line. It reports whether a line was present.
func (s *Snapshot) Remove(productID uuid.UUID) bool {
	key := productID.String()
	if _, ok := s.Items[key]; !ok {
		return false
	}
	delete(s.Items, key)
	return true
}

// SetQuantity changes the quantity of an existing line. Absent products are ignored.
func (s *Snapshot) SetQuantity(productID uuid.UUID, qty int) bool {
	key := productID.String()
	line, ok := s.Items[key]
	if !ok {
		return false
	}
	line.Quantity = qty
	s.Items[key] = line
	return true
}

// Total sums quantity times price over every line.
func (s *Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	if s == nil {
		return total
	}
	for _, line := range s.Items {
		total = total.Add(line.Total())
	}
	return total
}

// Count is the number of distinct products in the cart.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}

// Empty reports whether the cart has no lines.
func (s *Snapshot) Empty() bool {
	return s.Count() == 0
}

// Lines returns the lines ordered by title then product id.
func (s *Snapshot) Lines() []Line {
	if s == nil {
		return nil
	}
	lines := make([]Line, 0, len(s.Items))
	for _, line := range s.Items {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Title != lines[j].Title {
			return lines[i].Title < lines[j].Title
		}
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})
	return lines
}

// Purchasable returns the lines with a positive quantity.
func (s *Snapshot) Purchasable() []Line {
	all := s.Lines()
	out := all[:0]
	for _, line := range all {
		if line.Quantity > 0 {
			out = append(out, line)
		}
	}
	return out
}
