package cart

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubProducts struct {
	byID map[uuid.UUID]catalog.ProductSummaryDTO
}

func (s *stubProducts) FindProduct(ctx context.Context, id uuid.UUID) (*catalog.ProductSummaryDTO, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return &p, nil
}

type countingMetrics struct{ conflicts int }

func (c *countingMetrics) IncCartConflict() { c.conflicts++ }

func newTestService(t *testing.T, products ...catalog.ProductSummaryDTO) (Service, *memoryCAS, *countingMetrics) {
	t.Helper()
	catalogStub := &stubProducts{byID: map[uuid.UUID]catalog.ProductSummaryDTO{}}
	for _, p := range products {
		catalogStub.byID[p.ID] = p
	}
	mem := newMemoryCAS()
	metrics := &countingMetrics{}
	svc, err := NewService(NewStore(mem, time.Hour, 5), catalogStub, metrics)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, mem, metrics
}

func product(title, price string) catalog.ProductSummaryDTO {
	return catalog.ProductSummaryDTO{ID: uuid.New(), Title: title, Price: price, Image: title + ".jpg"}
}

func TestAddOverwritesQuantity(t *testing.T) {
	ctx := context.Background()
	p1 := product("Lamp", "10.00")
	p2 := product("Mug", "5.00")
	svc, _, _ := newTestService(t, p1, p2)

	if _, err := svc.Add(ctx, "s1", p1.ID, 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Add(ctx, "s1", p1.ID, 2); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	view, err := svc.Add(ctx, "s1", p2.ID, 1)
	if err != nil {
		t.Fatalf("add second: %v", err)
	}

	if view.Count != 2 {
		t.Fatalf("expected 2 distinct products, got %d", view.Count)
	}
	if view.Total != "25.00" {
		t.Fatalf("expected total 25.00, got %s", view.Total)
	}
	if view.Items[0].Title != "Lamp" || view.Items[0].Quantity != 2 || view.Items[0].LineTotal != "20.00" {
		t.Fatalf("unexpected first line %+v", view.Items[0])
	}
}

func TestAddValidatesInput(t *testing.T) {
	ctx := context.Background()
	p1 := product("Lamp", "10.00")
	svc, _, _ := newTestService(t, p1)

	_, err := svc.Add(ctx, "s1", p1.ID, 0)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for qty 0, got %v", err)
	}
	_, err = svc.Add(ctx, "", p1.ID, 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error without session, got %v", err)
	}
	_, err = svc.Add(ctx, "s1", uuid.New(), 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestUpdateAndRemoveIgnoreAbsentProducts(t *testing.T) {
	ctx := context.Background()
	p1 := product("Lamp", "10.00")
	svc, _, _ := newTestService(t, p1)

	view, err := svc.UpdateQuantity(ctx, "s1", p1.ID, 4)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.Count != 0 {
		t.Fatalf("update must not insert, got %+v", view.Items)
	}
	if _, err := svc.Remove(ctx, "s1", p1.ID); err != nil {
		t.Fatalf("remove on empty cart: %v", err)
	}
	if _, err := svc.UpdateQuantity(ctx, "s1", p1.ID, -1); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative qty, got %v", err)
	}
}

func TestUpdateToZeroKeepsLine(t *testing.T) {
	ctx := context.Background()
	p1 := product("Lamp", "10.00")
	svc, _, _ := newTestService(t, p1)

	if _, err := svc.Add(ctx, "s1", p1.ID, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	view, err := svc.UpdateQuantity(ctx, "s1", p1.ID, 0)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.Count != 1 || view.Total != "0.00" {
		t.Fatalf("expected zero-qty line to stay with total 0, got %+v", view)
	}
	snap, err := svc.Snapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Purchasable()) != 0 {
		t.Fatalf("zero-qty line must not be purchasable")
	}
}

func TestTotalMatchesLinesForRandomSequences(t *testing.T) {
	ctx := context.Background()
	catalogProducts := []catalog.ProductSummaryDTO{
		product("A", "10.00"),
		product("B", "5.50"),
		product("C", "0.99"),
		product("D", "120.00"),
	}
	svc, _, _ := newTestService(t, catalogProducts...)
	rng := rand.New(rand.NewSource(42))

	expected := map[uuid.UUID]int{}
	prices := map[uuid.UUID]decimal.Decimal{}
	for _, p := range catalogProducts {
		prices[p.ID] = decimal.RequireFromString(p.Price)
	}

	for step := 0; step < 200; step++ {
		p := catalogProducts[rng.Intn(len(catalogProducts))]
		switch rng.Intn(3) {
		case 0:
			qty := rng.Intn(5) + 1
			if _, err := svc.Add(ctx, "s1", p.ID, qty); err != nil {
				t.Fatalf("step %d add: %v", step, err)
			}
			expected[p.ID] = qty
		case 1:
			qty := rng.Intn(5)
			if _, err := svc.UpdateQuantity(ctx, "s1", p.ID, qty); err != nil {
				t.Fatalf("step %d update: %v", step, err)
			}
			if _, ok := expected[p.ID]; ok {
				expected[p.ID] = qty
			}
		case 2:
			if _, err := svc.Remove(ctx, "s1", p.ID); err != nil {
				t.Fatalf("step %d remove: %v", step, err)
			}
			delete(expected, p.ID)
		}

		want := decimal.Zero
		for id, qty := range expected {
			want = want.Add(prices[id].Mul(decimal.NewFromInt(int64(qty))))
		}
		got, err := svc.Total(ctx, "s1")
		if err != nil {
			t.Fatalf("step %d total: %v", step, err)
		}
		if !got.Equal(want) {
			t.Fatalf("step %d: expected total %s, got %s", step, want, got)
		}
	}

	for _, p := range catalogProducts {
		if _, err := svc.Remove(ctx, "s1", p.ID); err != nil {
			t.Fatalf("final remove: %v", err)
		}
	}
	got, err := svc.Total(ctx, "s1")
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected empty cart total 0, got %s", got)
	}
}

func TestConflictMapsToConflictCode(t *testing.T) {
	p1 := product("Lamp", "10.00")
	svc, mem, metrics := newTestService(t, p1)
	mem.interfere = func(string, map[string][]byte) bool { return true }

	_, err := svc.Add(context.Background(), "s1", p1.ID, 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict code, got %v", err)
	}
	if metrics.conflicts != 1 {
		t.Fatalf("expected conflict metric, got %d", metrics.conflicts)
	}
}

func TestClearAndEmptySession(t *testing.T) {
	ctx := context.Background()
	p1 := product("Lamp", "10.00")
	svc, mem, _ := newTestService(t, p1)

	if _, err := svc.Add(ctx, "s1", p1.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Clear(ctx, "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(mem.data) != 0 {
		t.Fatalf("expected cart removed, got %v", mem.data)
	}
	view, err := svc.Get(ctx, "")
	if err != nil {
		t.Fatalf("get without session: %v", err)
	}
	if view.Total != "0.00" || view.Count != 0 {
		t.Fatalf("expected empty view, got %+v", view)
	}
}
