package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// memoryCAS emulates WATCH/MULTI/EXEC: interfere runs between the read and the write
// and, when it returns true, the attempt aborts as if another client touched the key.
type memoryCAS struct {
	mu        sync.Mutex
	data      map[string][]byte
	ttls      map[string]time.Duration
	interfere func(key string, data map[string][]byte) bool
	attempts  int
}

func newMemoryCAS() *memoryCAS {
	return &memoryCAS{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCAS) GetBytes(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryCAS) CompareAndSwap(ctx context.Context, key string, ttl time.Duration, maxRetries int, mutate redis.Mutator) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for attempt := 0; attempt < maxRetries; attempt++ {
		m.attempts++
		next, err := mutate(m.data[key])
		if err != nil {
			return nil, err
		}
		if m.interfere != nil && m.interfere(key, m.data) {
			continue
		}
		if next == nil {
			delete(m.data, key)
		} else {
			m.data[key] = next
			m.ttls[key] = ttl
		}
		return next, nil
	}
	return nil, redis.ErrCASConflict
}

func (m *memoryCAS) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryCAS) CartKey(session string) string {
	return "sf:cart:" + session
}

func TestStoreMutateRereadsAfterConflict(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCAS()
	store := NewStore(mem, time.Hour, 5)

	first := uuid.New()
	second := uuid.New()

	// A concurrent add of `second` lands while the first attempt is in flight.
	interfered := false
	mem.interfere = func(key string, data map[string][]byte) bool {
		if interfered {
			return false
		}
		interfered = true
		snap := newSnapshot()
		snap.Put(Line{ProductID: second, Title: "B", Quantity: 1, Price: decimal.NewFromInt(5)})
		raw, _ := snap.encode()
		data[key] = raw
		return true
	}

	snap, err := store.Mutate(ctx, "s1", func(s *Snapshot) error {
		s.Put(Line{ProductID: first, Title: "A", Quantity: 2, Price: decimal.NewFromInt(10)})
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mem.attempts != 2 {
		t.Fatalf("expected a retry, got %d attempts", mem.attempts)
	}
	if snap.Count() != 2 {
		t.Fatalf("concurrent add was lost: %+v", snap.Items)
	}
	if mem.ttls["sf:cart:s1"] != time.Hour {
		t.Fatalf("expected ttl to be refreshed")
	}

	loaded, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.Total().Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected total 25, got %s", loaded.Total())
	}
}

func TestStoreMutateReportsExhaustedRetries(t *testing.T) {
	mem := newMemoryCAS()
	mem.interfere = func(string, map[string][]byte) bool { return true }
	store := NewStore(mem, time.Hour, 3)

	_, err := store.Mutate(context.Background(), "s1", func(s *Snapshot) error { return nil })
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if mem.attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", mem.attempts)
	}
}

func TestStoreDropsEmptyCart(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCAS()
	store := NewStore(mem, time.Hour, 5)
	id := uuid.New()

	if _, err := store.Mutate(ctx, "s1", func(s *Snapshot) error {
		s.Put(Line{ProductID: id, Quantity: 1, Price: decimal.NewFromInt(1)})
		return nil
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Mutate(ctx, "s1", func(s *Snapshot) error {
		s.Remove(id)
		return nil
	}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := mem.data["sf:cart:s1"]; ok {
		t.Fatal("expected key to be deleted once the cart is empty")
	}
}

func TestDecodeSnapshotRejectsGarbage(t *testing.T) {
	if _, err := decodeSnapshot([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
	snap, err := decodeSnapshot([]byte(`{"items":null}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Items == nil || !snap.Empty() {
		t.Fatalf("expected empty initialized cart")
	}
}
