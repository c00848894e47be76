package cart

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// casClient is the subset of pkg/redis the cart store needs.
type casClient interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	CompareAndSwap(ctx context.Context, key string, ttl time.Duration, maxRetries int, mutate redis.Mutator) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
	CartKey(session string) string
}

// ErrConflict means concurrent writers kept winning the race for this session.
var ErrConflict = errors.New("cart: concurrent modification")

// Store persists carts as one JSON document per session.
type Store struct {
	client  casClient
	ttl     time.Duration
	retries int
}

// NewStore wires a cart store over redis. ttl slides forward on every write.
func NewStore(client casClient, ttl time.Duration, retries int) *Store {
	return &Store{client: client, ttl: ttl, retries: retries}
}

// Load returns the session's cart, empty when none exists.
func (s *Store) Load(ctx context.Context, session string) (*Snapshot, error) {
	raw, err := s.client.GetBytes(ctx, s.client.CartKey(session))
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(raw)
}

// Mutate applies fn to the current cart and writes the result back atomically. fn may
// be invoked more than once when another request modified the cart in between.
func (s *Store) Mutate(ctx context.Context, session string, fn func(*Snapshot) error) (*Snapshot, error) {
	var result *Snapshot
	_, err := s.client.CompareAndSwap(ctx, s.client.CartKey(session), s.ttl, s.retries, func(current []byte) ([]byte, error) {
		snap, err := decodeSnapshot(current)
		if err != nil {
			return nil, err
		}
		if err := fn(snap); err != nil {
			return nil, err
		}
		result = snap
		return snap.encode()
	})
	if errors.Is(err, redis.ErrCASConflict) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Clear deletes the session's cart.
func (s *Store) Clear(ctx context.Context, session string) error {
	return s.client.Del(ctx, s.client.CartKey(session))
}
