package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestGetBytesMissingKey(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	value, err := client.GetBytes(ctx, client.CartKey("missing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != nil {
		t.Fatalf("expected nil for missing key, got %q", value)
	}

	if err := client.Set(ctx, client.CartKey("s1"), `{"items":{}}`, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, err = client.GetBytes(ctx, client.CartKey("s1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != `{"items":{}}` {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestSetNXOnlyOnce(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	key := client.IdempotencyKey("stripe-webhook", "evt_1")
	first, err := client.SetNX(ctx, key, "1", time.Hour)
	if err != nil || !first {
		t.Fatalf("expected first setnx to succeed, got %v %v", first, err)
	}
	second, err := client.SetNX(ctx, key, "1", time.Hour)
	if err != nil || second {
		t.Fatalf("expected second setnx to report existing key, got %v %v", second, err)
	}
}

func TestCompareAndSwapRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	w := &scriptedWatcher{errs: []error{redis.TxFailedErr, redis.TxFailedErr, nil}}
	client := &Client{watch: w}

	_, err := client.CompareAndSwap(ctx, "sf:cart:s1", time.Minute, 5, func(current []byte) ([]byte, error) {
		return []byte("next"), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.calls != 3 {
		t.Fatalf("expected 3 watch attempts, got %d", w.calls)
	}
}

func TestCompareAndSwapExhaustsRetries(t *testing.T) {
	ctx := context.Background()
	w := &scriptedWatcher{errs: []error{redis.TxFailedErr, redis.TxFailedErr}}
	client := &Client{watch: w}

	_, err := client.CompareAndSwap(ctx, "sf:cart:s1", time.Minute, 2, func(current []byte) ([]byte, error) {
		return current, nil
	})
	if !errors.Is(err, ErrCASConflict) {
		t.Fatalf("expected ErrCASConflict, got %v", err)
	}
	if w.calls != 2 {
		t.Fatalf("expected 2 watch attempts, got %d", w.calls)
	}
}

func TestCompareAndSwapPropagatesOtherErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	w := &scriptedWatcher{errs: []error{boom}}
	client := &Client{watch: w}

	_, err := client.CompareAndSwap(ctx, "sf:cart:s1", time.Minute, 5, func(current []byte) ([]byte, error) {
		return current, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if w.calls != 1 {
		t.Fatalf("non-conflict errors must not be retried, got %d calls", w.calls)
	}
}

func TestCompareAndSwapRequiresMutator(t *testing.T) {
	client := &Client{watch: &scriptedWatcher{}}
	if _, err := client.CompareAndSwap(context.Background(), "k", 0, 1, nil); err == nil {
		t.Fatal("expected error for nil mutator")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("scope", "id"); got != "sf:idempotency:scope:id" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.CartKey("abc"); got != "sf:cart:abc" {
		t.Fatalf("unexpected cart key %s", got)
	}
	if got := client.LockKey("cron-worker", "prod"); got != "sf:lock:cron-worker:prod" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.LockKey("cron-worker", ""); got != "sf:lock:cron-worker" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(configWith("", "")); err == nil {
		t.Fatal("expected error without url or address")
	}
	opts, err := optionsFromConfig(configWith("redis://localhost:6379/2", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 {
		t.Fatalf("expected db 2 from url, got %d", opts.DB)
	}
}

type scriptedWatcher struct {
	errs  []error
	calls int
}

func (w *scriptedWatcher) Watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	idx := w.calls
	w.calls++
	if idx < len(w.errs) {
		return w.errs[idx]
	}
	return nil
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func configWith(url, addr string) config.RedisConfig {
	return config.RedisConfig{URL: url, Address: addr}
}

// ownerScripts answers EvalSha by emulating the compare-and-delete and
// compare-and-expire scripts against an in-memory map.
type ownerScripts struct {
	values map[string]string
}

func (o *ownerScripts) EvalSha(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if o.values[keys[0]] != args[0] {
		cmd.SetVal(int64(0))
		return cmd
	}
	if len(args) == 1 {
		delete(o.values, keys[0])
	}
	cmd.SetVal(int64(1))
	return cmd
}

func (o *ownerScripts) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return o.EvalSha(ctx, "", keys, args...)
}

func (o *ownerScripts) EvalRO(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return o.EvalSha(ctx, "", keys, args...)
}

func (o *ownerScripts) EvalShaRO(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return o.EvalSha(ctx, "", keys, args...)
}

func (o *ownerScripts) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (o *ownerScripts) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func TestDeleteIfValueChecksOwner(t *testing.T) {
	scripts := &ownerScripts{values: map[string]string{"sf:lock:cron": "worker-a"}}
	client := &Client{scripts: scripts}
	ctx := context.Background()

	deleted, err := client.DeleteIfValue(ctx, "sf:lock:cron", "worker-b")
	if err != nil || deleted {
		t.Fatalf("foreign owner must not delete: %v %v", deleted, err)
	}
	extended, err := client.ExtendIfValue(ctx, "sf:lock:cron", "worker-a", time.Minute)
	if err != nil || !extended {
		t.Fatalf("owner should extend: %v %v", extended, err)
	}
	deleted, err = client.DeleteIfValue(ctx, "sf:lock:cron", "worker-a")
	if err != nil || !deleted {
		t.Fatalf("owner should delete: %v %v", deleted, err)
	}
	if _, ok := scripts.values["sf:lock:cron"]; ok {
		t.Fatal("key should be gone")
	}
	if _, err := (&Client{}).DeleteIfValue(ctx, "k", "v"); err == nil {
		t.Fatal("expected error without scripter")
	}
}
