package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLoggerErrorIncludesContextFieldsAndStack(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOrderID(ctx, "order-1")
	log.Error(ctx, "checkout.failed", errors.New("boom"))

	entries := decodeLines(t, buf)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry["request_id"] != "req-123" || entry["order_id"] != "order-1" {
		t.Fatalf("context fields missing: %v", entry)
	}
	if entry["service"] != "test" || entry["message"] != "checkout.failed" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["stack"]; !ok {
		t.Fatalf("expected stack on error: %v", entry)
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		buf := &bytes.Buffer{}
		log := New(Options{ServiceName: "test", Output: buf, WarnStack: enabled})
		log.Warn(context.Background(), "cart.cas.retry")
		_, hasStack := decodeLines(t, buf)[0]["stack"]
		if hasStack != enabled {
			t.Fatalf("warn stack enabled=%v but stack present=%v", enabled, hasStack)
		}
	}
}

func TestCartSessionIsFingerprinted(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	token := "6f1c2a4e-secret-cart-token"
	log.Info(log.WithCartSession(context.Background(), token), "cart.view")

	if strings.Contains(buf.String(), token) {
		t.Fatalf("raw cart token leaked: %s", buf.String())
	}
	if got := decodeLines(t, buf)[0]["cart_session"]; got != Fingerprint(token) || len(Fingerprint(token)) != 12 {
		t.Fatalf("unexpected fingerprint %v", got)
	}
	if Fingerprint("") != "" {
		t.Fatal("empty token has no fingerprint")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	log.Debug(context.Background(), "request.start")
	if buf.Len() != 0 {
		t.Fatalf("debug must be filtered at info level: %s", buf.String())
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fall back to info, got %v", lvl)
	}
	if lvl := ParseLevel(" WARN "); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn, got %v", lvl)
	}
}

func TestWithFieldsAndInstance(t *testing.T) {
	t.Setenv("STOREFRONT_INSTANCE_ID", "api-7")
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	ctx := log.WithFields(context.Background(), map[string]any{"sku": "SKU-1", "qty": 2})
	log.Info(ctx, "cart.add")

	entry := decodeLines(t, buf)[0]
	if entry["instance"] != "api-7" || entry["sku"] != "SKU-1" || entry["qty"] != float64(2) {
		t.Fatalf("unexpected entry %v", entry)
	}
	if got := log.WithFields(context.Background(), nil); got == nil {
		t.Fatal("expected a usable context for empty fields")
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Error(log.WithOrderID(context.Background(), "o-1"), "payments.failed", errors.New("boom"))
}
