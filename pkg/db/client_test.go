package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_wishlist_items_user_product"}
	if !IsUniqueViolation(pgErr, "") {
		t.Fatal("expected pgx unique violation")
	}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "uq_wishlist_items_user_product") {
		t.Fatal("expected wrapped pgx unique violation for named constraint")
	}
	if IsUniqueViolation(pgErr, "uq_other") {
		t.Fatal("constraint mismatch must not match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if !IsUniqueViolation(&pq.Error{Code: "23505", Constraint: "order_coupons_pkey"}, "order_coupons_pkey") {
		t.Fatal("expected pq unique violation")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: order_coupons.order_id, order_coupons.coupon_id"), "order_coupons") {
		t.Fatal("expected sqlite unique violation")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil must not match")
	}
}

func TestDialectorForSQLite(t *testing.T) {
	d := dialectorFor(config.DBConfig{Driver: "sqlite", DSN: "file::memory:"})
	if d.Name() != "sqlite" {
		t.Fatalf("expected sqlite dialector, got %s", d.Name())
	}
	d = dialectorFor(config.DBConfig{DSN: "postgres://localhost/storefront"})
	if d.Name() != "postgres" {
		t.Fatalf("expected postgres dialector, got %s", d.Name())
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	var before int64
	if err := db.Model(&testModel{}).Count(&before).Error; err != nil {
		t.Fatalf("count: %v", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "panicked"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var after int64
	if err := db.Model(&testModel{}).Count(&after).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if after != before {
		t.Fatalf("expected rollback, rows went from %d to %d", before, after)
	}
}

func TestQueryLoggerRespectsLevel(t *testing.T) {
	if newQueryLogger(nil, time.Second) != gormlogger.Discard {
		t.Fatal("nil logger should discard")
	}
	ql := newQueryLogger(logger.New(logger.Options{ServiceName: "db-test"}), time.Millisecond)
	silent := ql.LogMode(gormlogger.Silent)
	called := false
	silent.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		called = true
		return "SELECT 1", 1
	}, nil)
	if called {
		t.Fatal("silent logger must not render sql")
	}
	ql.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		called = true
		return "SELECT 1", 1
	}, nil)
	if !called {
		t.Fatal("slow statement should be rendered")
	}
}
