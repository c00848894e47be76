package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateFS(Embedded(), embeddedDir))
}

func TestEmbeddedMigrationsCreateStorefrontSchema(t *testing.T) {
	files, err := fs.Glob(Embedded(), embeddedDir+"/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	var all strings.Builder
	for _, f := range files {
		b, err := fs.ReadFile(Embedded(), f)
		require.NoError(t, err)
		all.Write(b)
	}
	content := all.String()

	for _, stmt := range []string{
		"CREATE TABLE IF NOT EXISTS products",
		"CONSTRAINT products_sku_key UNIQUE (sku)",
		"CREATE TABLE IF NOT EXISTS orders",
		"CONSTRAINT orders_public_id_key UNIQUE (public_id)",
		"CONSTRAINT order_coupons_pkey PRIMARY KEY (order_id, coupon_id)",
		"CONSTRAINT coupons_discount_check CHECK (discount BETWEEN 0 AND 100)",
		"CREATE UNIQUE INDEX IF NOT EXISTS addresses_one_default_per_user",
		"CREATE UNIQUE INDEX IF NOT EXISTS wishlist_items_user_product_key",
		"CONSTRAINT product_reviews_rating_check CHECK (rating BETWEEN 1 AND 5)",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"CREATE UNIQUE INDEX IF NOT EXISTS outbox_dlq_event_id_key",
	} {
		require.Contains(t, content, stmt)
	}
}

func TestValidateFSRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		},
		"down first": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		},
		"unbalanced": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, ValidateFS(fsys, "."))
		})
	}
}

func TestCreateSQLMigrationWritesValidTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Gift Cards!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(filepath.Base(path), "_add_gift_cards.sql"))

	_, err = os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestCreateSQLMigrationSkipsTakenVersion(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	first, err := createAt(dir, "add gift cards", now)
	require.NoError(t, err)
	second, err := createAt(dir, "add gift card codes", now)
	require.NoError(t, err)

	require.Equal(t, "20260301093000_add_gift_cards.sql", filepath.Base(first))
	require.Equal(t, "20260301093001_add_gift_card_codes.sql", filepath.Base(second))
	require.NoError(t, ValidateDir(dir))
}
