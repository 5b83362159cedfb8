package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Nikul30701/E-Commerce-Plateform/pkg/migrate"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.ValidateFS(migrate.Embedded()); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEmbeddedMatchesDisk(t *testing.T) {
	onDisk, err := fs.Glob(os.DirFS("migrations"), "*.sql")
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	inBinary, err := fs.Glob(migrate.Embedded(), "*.sql")
	if err != nil {
		t.Fatalf("glob embed: %v", err)
	}
	if strings.Join(onDisk, ",") != strings.Join(inBinary, ",") {
		t.Fatalf("embedded migrations %v differ from disk %v", inBinary, onDisk)
	}
}

func TestValidateFSRejectsBadFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"add_orders.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"duplicate version": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20260101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"missing down": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		},
		"unbalanced statement": {
			"20260101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		if err := migrate.ValidateFS(fsys); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestCatalogMigrationGuardsStock(t *testing.T) {
	content := readMigration(t, "*_create_catalog_tables.sql")
	checks := []string{
		"CREATE TABLE IF NOT EXISTS categories",
		"CREATE TABLE IF NOT EXISTS products",
		"CONSTRAINT chk_products_stock_non_negative CHECK (stock >= 0)",
		"CHECK (discount >= 0 AND discount <= 100)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_products_slug",
		"status text NOT NULL DEFAULT 'draft'",
	}
	assertContains(t, content, checks)
}

func TestCartMigrationEnforcesOneCartPerUser(t *testing.T) {
	content := readMigration(t, "*_create_carts_and_addresses.sql")
	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_carts_user_id ON carts (user_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_cart_items_cart_product ON cart_items (cart_id, product_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_addresses_user_default ON addresses (user_id) WHERE is_default",
	}
	assertContains(t, content, checks)
}

func TestOrdersMigrationSnapshotsLines(t *testing.T) {
	content := readMigration(t, "*_create_orders_tables.sql")
	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_number",
		"product_id uuid REFERENCES products (id) ON DELETE SET NULL",
		"product_name text NOT NULL",
		"unit_price numeric(10,2) NOT NULL",
		"'pending', 'confirmed', 'shipped', 'delivered', 'cancelled'",
	}
	assertContains(t, content, checks)
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Order Notes!", time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_order_notes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if !strings.HasSuffix(filepath.Base(path), "20260401120000_add_order_notes.sql") {
		t.Fatalf("unexpected version in %s", path)
	}
	if err := migrate.ValidateFS(os.DirFS(dir)); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationKeepsVersionsIncreasing(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	first, err := migrate.CreateSQLMigration(dir, "first", now)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := migrate.CreateSQLMigration(dir, "second", now)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if filepath.Base(first) != "20260401120000_first.sql" || filepath.Base(second) != "20260401120001_second.sql" {
		t.Fatalf("unexpected versions %s, %s", filepath.Base(first), filepath.Base(second))
	}
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	if _, err := migrate.CreateSQLMigration(t.TempDir(), "!!!", time.Now()); err == nil {
		t.Fatalf("expected empty sanitized name to be rejected")
	}
}
