package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/substractum/storefront/pkg/config"
	"github.com/substractum/storefront/pkg/db"
	"github.com/substractum/storefront/pkg/logger"
	"github.com/substractum/storefront/pkg/migrate"
)

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

func TestCartItemsMigrationKeysByUserAndProduct(t *testing.T) {
	content := readMigration(t, "*_create_cart_items_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS cart_items",
		"CONSTRAINT cart_items_user_product_key PRIMARY KEY (user_id, product_id)",
		"price numeric(12,2) NOT NULL DEFAULT 0",
		"name text NOT NULL DEFAULT 'Produto'",
		"CHECK (quantity >= 1)",
		"DROP TABLE IF EXISTS cart_items",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_create_orders_tables.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_items",
		"REFERENCES orders (id) ON DELETE CASCADE",
		"payment_method IN ('credit', 'pix', 'boleto')",
		"CREATE INDEX IF NOT EXISTS idx_orders_user_created",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPrescriptionRequestsMigrationBoundsInput(t *testing.T) {
	content := readMigration(t, "*_create_prescription_requests_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS prescription_requests",
		"CHECK (char_length(name) BETWEEN 2 AND 100)",
		"CHECK (char_length(phone) BETWEEN 10 AND 15)",
		"file_size <= 5242880",
		"status IN ('pending', 'in_progress', 'completed')",
		"DROP TABLE IF EXISTS prescription_requests",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestProductReviewsMigrationOneReviewPerBuyer(t *testing.T) {
	content := readMigration(t, "*_create_product_reviews_table.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS product_reviews",
		"REFERENCES products (id) ON DELETE CASCADE",
		"CHECK (rating BETWEEN 1 AND 5)",
		"CONSTRAINT product_reviews_product_user_key UNIQUE (product_id, user_id)",
		"DROP TABLE IF EXISTS product_reviews",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateDir(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("expected shipped migrations to validate: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad-name.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to fail validation")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Cart Notes!")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "_add_cart_notes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		App:          config.AppConfig{Env: config.AppEnvDev},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true, AutoMigrate: true},
		DB:           config.DBConfig{Driver: config.DBDriverSQLite, DSN: "file:autorun?mode=memory&cache=shared"},
	}
	client, err := db.New(ctx, cfg.DB, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logger.Nop(), client); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	for _, table := range []string{"products", "cart_items", "orders", "order_items", "outbox_events", "prescription_requests", "product_reviews"} {
		if !client.DB().Migrator().HasTable(table) {
			t.Errorf("expected table %s to exist", table)
		}
	}
}
