package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/freshlane/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected one %s migration", suffix)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))
}

func TestMigrationConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_inventory": {
			"CONSTRAINT ux_inventory_product_warehouse UNIQUE (product_id, warehouse_id)",
			"CHECK (quantity_on_hand >= quantity_reserved)",
			"CHECK (quantity_available = quantity_on_hand - quantity_reserved)",
			"DROP TABLE IF EXISTS inventory_records",
		},
		"create_orders": {
			"CONSTRAINT ux_orders_order_number UNIQUE (order_number)",
			"CHECK (packed_qty >= 0 AND packed_qty <= picked_qty)",
			"CREATE TABLE IF NOT EXISTS order_status_histories",
		},
		"create_invoices": {
			"CONSTRAINT ux_payments_transaction_ref UNIQUE (transaction_ref)",
			"CHECK (balance_due = total_amount - paid_amount)",
			"CHECK (amount > 0)",
		},
		"create_outbox": {
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
			"WHERE published_at IS NULL",
		},
	}
	for name, checks := range cases {
		content := readMigration(t, name)
		for _, sub := range checks {
			assert.True(t, strings.Contains(content, sub), "%s missing %q", name, sub)
		}
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	assert.Error(t, migrate.ValidateDir(dir))
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Delivery Windows!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_delivery_windows.sql"))
	require.NoError(t, migrate.ValidateDir(dir))
}
