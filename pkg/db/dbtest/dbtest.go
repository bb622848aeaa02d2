// Package dbtest opens isolated in-memory SQLite databases carrying the
// engine schema, for repository and service tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/freshlane/pkg/db"
)

// Open returns a fresh database with every engine table created. The pool is
// capped at one connection so concurrent callers serialize like row locks would.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:freshlane_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Client wraps Open in a db.Client so services can run transactions.
func Client(t *testing.T) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.FromGorm(conn), conn
}

var schema = []string{
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  buyer_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  supplier_id TEXT,
  cart_id TEXT,
  parent_order_id TEXT,
  status TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  fulfillment_type TEXT NOT NULL,
  subtotal TEXT NOT NULL,
  tax_amount TEXT NOT NULL,
  delivery_fee TEXT NOT NULL,
  discount_amount TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  paid_amount TEXT NOT NULL,
  is_urgent INTEGER NOT NULL DEFAULT 0,
  delivery_address TEXT,
  delivery_date DATETIME,
  delivery_instructions TEXT,
  payment_due_date DATETIME,
  notes TEXT,
  submitted_at DATETIME,
  confirmed_at DATETIME,
  preparing_at DATETIME,
  ready_at DATETIME,
  picked_up_at DATETIME,
  delivered_at DATETIME,
  completed_at DATETIME,
  cancelled_at DATETIME,
  refunded_at DATETIME,
  cancelled_by TEXT,
  cancellation_reason TEXT,
  archived INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  warehouse_id TEXT NOT NULL,
  sku TEXT NOT NULL,
  name TEXT NOT NULL,
  unit TEXT NOT NULL,
  weight_kg TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  cost_price TEXT NOT NULL,
  discount_amount TEXT NOT NULL,
  tax_amount TEXT NOT NULL,
  subtotal TEXT NOT NULL,
  total TEXT NOT NULL,
  status TEXT NOT NULL,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  picked_qty INTEGER NOT NULL DEFAULT 0,
  packed_qty INTEGER NOT NULL DEFAULT 0,
  delivered_qty INTEGER NOT NULL DEFAULT 0,
  returned_qty INTEGER NOT NULL DEFAULT 0,
  damaged_qty INTEGER NOT NULL DEFAULT 0,
  is_substitution INTEGER NOT NULL DEFAULT 0,
  original_item_id TEXT,
  substitution_reason TEXT,
  is_backordered INTEGER NOT NULL DEFAULT 0,
  batch_number TEXT,
  expiry_date DATETIME,
  location_code TEXT,
  archived INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE order_status_histories (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  previous_status TEXT NOT NULL,
  status TEXT NOT NULL,
  actor_id TEXT,
  actor_role TEXT NOT NULL,
  note TEXT,
  metadata TEXT NOT NULL DEFAULT '{}',
  created_at DATETIME NOT NULL
)`,
	`CREATE TABLE inventory_records (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  warehouse_id TEXT NOT NULL,
  quantity_on_hand INTEGER NOT NULL DEFAULT 0,
  quantity_reserved INTEGER NOT NULL DEFAULT 0,
  quantity_available INTEGER NOT NULL DEFAULT 0,
  reorder_point INTEGER NOT NULL DEFAULT 0,
  reorder_quantity INTEGER NOT NULL DEFAULT 0,
  location TEXT,
  bin_number TEXT,
  last_restocked_at DATETIME,
  last_counted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (product_id, warehouse_id)
)`,
	`CREATE TABLE inventory_movements (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  warehouse_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  reason TEXT NOT NULL,
  order_id TEXT,
  created_at DATETIME
)`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  category TEXT NOT NULL,
  unit TEXT NOT NULL,
  unit_price TEXT NOT NULL,
  cost_price TEXT NOT NULL,
  tax_rate TEXT,
  weight_kg TEXT NOT NULL,
  min_order_qty INTEGER NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE product_price_tiers (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  min_quantity INTEGER NOT NULL,
  discount_percent TEXT NOT NULL,
  created_at DATETIME
)`,
	`CREATE TABLE carts (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  status TEXT NOT NULL,
  fulfillment_type TEXT NOT NULL,
  subtotal TEXT NOT NULL,
  tax_amount TEXT NOT NULL,
  shipping_amount TEXT NOT NULL,
  discount_amount TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  total_weight_kg TEXT NOT NULL,
  items_count INTEGER NOT NULL DEFAULT 0,
  coupon_codes TEXT,
  last_activity_at DATETIME NOT NULL,
  abandoned_at DATETIME,
  checked_out_at DATETIME,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  warehouse_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  original_price TEXT NOT NULL,
  unit_price TEXT NOT NULL,
  discount_percent TEXT NOT NULL,
  tier_name TEXT,
  tax_rate TEXT NOT NULL,
  subtotal TEXT NOT NULL,
  tax_amount TEXT NOT NULL,
  total TEXT NOT NULL,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  kind TEXT NOT NULL,
  value TEXT NOT NULL,
  min_spend TEXT NOT NULL,
  valid_from DATETIME,
  valid_until DATETIME,
  product_id TEXT,
  category TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME
)`,
	`CREATE TABLE invoices (
  id TEXT PRIMARY KEY,
  invoice_number TEXT NOT NULL UNIQUE,
  buyer_id TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  order_id TEXT,
  status TEXT NOT NULL,
  subtotal TEXT NOT NULL,
  tax_amount TEXT NOT NULL,
  discount_amount TEXT NOT NULL,
  shipping_amount TEXT NOT NULL,
  total_amount TEXT NOT NULL,
  paid_amount TEXT NOT NULL,
  balance_due TEXT NOT NULL,
  invoice_date DATETIME NOT NULL,
  due_date DATETIME NOT NULL,
  paid_date DATETIME,
  sent_at DATETIME,
  viewed_at DATETIME,
  terms_days INTEGER NOT NULL DEFAULT 30,
  late_fee_amount TEXT NOT NULL,
  late_fee_percentage TEXT NOT NULL,
  is_recurring INTEGER NOT NULL DEFAULT 0,
  recurring_frequency TEXT,
  recurring_end_date DATETIME,
  parent_invoice_id TEXT,
  notes TEXT,
  archived INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE invoice_items (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL,
  product_id TEXT,
  description TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit TEXT NOT NULL,
  unit_price TEXT NOT NULL,
  discount_amount TEXT NOT NULL,
  tax_amount TEXT NOT NULL,
  line_total TEXT NOT NULL,
  sort_order INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
)`,
	`CREATE TABLE payments (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL,
  order_id TEXT,
  amount TEXT NOT NULL,
  transaction_ref TEXT NOT NULL,
  method TEXT NOT NULL,
  status TEXT NOT NULL,
  paid_at DATETIME NOT NULL,
  created_at DATETIME,
  CONSTRAINT ux_payments_transaction_ref UNIQUE (transaction_ref)
)`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
)`,
}
