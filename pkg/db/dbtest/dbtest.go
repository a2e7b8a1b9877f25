// Package dbtest opens in-memory sqlite databases carrying the storefront
// schema for repository and service tests.
package dbtest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sellersDDL = `
CREATE TABLE sellers (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  slug TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  handle TEXT,
  email TEXT,
  stripe_account_id TEXT UNIQUE,
  stripe_onboarding_complete INTEGER NOT NULL DEFAULT 0,
  stripe_charges_enabled INTEGER NOT NULL DEFAULT 0,
  stripe_payouts_enabled INTEGER NOT NULL DEFAULT 0,
  stripe_last_checked DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`

const listingsDDL = `
CREATE TABLE listings (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL REFERENCES sellers(id) ON DELETE CASCADE,
  title TEXT NOT NULL,
  description TEXT,
  tier TEXT NOT NULL DEFAULT 'free',
  price TEXT NOT NULL DEFAULT '0',
  image_urls TEXT,
  map_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

const ordersDDL = `
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE RESTRICT,
  email TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  amount_cents INTEGER NOT NULL DEFAULT 0,
  fee_cents INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'usd',
  checkout_session_id TEXT UNIQUE,
  checkout_url TEXT,
  completed_at DATETIME,
  failed_at DATETIME,
  failure_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`

const outboxEventsDDL = `
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`

const outboxOrderEventIndexDDL = `
CREATE UNIQUE INDEX ux_outbox_events_order_event
  ON outbox_events (event_type, aggregate_id)
  WHERE aggregate_type = 'order';`

// Open returns a database private to t with sellers, listings, orders and
// outbox_events created. Foreign keys are enforced as in Postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_foreign_keys=1"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, conn.Exec("PRAGMA foreign_keys = ON").Error)
	for _, ddl := range []string{sellersDDL, listingsDDL, ordersDDL, outboxEventsDDL, outboxOrderEventIndexDDL} {
		require.NoError(t, conn.Exec(ddl).Error)
	}

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}
