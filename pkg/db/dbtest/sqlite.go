// Package dbtest opens throwaway SQLite databases carrying the order schema.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brewline/brewline-backend/pkg/db/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS menu_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  price TEXT NOT NULL,
  is_available INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS cart_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  menu_item_id INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'PENDING',
  total_amount TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  payment_provider TEXT,
  payment_status TEXT,
  payment_session_id TEXT,
  payment_capture_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS order_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  menu_item_id INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price TEXT NOT NULL,
  line_total TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS order_status_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  changed_by_user_id INTEGER NOT NULL,
  changed_at DATETIME NOT NULL
);`,
}

// Open returns an isolated in-memory database with every table created.
// A single connection keeps SQLite from reporting table locks under
// concurrent tests.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=on", name, uuid.NewString()[:8])

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
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

// SeedMenuItem inserts a menu row and returns it.
func SeedMenuItem(t *testing.T, conn *gorm.DB, name, price string, available bool) models.MenuItem {
	t.Helper()
	item := models.MenuItem{Name: name, Price: decimal.RequireFromString(price), IsAvailable: available}
	require.NoError(t, conn.Create(&item).Error)
	if !available {
		// GORM skips zero-value bools that carry a column default.
		require.NoError(t, conn.Model(&item).Update("is_available", false).Error)
	}
	return item
}

// SeedCartItem adds a line to a user's cart.
func SeedCartItem(t *testing.T, conn *gorm.DB, userID, menuItemID int64, qty int) models.CartItem {
	t.Helper()
	item := models.CartItem{UserID: userID, MenuItemID: menuItemID, Quantity: qty}
	require.NoError(t, conn.Create(&item).Error)
	return item
}

// SeedOrder inserts an order with one history row in the given status.
func SeedOrder(t *testing.T, conn *gorm.DB, order models.Order) models.Order {
	t.Helper()
	if order.Status == "" {
		order.Status = "PENDING"
	}
	if order.Currency == "" {
		order.Currency = "USD"
	}
	require.NoError(t, conn.Omit("Items", "StatusHistory").Create(&order).Error)
	require.NoError(t, conn.Create(&models.OrderStatusHistory{
		OrderID:         order.ID,
		Status:          order.Status,
		ChangedByUserID: order.UserID,
		ChangedAt:       time.Now().UTC(),
	}).Error)
	return order
}

// CountHistory returns the number of history rows recorded for an order.
func CountHistory(t *testing.T, conn *gorm.DB, orderID int64) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&models.OrderStatusHistory{}).Where("order_id = ?", orderID).Count(&count).Error)
	return count
}
