package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/brewline/brewline-backend/internal/cart"
	"github.com/brewline/brewline-backend/internal/menu"
	"github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/pkg/db"
	"github.com/brewline/brewline-backend/pkg/db/dbtest"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	"github.com/brewline/brewline-backend/pkg/logger"
)

func newCheckout(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	tx := db.FromConn(conn)
	ledger, err := orders.NewLedger(orders.NewRepository(conn), menu.NewRepository(conn), tx)
	require.NoError(t, err)
	svc, err := NewService(tx, cart.NewRepository(conn), ledger, logger.Nop())
	require.NoError(t, err)
	return svc, conn
}

func cartSize(t *testing.T, conn *gorm.DB, userID int64) int64 {
	t.Helper()
	var count int64
	require.NoError(t, conn.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func TestExecuteCreatesOrderAndClearsCart(t *testing.T) {
	svc, conn := newCheckout(t)
	latte := dbtest.SeedMenuItem(t, conn, "Latte", "3.50", true)
	scone := dbtest.SeedMenuItem(t, conn, "Scone", "4.25", true)
	dbtest.SeedCartItem(t, conn, 11, latte.ID, 2)
	dbtest.SeedCartItem(t, conn, 11, scone.ID, 1)
	dbtest.SeedCartItem(t, conn, 12, scone.ID, 3)

	order, err := svc.Execute(context.Background(), 11)
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("11.25")))
	assert.Len(t, order.Items, 2)
	assert.Zero(t, cartSize(t, conn, 11))
	assert.EqualValues(t, 1, cartSize(t, conn, 12))
	assert.EqualValues(t, 1, dbtest.CountHistory(t, conn, order.ID))
}

func TestExecuteEmptyCart(t *testing.T) {
	svc, conn := newCheckout(t)

	_, err := svc.Execute(context.Background(), 11)
	require.Error(t, err)
	assert.True(t, errors.Is(err, orders.ErrEmptyCart))

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestExecuteUnavailableItemLeavesCartIntact(t *testing.T) {
	svc, conn := newCheckout(t)
	latte := dbtest.SeedMenuItem(t, conn, "Latte", "3.50", true)
	gone := dbtest.SeedMenuItem(t, conn, "Pumpkin Spice", "6.00", false)
	dbtest.SeedCartItem(t, conn, 11, latte.ID, 1)
	dbtest.SeedCartItem(t, conn, 11, gone.ID, 1)

	_, err := svc.Execute(context.Background(), 11)
	require.Error(t, err)
	assert.True(t, errors.Is(err, orders.ErrItemUnavailable))

	assert.EqualValues(t, 2, cartSize(t, conn, 11))
	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

type failingClearRepo struct {
	cart.Repository
}

func (f failingClearRepo) WithTx(tx *gorm.DB) cart.Repository {
	return failingClearRepo{Repository: f.Repository.WithTx(tx)}
}

func (failingClearRepo) ClearForUser(context.Context, int64) error {
	return errors.New("disk full")
}

func TestExecuteRollsBackOrderWhenCartClearFails(t *testing.T) {
	conn := dbtest.Open(t)
	tx := db.FromConn(conn)
	ledger, err := orders.NewLedger(orders.NewRepository(conn), menu.NewRepository(conn), tx)
	require.NoError(t, err)
	svc, err := NewService(tx, failingClearRepo{Repository: cart.NewRepository(conn)}, ledger, logger.Nop())
	require.NoError(t, err)

	latte := dbtest.SeedMenuItem(t, conn, "Latte", "3.50", true)
	dbtest.SeedCartItem(t, conn, 11, latte.ID, 1)

	_, err = svc.Execute(context.Background(), 11)
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count, "order must roll back with the failed cart clear")
	assert.EqualValues(t, 1, cartSize(t, conn, 11))
}

func TestNewServiceValidatesDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	assert.Error(t, err)
}
