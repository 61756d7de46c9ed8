// Package checkout turns a user's cart into a pending order.
package checkout

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/brewline/brewline-backend/internal/cart"
	"github.com/brewline/brewline-backend/internal/orders"
	"github.com/brewline/brewline-backend/pkg/db/models"
	pkgerrors "github.com/brewline/brewline-backend/pkg/errors"
	"github.com/brewline/brewline-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderCreator interface {
	CreateOrderTx(ctx context.Context, tx *gorm.DB, userID int64, lines []orders.LineItem) (*models.Order, error)
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, userID int64) (*models.Order, error)
}

type service struct {
	tx       txRunner
	cartRepo cart.Repository
	ledger   orderCreator
	logg     *logger.Logger
}

// NewService builds the checkout service.
func NewService(tx txRunner, cartRepo cart.Repository, ledger orderCreator, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, cartRepo: cartRepo, ledger: ledger, logg: logg}, nil
}

// Execute reads the cart, creates the order and clears the cart in one
// transaction. On any failure the cart is left as it was.
func (s *service) Execute(ctx context.Context, userID int64) (*models.Order, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)

		items, err := cartRepo.ListByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}

		lines := make([]orders.LineItem, 0, len(items))
		for _, item := range items {
			lines = append(lines, orders.LineItem{MenuItemID: item.MenuItemID, Quantity: item.Quantity})
		}

		order, err := s.ledger.CreateOrderTx(ctx, tx, userID, lines)
		if err != nil {
			return err
		}

		if err := cartRepo.ClearForUser(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": created.ID,
		"user_id":  userID,
		"total":    created.TotalAmount.StringFixed(2),
		"items":    len(created.Items),
	}), "checkout completed")
	return created, nil
}
