package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	pkgerrors "github.com/brewline/brewline-backend/pkg/errors"
)

// LineItem is one requested cart line.
type LineItem struct {
	MenuItemID int64
	Quantity   int
}

// Ledger owns durable orders, their items, and their status history.
type Ledger interface {
	CreateOrder(ctx context.Context, userID int64, lines []LineItem) (*models.Order, error)
	CreateOrderTx(ctx context.Context, tx *gorm.DB, userID int64, lines []LineItem) (*models.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	GetOrderDetail(ctx context.Context, orderID int64) (*models.Order, error)
	AppendStatus(ctx context.Context, tx *gorm.DB, order *models.Order, status enums.OrderStatus, actingUserID int64) (*models.OrderStatusHistory, error)
	ListOrdersForUser(ctx context.Context, userID int64) ([]models.Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]models.Order, error)
	LatestStatus(ctx context.Context, orderID int64) (*models.OrderStatusHistory, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type ledger struct {
	repo     Repository
	menu     MenuReader
	tx       txRunner
	currency enums.Currency
	now      func() time.Time
}

// LedgerOption customizes ledger construction.
type LedgerOption func(*ledger)

// WithCurrency sets the currency stamped on new orders.
func WithCurrency(currency enums.Currency) LedgerOption {
	return func(l *ledger) {
		if currency != "" {
			l.currency = currency
		}
	}
}

// WithClock overrides the time source used for history rows.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger builds the order ledger.
func NewLedger(repo Repository, menu MenuReader, tx txRunner, opts ...LedgerOption) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if menu == nil {
		return nil, fmt.Errorf("menu reader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	l := &ledger{
		repo:     repo,
		menu:     menu,
		tx:       tx,
		currency: enums.CurrencyUSD,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *ledger) CreateOrder(ctx context.Context, userID int64, lines []LineItem) (*models.Order, error) {
	var created *models.Order
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := l.CreateOrderTx(ctx, tx, userID, lines)
		if err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (l *ledger) CreateOrderTx(ctx context.Context, tx *gorm.DB, userID int64, lines []LineItem) (*models.Order, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrEmptyCart, "cart is empty")
	}

	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidQuantity, "quantity must be at least 1").
				WithDetails(map[string]any{"menuItemId": line.MenuItemID, "quantity": line.Quantity})
		}
		if _, ok := seen[line.MenuItemID]; !ok {
			seen[line.MenuItemID] = struct{}{}
			ids = append(ids, line.MenuItemID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	menuItems, err := l.menu.FindByIDs(ctx, tx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu items")
	}

	items := make([]models.OrderItem, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		menuItem, ok := menuItems[line.MenuItemID]
		if !ok || !menuItem.IsAvailable {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, ErrItemUnavailable,
				fmt.Sprintf("menu item %d is unavailable", line.MenuItemID)).
				WithDetails(map[string]any{"menuItemId": line.MenuItemID})
		}
		lineTotal := menuItem.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(lineTotal)
		items = append(items, models.OrderItem{
			MenuItemID: line.MenuItemID,
			Quantity:   line.Quantity,
			UnitPrice:  menuItem.Price,
			LineTotal:  lineTotal,
		})
	}

	repo := l.repo.WithTx(tx)
	order := &models.Order{
		UserID:      userID,
		Status:      enums.OrderStatusPending,
		TotalAmount: total,
		Currency:    l.currency,
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := repo.CreateItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items")
	}

	entry := &models.OrderStatusHistory{
		OrderID:         order.ID,
		Status:          enums.OrderStatusPending,
		ChangedByUserID: userID,
		ChangedAt:       l.now().UTC(),
	}
	if err := repo.AppendHistory(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record initial status")
	}

	order.Items = items
	order.StatusHistory = []models.OrderStatusHistory{*entry}
	return order, nil
}

func (l *ledger) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := l.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapLookupError(err, orderID)
	}
	return order, nil
}

func (l *ledger) GetOrderDetail(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := l.repo.FindOrderDetail(ctx, orderID)
	if err != nil {
		return nil, mapLookupError(err, orderID)
	}
	return order, nil
}

// AppendStatus writes the new status and its history row through tx. The
// caller owns the transaction and any transition checks.
func (l *ledger) AppendStatus(ctx context.Context, tx *gorm.DB, order *models.Order, status enums.OrderStatus, actingUserID int64) (*models.OrderStatusHistory, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order required")
	}
	repo := l.repo.WithTx(tx)
	changedAt := l.now().UTC()

	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": status}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	entry := &models.OrderStatusHistory{
		OrderID:         order.ID,
		Status:          status,
		ChangedByUserID: actingUserID,
		ChangedAt:       changedAt,
	}
	if err := repo.AppendHistory(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append status history")
	}

	order.Status = status
	order.UpdatedAt = changedAt
	return entry, nil
}

func (l *ledger) ListOrdersForUser(ctx context.Context, userID int64) ([]models.Order, error) {
	orders, err := l.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return orders, nil
}

func (l *ledger) ListOrders(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxListLimit {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("limit must be between 1 and %d", MaxListLimit))
	}
	if filter.Offset < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offset must be non-negative")
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown status filter")
	}
	orders, err := l.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return orders, nil
}

func (l *ledger) LatestStatus(ctx context.Context, orderID int64) (*models.OrderStatusHistory, error) {
	entry, err := l.repo.LatestHistory(ctx, orderID)
	if err != nil {
		return nil, mapLookupError(err, orderID)
	}
	return entry, nil
}

func (l *ledger) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	orders, err := l.repo.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending orders")
	}
	return orders, nil
}

func mapLookupError(err error, orderID int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(orderID)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}

func notFound(orderID int64) error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrOrderNotFound, fmt.Sprintf("order %d not found", orderID))
}
