package orders

import (
	"context"
	"time"

	"github.com/brewline/brewline-backend/internal/tracking"
	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error
	FindOrder(ctx context.Context, orderID int64) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error)
	FindOrderDetail(ctx context.Context, orderID int64) (*models.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
	LatestHistory(ctx context.Context, orderID int64) (*models.OrderStatusHistory, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	UpdateOrder(ctx context.Context, orderID int64, updates map[string]any) error
}

// MenuReader resolves menu items for price and availability checks.
type MenuReader interface {
	FindByIDs(ctx context.Context, tx *gorm.DB, ids []int64) (map[int64]models.MenuItem, error)
}

// StatusNotifier receives committed status changes.
type StatusNotifier interface {
	Publish(ctx context.Context, event tracking.StatusEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ListFilter narrows the staff order listing.
type ListFilter struct {
	Status *enums.OrderStatus
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 50
)
