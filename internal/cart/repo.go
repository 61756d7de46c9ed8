// Package cart reads and clears a user's cart snapshot at checkout.
package cart

import (
	"context"

	"gorm.io/gorm"

	"github.com/brewline/brewline-backend/pkg/db/models"
)

// Repository exposes the cart operations checkout relies on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListByUser(ctx context.Context, userID int64) ([]models.CartItem, error)
	ClearForUser(ctx context.Context, userID int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the cart repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListByUser(ctx context.Context, userID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ClearForUser(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error
}
