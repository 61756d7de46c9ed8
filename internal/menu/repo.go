// Package menu reads the catalog rows consulted at checkout.
package menu

import (
	"context"

	"gorm.io/gorm"

	"github.com/brewline/brewline-backend/pkg/db/models"
)

// Repository resolves menu items by id.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByIDs returns the items that exist, keyed by id. Missing ids are simply
// absent from the map. When tx is non-nil the read joins that transaction.
func (r *Repository) FindByIDs(ctx context.Context, tx *gorm.DB, ids []int64) (map[int64]models.MenuItem, error) {
	out := make(map[int64]models.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	conn := r.db
	if tx != nil {
		conn = tx
	}
	var items []models.MenuItem
	if err := conn.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}
