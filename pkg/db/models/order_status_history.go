package models

import (
	"time"

	"github.com/brewline/brewline-backend/pkg/enums"
)

// OrderStatusHistory is an append-only audit row per status change.
type OrderStatusHistory struct {
	ID              int64             `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID         int64             `gorm:"column:order_id;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null"`
	ChangedByUserID int64             `gorm:"column:changed_by_user_id;not null"`
	ChangedAt       time.Time         `gorm:"column:changed_at;not null"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}
