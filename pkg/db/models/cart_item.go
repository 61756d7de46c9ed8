package models

import "time"

// CartItem is a line in a user's open cart.
type CartItem struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID     int64     `gorm:"column:user_id;not null;index"`
	MenuItemID int64     `gorm:"column:menu_item_id;not null"`
	Quantity   int       `gorm:"column:quantity;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
