package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/brewline/brewline-backend/pkg/enums"
)

// Order is the durable record of a customer's purchase.
type Order struct {
	ID               int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	UserID           int64                  `gorm:"column:user_id;not null;index"`
	Status           enums.OrderStatus      `gorm:"column:status;type:text;not null;default:'PENDING'"`
	TotalAmount      decimal.Decimal        `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Currency         enums.Currency         `gorm:"column:currency;type:text;not null;default:'USD'"`
	PaymentProvider  *enums.PaymentProvider `gorm:"column:payment_provider;type:text"`
	PaymentStatus    *enums.PaymentStatus   `gorm:"column:payment_status;type:text"`
	PaymentSessionID *string                `gorm:"column:payment_session_id"`
	PaymentCaptureID *string                `gorm:"column:payment_capture_id"`
	Items            []OrderItem            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory    []OrderStatusHistory   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// IsCaptured reports whether a processor capture has been recorded.
func (o Order) IsCaptured() bool {
	return o.PaymentCaptureID != nil && *o.PaymentCaptureID != ""
}
