package orders

import (
	"time"

	"github.com/brewline/brewline-backend/pkg/db/models"
	"github.com/brewline/brewline-backend/pkg/enums"
)

// OrderItemDTO is the public shape of an order line.
type OrderItemDTO struct {
	ID         int64  `json:"id"`
	MenuItemID int64  `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unitPrice"`
	LineTotal  string `json:"lineTotal"`
}

// StatusHistoryDTO is one audit entry.
type StatusHistoryDTO struct {
	Status          enums.OrderStatus `json:"status"`
	ChangedByUserID int64             `json:"changedByUserId"`
	ChangedAt       time.Time         `json:"changedAt"`
}

// OrderDTO is the public shape of an order.
type OrderDTO struct {
	ID               int64                  `json:"id"`
	UserID           int64                  `json:"userId"`
	Status           enums.OrderStatus      `json:"status"`
	TotalAmount      string                 `json:"totalAmount"`
	Currency         enums.Currency         `json:"currency"`
	PaymentProvider  *enums.PaymentProvider `json:"paymentProvider,omitempty"`
	PaymentStatus    *enums.PaymentStatus   `json:"paymentStatus,omitempty"`
	PaymentSessionID *string                `json:"externalSessionId,omitempty"`
	Items            []OrderItemDTO         `json:"items"`
	StatusHistory    []StatusHistoryDTO     `json:"statusHistory,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// StatusSnapshotDTO answers the polling status endpoint.
type StatusSnapshotDTO struct {
	OrderID int64             `json:"orderId"`
	Status  enums.OrderStatus `json:"status"`
	Time    time.Time         `json:"time"`
}

// NewOrderDTO maps a model, including whatever associations were loaded.
func NewOrderDTO(order *models.Order) OrderDTO {
	if order == nil {
		return OrderDTO{}
	}
	dto := OrderDTO{
		ID:               order.ID,
		UserID:           order.UserID,
		Status:           order.Status,
		TotalAmount:      order.TotalAmount.StringFixed(2),
		Currency:         order.Currency,
		PaymentProvider:  order.PaymentProvider,
		PaymentStatus:    order.PaymentStatus,
		PaymentSessionID: order.PaymentSessionID,
		Items:            make([]OrderItemDTO, 0, len(order.Items)),
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	for _, item := range order.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:         item.ID,
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice.StringFixed(2),
			LineTotal:  item.LineTotal.StringFixed(2),
		})
	}
	for _, entry := range order.StatusHistory {
		dto.StatusHistory = append(dto.StatusHistory, StatusHistoryDTO{
			Status:          entry.Status,
			ChangedByUserID: entry.ChangedByUserID,
			ChangedAt:       entry.ChangedAt,
		})
	}
	return dto
}

// NewOrderDTOs maps a list of orders.
func NewOrderDTOs(list []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(list))
	for i := range list {
		out = append(out, NewOrderDTO(&list[i]))
	}
	return out
}

// NewStatusSnapshotDTO maps the latest history entry.
func NewStatusSnapshotDTO(entry *models.OrderStatusHistory) StatusSnapshotDTO {
	if entry == nil {
		return StatusSnapshotDTO{}
	}
	return StatusSnapshotDTO{OrderID: entry.OrderID, Status: entry.Status, Time: entry.ChangedAt}
}
