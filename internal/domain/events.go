package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// EventPublisher delivers domain events keyed by aggregate id.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type OrderEvent struct {
	Type           string          `json:"type"`
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	Total          decimal.Decimal `json:"total"`
	Status         OrderStatus     `json:"status"`
	PreviousStatus OrderStatus     `json:"previous_status,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (e OrderEvent) EventType() string {
	return e.Type
}

func NewOrderPlacedEvent(o Order) OrderEvent {
	return newOrderEvent(EventOrderPlaced, o, "")
}

func NewOrderStatusChangedEvent(o Order, previous OrderStatus) OrderEvent {
	return newOrderEvent(EventOrderStatusChanged, o, previous)
}

func newOrderEvent(typ string, o Order, previous OrderStatus) OrderEvent {
	return OrderEvent{
		Type:           typ,
		OrderID:        o.ID,
		UserID:         o.UserID,
		ProductID:      o.ProductID,
		ProductName:    o.ProductName,
		Quantity:       o.Quantity,
		Total:          o.Total(),
		Status:         o.Status,
		PreviousStatus: previous,
		Timestamp:      time.Now().UTC(),
	}
}
