// Package notifier emails customers when their orders are placed or change
// status.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

type UserDirectory interface {
	Get(ctx context.Context, id string) (domain.User, error)
}

type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

type Handler struct {
	users  UserDirectory
	mailer Mailer
	logger *slog.Logger
}

func NewHandler(users UserDirectory, mailer Mailer, logger *slog.Logger) *Handler {
	return &Handler{
		users:  users,
		mailer: mailer,
		logger: logger,
	}
}

// Handle processes one order event. Events that cannot ever be delivered,
// such as unknown types or deleted users, are logged and skipped; transient
// failures are returned so the message is retried.
func (h *Handler) Handle(ctx context.Context, d messaging.Delivery) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(d.Payload, &event); err != nil {
		h.logger.Error("discarding malformed order event", "error", err, "key", d.Key, "offset", d.Offset)
		return nil
	}
	if d.EventType != "" {
		event.Type = d.EventType
	}

	h.logger.Info("processing order event", "type", event.Type, "order_id", event.OrderID, "user_id", event.UserID)

	subject, body, ok := compose(event)
	if !ok {
		h.logger.Warn("ignoring order event", "type", event.Type, "order_id", event.OrderID)
		return nil
	}

	user, err := h.users.Get(ctx, event.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		h.logger.Warn("no recipient for order event", "order_id", event.OrderID, "user_id", event.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up user %s: %w", event.UserID, err)
	}

	if err := h.mailer.Send(ctx, email.Message{To: user.Email, Subject: subject, Body: body}); err != nil {
		h.logger.Error("failed to send order email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send %s email: %w", event.Type, err)
	}

	h.logger.Info("order email sent", "type", event.Type, "order_id", event.OrderID)
	return nil
}

func compose(event domain.OrderEvent) (subject, body string, ok bool) {
	switch event.Type {
	case domain.EventOrderPlaced:
		return "Order Placed: " + event.OrderID,
			fmt.Sprintf("We received your order %s for %d x %s, total %s.",
				event.OrderID, event.Quantity, event.ProductName, event.Total.StringFixed(2)),
			true
	case domain.EventOrderStatusChanged:
		return fmt.Sprintf("Order %s: %s", event.OrderID, event.Status),
			statusBody(event),
			true
	default:
		return "", "", false
	}
}

func statusBody(event domain.OrderEvent) string {
	switch event.Status {
	case domain.OrderStatusShipped:
		return fmt.Sprintf("Good news: your order %s (%s) is on its way.", event.OrderID, event.ProductName)
	case domain.OrderStatusDelivered:
		return fmt.Sprintf("Your order %s (%s) has been delivered.", event.OrderID, event.ProductName)
	case domain.OrderStatusCancelled:
		return fmt.Sprintf("Your order %s (%s) has been cancelled.", event.OrderID, event.ProductName)
	default:
		return fmt.Sprintf("Your order %s is now %s.", event.OrderID, event.Status)
	}
}
