package orders

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const instrumentationName = "github.com/joao-fontenele/storefront/internal/orders"

var tracer = otel.Tracer(instrumentationName)

// Restocker returns stock to the ledger.
type Restocker interface {
	Restock(ctx context.Context, productID string, delta int) (domain.Product, error)
}

// Lifecycle is the only writer of order status.
type Lifecycle struct {
	store       Store
	publisher   domain.EventPublisher
	restocker   Restocker
	logger      *slog.Logger
	transitions metric.Int64Counter
}

type LifecycleOption func(*Lifecycle)

func WithPublisher(p domain.EventPublisher) LifecycleOption {
	return func(l *Lifecycle) {
		l.publisher = p
	}
}

// WithRestockOnCancel returns an order's quantity to the ledger when the
// order is cancelled or when a non-cancelled order is deleted. The restock
// is a separate mutation applied after the status change commits.
func WithRestockOnCancel(r Restocker) LifecycleOption {
	return func(l *Lifecycle) {
		l.restocker = r
	}
}

func NewLifecycle(store Store, logger *slog.Logger, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		store:  store,
		logger: logger,
		transitions: telemetry.Int64Counter(otel.Meter(instrumentationName),
			"storefront.order.transitions", "Order status transition attempts by outcome"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Transition moves the order to target. Requesting the current status is a
// no-op that succeeds without publishing anything.
func (l *Lifecycle) Transition(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.transition")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.target_status", string(target)))

	if !target.Valid() {
		return domain.Order{}, l.fail(ctx, span, fmt.Errorf("status %q: %w", target, domain.ErrInvalidStatus))
	}

	var previous domain.OrderStatus
	order, changed, err := l.store.UpdateStatus(ctx, orderID, func(current domain.Order) (domain.OrderStatus, error) {
		previous = current.Status
		if current.Status == target {
			return target, nil
		}
		if !domain.CanTransition(current.Status, target) {
			return "", fmt.Errorf("order %s %s -> %s: %w", orderID, current.Status, target, domain.ErrInvalidTransition)
		}
		return target, nil
	})
	if err != nil {
		return domain.Order{}, l.fail(ctx, span, err)
	}

	if !changed {
		l.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "noop")))
		return order, nil
	}

	l.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", "applied"),
		attribute.String("status", string(order.Status)),
	))
	l.logger.Info("order status changed", "order_id", order.ID, "from", previous, "to", order.Status)

	if order.Status == domain.OrderStatusCancelled {
		l.restock(ctx, order)
	}
	l.publish(ctx, domain.NewOrderStatusChangedEvent(order, previous))

	return order, nil
}

// Delete removes an order. With restock-on-cancel enabled, stock held by a
// non-cancelled order goes back to the ledger.
func (l *Lifecycle) Delete(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := l.store.Delete(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	l.logger.Info("order deleted", "order_id", order.ID, "status", order.Status)
	if order.Status != domain.OrderStatusCancelled {
		l.restock(ctx, order)
	}
	return order, nil
}

func (l *Lifecycle) restock(ctx context.Context, order domain.Order) {
	if l.restocker == nil {
		return
	}
	if _, err := l.restocker.Restock(ctx, order.ProductID, order.Quantity); err != nil {
		l.logger.Error("failed to restock after cancellation", "error", err,
			"order_id", order.ID, "product_id", order.ProductID, "quantity", order.Quantity)
		return
	}
	l.logger.Info("stock returned", "order_id", order.ID, "product_id", order.ProductID, "quantity", order.Quantity)
}

func (l *Lifecycle) publish(ctx context.Context, event domain.OrderEvent) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, event.OrderID, event); err != nil {
		l.logger.Error("failed to publish order event", "error", err, "order_id", event.OrderID, "type", event.Type)
	}
}

func (l *Lifecycle) fail(ctx context.Context, span trace.Span, err error) error {
	l.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", "rejected"),
		attribute.String("reason", string(domain.Kind(err))),
	))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
