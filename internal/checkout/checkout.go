// Package checkout turns a cart into orders, one per line, reserving stock
// before each order is written.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const instrumentationName = "github.com/joao-fontenele/storefront/internal/checkout"

var tracer = otel.Tracer(instrumentationName)

type LineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart is owned by the caller. Lines are processed in order and the same
// product may appear on several lines.
type Cart struct {
	UserID string
	Items  []LineItem
}

type LineStatus string

const (
	LineCreated  LineStatus = "CREATED"
	LineRejected LineStatus = "REJECTED"
)

type LineResult struct {
	Index     int              `json:"index"`
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Status    LineStatus       `json:"status"`
	Order     *domain.Order    `json:"order,omitempty"`
	Reason    domain.ErrorKind `json:"reason,omitempty"`
	Message   string           `json:"message,omitempty"`
	Err       error            `json:"-"`
}

type Result struct {
	Lines    []LineResult `json:"lines"`
	Created  int          `json:"created"`
	Rejected int          `json:"rejected"`
}

// Succeeded reports whether at least one order was created.
func (r Result) Succeeded() bool {
	return r.Created > 0
}

func (r *Result) add(line LineResult) {
	r.Lines = append(r.Lines, line)
	if line.Status == LineCreated {
		r.Created++
	} else {
		r.Rejected++
	}
}

// Ledger is the part of the product ledger checkout needs.
type Ledger interface {
	Reserve(ctx context.Context, productID string, quantity int) (domain.Product, error)
	Restock(ctx context.Context, productID string, delta int) (domain.Product, error)
}

type OrderCreator interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
}

type UserDirectory interface {
	Get(ctx context.Context, id string) (domain.User, error)
}

type Orchestrator struct {
	ledger    Ledger
	orders    OrderCreator
	users     UserDirectory
	publisher domain.EventPublisher
	logger    *slog.Logger
	lines     metric.Int64Counter
}

type Option func(*Orchestrator)

func WithPublisher(p domain.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

func NewOrchestrator(ledger Ledger, orders OrderCreator, users UserDirectory, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledger: ledger,
		orders: orders,
		users:  users,
		logger: logger,
		lines: telemetry.Int64Counter(otel.Meter(instrumentationName),
			"storefront.checkout.lines", "Checkout lines processed by outcome"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Checkout validates the whole cart, then admits each line independently:
// a line that cannot be reserved is rejected without affecting the others.
// Lines created before a failure are never rolled back. An error is returned
// only when validation fails, in which case nothing was changed.
func (o *Orchestrator) Checkout(ctx context.Context, cart Cart) (Result, error) {
	ctx, span := tracer.Start(ctx, "checkout")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", cart.UserID),
		attribute.Int("checkout.lines", len(cart.Items)),
	)

	if err := o.validate(ctx, cart); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	result := Result{Lines: make([]LineResult, 0, len(cart.Items))}
	for i, item := range cart.Items {
		if err := ctx.Err(); err != nil {
			result.add(o.reject(ctx, i, item, fmt.Errorf("line not processed: %w", err)))
			continue
		}
		result.add(o.admit(ctx, cart.UserID, i, item))
	}

	span.SetAttributes(
		attribute.Int("checkout.created", result.Created),
		attribute.Int("checkout.rejected", result.Rejected),
	)
	o.logger.Info("checkout completed", "user_id", cart.UserID, "created", result.Created, "rejected", result.Rejected)
	return result, nil
}

// PlaceOrder is a single line checkout. The line's failure, if any, is
// returned as the error.
func (o *Orchestrator) PlaceOrder(ctx context.Context, userID, productID string, quantity int) (domain.Order, error) {
	result, err := o.Checkout(ctx, Cart{
		UserID: userID,
		Items:  []LineItem{{ProductID: productID, Quantity: quantity}},
	})
	if err != nil {
		return domain.Order{}, err
	}

	line := result.Lines[0]
	if line.Err != nil {
		return domain.Order{}, line.Err
	}
	return *line.Order, nil
}

func (o *Orchestrator) validate(ctx context.Context, cart Cart) error {
	if strings.TrimSpace(cart.UserID) == "" {
		return fmt.Errorf("user id is required: %w", domain.ErrInvalidRequest)
	}
	if len(cart.Items) == 0 {
		return fmt.Errorf("cart is empty: %w", domain.ErrInvalidRequest)
	}
	for i, item := range cart.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("line %d: product id is required: %w", i, domain.ErrInvalidRequest)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("line %d: quantity %d: %w", i, item.Quantity, domain.ErrInvalidQuantity)
		}
	}
	if _, err := o.users.Get(ctx, cart.UserID); err != nil {
		return fmt.Errorf("checkout for user %s: %w", cart.UserID, err)
	}
	return nil
}

func (o *Orchestrator) admit(ctx context.Context, userID string, index int, item LineItem) LineResult {
	product, err := o.ledger.Reserve(ctx, item.ProductID, item.Quantity)
	if err != nil {
		return o.reject(ctx, index, item, err)
	}

	order, err := o.orders.Create(ctx, domain.Order{
		UserID:      userID,
		ProductID:   product.ID,
		ProductName: product.Name,
		UnitCost:    product.Cost,
		Quantity:    item.Quantity,
	})
	if err != nil {
		// No order owns the reserved stock, so it goes back. The release must
		// run even when ctx is what made Create fail.
		if _, rerr := o.ledger.Restock(context.WithoutCancel(ctx), item.ProductID, item.Quantity); rerr != nil {
			o.logger.Error("failed to release reservation", "error", rerr,
				"product_id", item.ProductID, "quantity", item.Quantity)
		}
		return o.reject(ctx, index, item, fmt.Errorf("create order: %w", err))
	}

	o.lines.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "created")))
	o.publish(ctx, domain.NewOrderPlacedEvent(order))
	o.logger.Info("order placed", "order_id", order.ID, "user_id", userID,
		"product_id", order.ProductID, "quantity", order.Quantity)

	return LineResult{
		Index:     index,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Status:    LineCreated,
		Order:     &order,
	}
}

func (o *Orchestrator) reject(ctx context.Context, index int, item LineItem, err error) LineResult {
	kind := domain.Kind(err)
	o.lines.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", "rejected"),
		attribute.String("reason", string(kind)),
	))
	if kind == domain.KindInternal {
		o.logger.Error("checkout line failed", "error", err, "product_id", item.ProductID, "quantity", item.Quantity)
	}

	message := err.Error()
	if kind == domain.KindInternal {
		message = "internal error"
	}
	return LineResult{
		Index:     index,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Status:    LineRejected,
		Reason:    kind,
		Message:   message,
		Err:       err,
	}
}

func (o *Orchestrator) publish(ctx context.Context, event domain.OrderEvent) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.Publish(ctx, event.OrderID, event); err != nil {
		o.logger.Error("failed to publish order event", "error", err, "order_id", event.OrderID, "type", event.Type)
	}
}
