package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

type users map[string]domain.User

func (u users) Get(_ context.Context, id string) (domain.User, error) {
	if id == "flaky" {
		return domain.User{}, errors.New("connection reset")
	}
	user, ok := u[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

var directory = users{"u1": {ID: "u1", Email: "ada@example.com"}}

func newEmailServer(t *testing.T, status int) (*httptest.Server, *[]email.Message) {
	t.Helper()
	var received []email.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg email.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode email: %v", err)
		}
		received = append(received, msg)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func delivery(t *testing.T, header string, event domain.OrderEvent) messaging.Delivery {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return messaging.Delivery{Key: event.OrderID, EventType: header, Payload: payload}
}

func newHandler(srv *httptest.Server) *Handler {
	return NewHandler(directory, email.NewClient(srv.URL, srv.Client()), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleOrderPlaced(t *testing.T) {
	srv, received := newEmailServer(t, http.StatusOK)
	h := newHandler(srv)

	event := domain.NewOrderPlacedEvent(domain.Order{
		ID: "o1", UserID: "u1", ProductName: "Lamp",
		UnitCost: decimal.RequireFromString("19.5"), Quantity: 2, Status: domain.OrderStatusPending,
	})
	require.NoError(t, h.Handle(context.Background(), delivery(t, domain.EventOrderPlaced, event)))

	require.Len(t, *received, 1)
	msg := (*received)[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Order Placed: o1", msg.Subject)
	assert.Contains(t, msg.Body, "2 x Lamp, total 39.00")
}

func TestHandleStatusChangedWithoutHeader(t *testing.T) {
	srv, received := newEmailServer(t, http.StatusOK)
	h := newHandler(srv)

	event := domain.NewOrderStatusChangedEvent(domain.Order{
		ID: "o2", UserID: "u1", ProductName: "Desk", Quantity: 1, Status: domain.OrderStatusShipped,
	}, domain.OrderStatusProcessing)
	require.NoError(t, h.Handle(context.Background(), delivery(t, "", event)))

	require.Len(t, *received, 1)
	assert.Equal(t, "Order o2: SHIPPED", (*received)[0].Subject)
	assert.Contains(t, (*received)[0].Body, "on its way")
}

func TestHandleSkipsUndeliverable(t *testing.T) {
	srv, received := newEmailServer(t, http.StatusOK)
	h := newHandler(srv)
	ctx := context.Background()

	assert.NoError(t, h.Handle(ctx, messaging.Delivery{Payload: []byte("{broken")}))
	assert.NoError(t, h.Handle(ctx, delivery(t, "order.refunded", domain.OrderEvent{OrderID: "o3", UserID: "u1"})))
	assert.NoError(t, h.Handle(ctx, delivery(t, domain.EventOrderPlaced, domain.OrderEvent{OrderID: "o4", UserID: "ghost"})))
	assert.Empty(t, *received)
}

func TestHandleReturnsTransientErrors(t *testing.T) {
	srv, _ := newEmailServer(t, http.StatusServiceUnavailable)
	h := newHandler(srv)
	ctx := context.Background()

	err := h.Handle(ctx, delivery(t, domain.EventOrderPlaced, domain.OrderEvent{OrderID: "o5", UserID: "u1"}))
	assert.ErrorContains(t, err, "status 503")

	err = h.Handle(ctx, delivery(t, domain.EventOrderPlaced, domain.OrderEvent{OrderID: "o6", UserID: "flaky"}))
	assert.ErrorContains(t, err, "connection reset")
}
