package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newOrder(userID, productID string, quantity int) domain.Order {
	return domain.Order{
		UserID:      userID,
		ProductID:   productID,
		ProductName: "Widget",
		UnitCost:    decimal.RequireFromString("2.50"),
		Quantity:    quantity,
	}
}

func TestMemoryStoreCreate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	in := newOrder("u1", "p1", 3)
	in.Status = domain.OrderStatusShipped
	created, err := s.Create(ctx, in)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.OrderStatusPending, created.Status)
	assert.Equal(t, 3, created.Quantity)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestMemoryStoreCreateValidation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Create(ctx, newOrder("u1", "p1", 0))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = s.Create(ctx, newOrder("", "p1", 1))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = s.Create(ctx, newOrder("u1", "", 1))
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	first, _ := s.Create(ctx, newOrder("u1", "p1", 1))
	second, _ := s.Create(ctx, newOrder("u2", "p1", 1))
	third, _ := s.Create(ctx, newOrder("u1", "p2", 1))
	_, _, err := s.UpdateStatus(ctx, third.ID, func(domain.Order) (domain.OrderStatus, error) {
		return domain.OrderStatusConfirmed, nil
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{third.ID, second.ID, first.ID}},
		{"by user", Filter{UserID: "u1"}, []string{third.ID, first.ID}},
		{"by status", Filter{Status: domain.OrderStatusPending}, []string{second.ID, first.ID}},
		{"by user and status", Filter{UserID: "u1", Status: domain.OrderStatusConfirmed}, []string{third.ID}},
		{"no match", Filter{UserID: "u3"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, len(orders))
			for i, o := range orders {
				ids[i] = o.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMemoryStoreUpdateStatusKeepsQuantity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created, _ := s.Create(ctx, newOrder("u1", "p1", 7))

	updated, changed, err := s.UpdateStatus(ctx, created.ID, func(domain.Order) (domain.OrderStatus, error) {
		return domain.OrderStatusConfirmed, nil
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 7, updated.Quantity)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, created.UnitCost.Equal(updated.UnitCost))
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created, _ := s.Create(ctx, newOrder("u1", "p1", 1))

	deleted, err := s.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = s.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = s.UpdateStatus(ctx, created.ID, func(domain.Order) (domain.OrderStatus, error) {
		return domain.OrderStatusConfirmed, nil
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
