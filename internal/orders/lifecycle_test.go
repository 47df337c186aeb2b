package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(domain.OrderEvent))
	return p.err
}

func (p *recordingPublisher) Events() []domain.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OrderEvent(nil), p.events...)
}

type restockCall struct {
	productID string
	delta     int
}

type recordingRestocker struct {
	mu    sync.Mutex
	calls []restockCall
	err   error
}

func (r *recordingRestocker) Restock(_ context.Context, productID string, delta int) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, restockCall{productID, delta})
	return domain.Product{ID: productID}, r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// advance walks a fresh order along the given path.
func advance(t *testing.T, l *Lifecycle, id string, path ...domain.OrderStatus) {
	t.Helper()
	for _, status := range path {
		_, err := l.Transition(context.Background(), id, status)
		require.NoError(t, err)
	}
}

func TestLifecycleTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path to delivered", func(t *testing.T) {
		store := NewMemoryStore()
		pub := &recordingPublisher{}
		l := NewLifecycle(store, discardLogger(), WithPublisher(pub))
		o, _ := store.Create(ctx, newOrder("u1", "p1", 2))

		advance(t, l, o.ID, domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered)

		got, _ := store.Get(ctx, o.ID)
		assert.Equal(t, domain.OrderStatusDelivered, got.Status)
		events := pub.Events()
		require.Len(t, events, 4)
		assert.Equal(t, domain.EventOrderStatusChanged, events[3].Type)
		assert.Equal(t, domain.OrderStatusShipped, events[3].PreviousStatus)
		assert.Equal(t, domain.OrderStatusDelivered, events[3].Status)
	})

	t.Run("delivered is terminal", func(t *testing.T) {
		store := NewMemoryStore()
		l := NewLifecycle(store, discardLogger())
		o, _ := store.Create(ctx, newOrder("u1", "p1", 2))
		advance(t, l, o.ID, domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusShipped, domain.OrderStatusDelivered)

		for _, target := range []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusShipped, domain.OrderStatusCancelled} {
			_, err := l.Transition(ctx, o.ID, target)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition, target)
		}
		got, _ := store.Get(ctx, o.ID)
		assert.Equal(t, domain.OrderStatusDelivered, got.Status)
	})

	t.Run("pending to cancelled", func(t *testing.T) {
		store := NewMemoryStore()
		l := NewLifecycle(store, discardLogger())
		o, _ := store.Create(ctx, newOrder("u1", "p1", 2))

		got, err := l.Transition(ctx, o.ID, domain.OrderStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, got.Status)

		_, err = l.Transition(ctx, o.ID, domain.OrderStatusConfirmed)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("skipping a step is rejected", func(t *testing.T) {
		store := NewMemoryStore()
		l := NewLifecycle(store, discardLogger())
		o, _ := store.Create(ctx, newOrder("u1", "p1", 2))

		_, err := l.Transition(ctx, o.ID, domain.OrderStatusShipped)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		got, _ := store.Get(ctx, o.ID)
		assert.Equal(t, domain.OrderStatusPending, got.Status)
	})

	t.Run("same status is a silent no-op", func(t *testing.T) {
		store := NewMemoryStore()
		pub := &recordingPublisher{}
		l := NewLifecycle(store, discardLogger(), WithPublisher(pub))
		o, _ := store.Create(ctx, newOrder("u1", "p1", 2))

		got, err := l.Transition(ctx, o.ID, domain.OrderStatusPending)
		require.NoError(t, err)
		assert.Equal(t, o.UpdatedAt, got.UpdatedAt)
		assert.Empty(t, pub.Events())
	})

	t.Run("unknown order", func(t *testing.T) {
		l := NewLifecycle(NewMemoryStore(), discardLogger())
		_, err := l.Transition(ctx, "missing", domain.OrderStatusConfirmed)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("unknown status", func(t *testing.T) {
		store := NewMemoryStore()
		l := NewLifecycle(store, discardLogger())
		o, _ := store.Create(ctx, newOrder("u1", "p1", 2))
		_, err := l.Transition(ctx, o.ID, domain.OrderStatus("LOST"))
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})

	t.Run("publish failure does not fail the transition", func(t *testing.T) {
		store := NewMemoryStore()
		l := NewLifecycle(store, discardLogger(), WithPublisher(&recordingPublisher{err: errors.New("broker down")}))
		o, _ := store.Create(ctx, newOrder("u1", "p1", 2))

		got, err := l.Transition(ctx, o.ID, domain.OrderStatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
	})
}

func TestLifecycleConcurrentTransitionsOnOneOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	l := NewLifecycle(store, discardLogger())
	o, _ := store.Create(ctx, newOrder("u1", "p1", 1))
	advance(t, l, o.ID, domain.OrderStatusConfirmed, domain.OrderStatusProcessing, domain.OrderStatusShipped)

	// From SHIPPED both targets are legal, but each one closes the other off.
	targets := []domain.OrderStatus{domain.OrderStatusDelivered, domain.OrderStatusCancelled}
	results := make([]error, 20)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = l.Transition(ctx, o.ID, targets[i%2])
		}(i)
	}
	wg.Wait()

	final, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, final.Status.IsTerminal())

	for i, err := range results {
		if targets[i%2] == final.Status {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		}
	}
}

func TestLifecycleRestockOnCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled by default", func(t *testing.T) {
		store := NewMemoryStore()
		l := NewLifecycle(store, discardLogger())
		o, _ := store.Create(ctx, newOrder("u1", "p1", 4))
		_, err := l.Transition(ctx, o.ID, domain.OrderStatusCancelled)
		require.NoError(t, err)
	})

	t.Run("cancel returns stock once", func(t *testing.T) {
		store := NewMemoryStore()
		restocker := &recordingRestocker{}
		l := NewLifecycle(store, discardLogger(), WithRestockOnCancel(restocker))
		o, _ := store.Create(ctx, newOrder("u1", "p1", 4))

		advance(t, l, o.ID, domain.OrderStatusConfirmed, domain.OrderStatusCancelled)
		_, err := l.Transition(ctx, o.ID, domain.OrderStatusCancelled)
		require.NoError(t, err)

		assert.Equal(t, []restockCall{{"p1", 4}}, restocker.calls)
	})

	t.Run("restock failure keeps the cancellation", func(t *testing.T) {
		store := NewMemoryStore()
		l := NewLifecycle(store, discardLogger(), WithRestockOnCancel(&recordingRestocker{err: domain.ErrNotFound}))
		o, _ := store.Create(ctx, newOrder("u1", "p1", 4))

		got, err := l.Transition(ctx, o.ID, domain.OrderStatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	})

	t.Run("delete of live order restocks", func(t *testing.T) {
		store := NewMemoryStore()
		restocker := &recordingRestocker{}
		l := NewLifecycle(store, discardLogger(), WithRestockOnCancel(restocker))
		live, _ := store.Create(ctx, newOrder("u1", "p1", 2))
		cancelled, _ := store.Create(ctx, newOrder("u1", "p2", 3))
		advance(t, l, cancelled.ID, domain.OrderStatusCancelled)

		_, err := l.Delete(ctx, live.ID)
		require.NoError(t, err)
		_, err = l.Delete(ctx, cancelled.ID)
		require.NoError(t, err)

		assert.Equal(t, []restockCall{{"p2", 3}, {"p1", 2}}, restocker.calls)
	})
}
