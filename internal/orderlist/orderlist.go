// Package orderlist holds the order list shown to operators and patches it from
// realtime status updates.
package orderlist

import (
	"context"
	"sync"

	"github.com/danielCarlosRodriguez/utilesApp/internal/domain/schema"
	"github.com/danielCarlosRodriguez/utilesApp/internal/gateway"
	"github.com/danielCarlosRodriguez/utilesApp/internal/observability"
)

// ApplyStatus returns a copy of orders with the status of the order matching
// evt.OrderID replaced. Only the status changes, even when the event carries a full
// snapshot. When no order matches, the input slice is returned unchanged with false.
func ApplyStatus(orders []schema.Order, evt schema.OrderUpdated) ([]schema.Order, bool) {
	idx := -1
	for i := range orders {
		if orders[i].ID == evt.OrderID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return orders, false
	}
	patched := make([]schema.Order, len(orders))
	copy(patched, orders)
	patched[idx] = orders[idx].Clone()
	patched[idx].Status = evt.Status
	return patched, true
}

// Source lists orders from the backend.
type Source interface {
	ListOrders(ctx context.Context) gateway.Result[[]schema.Order]
}

// Store owns the held order list. Writes are serialised; the last write wins.
type Store struct {
	mu     sync.RWMutex
	orders []schema.Order
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{orders: []schema.Order{}}
}

// Replace swaps in a freshly fetched list.
func (s *Store) Replace(orders []schema.Order) {
	held := make([]schema.Order, len(orders))
	for i := range orders {
		held[i] = orders[i].Clone()
	}
	s.mu.Lock()
	s.orders = held
	s.mu.Unlock()
}

// Apply patches the held list with a status update and reports whether an order matched.
func (s *Store) Apply(evt schema.OrderUpdated) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	patched, ok := ApplyStatus(s.orders, evt)
	if ok {
		s.orders = patched
	}
	return ok
}

// Snapshot returns a copy of the held list.
func (s *Store) Snapshot() []schema.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.Order, len(s.orders))
	for i := range s.orders {
		out[i] = s.orders[i].Clone()
	}
	return out
}

// Len returns the number of held orders.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Refresh refetches the list. On failure the held list is kept and the error returned.
func (s *Store) Refresh(ctx context.Context, source Source) error {
	res := source.ListOrders(ctx)
	if res.Err != nil {
		return res.Err
	}
	s.Replace(res.Value)
	return nil
}

// Follow drains updates into Apply until the channel closes or ctx ends.
func (s *Store) Follow(ctx context.Context, updates <-chan schema.OrderUpdated) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-updates:
			if !ok {
				return
			}
			if !s.Apply(evt) {
				observability.Log().Debug("order update for unknown order ignored",
					observability.F("order_id", evt.OrderID))
			}
		}
	}
}
