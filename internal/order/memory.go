package order

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and local tooling.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[int64]Order
	notes  map[int64][]Note
}

// NewMemoryStore returns a store seeded with orders.
func NewMemoryStore(orders ...Order) *MemoryStore {
	s := &MemoryStore{orders: map[int64]Order{}, notes: map[int64][]Note{}}
	for _, o := range orders {
		s.Put(o)
	}
	return s
}

// Put inserts or replaces an order.
func (s *MemoryStore) Put(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Status == "" {
		o.Status = StatusPending
	}
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	s.orders[o.ID] = o
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// Transition implements Store.
func (s *MemoryStore) Transition(_ context.Context, id int64, t Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if !t.allows(o.Status) {
		return false, nil
	}
	now := time.Now()
	o.Status = t.To
	o.StatusReason = t.Reason
	if t.TransactionID != "" {
		o.TransactionID = t.TransactionID
	}
	if t.To == StatusPaid {
		o.PaidAt = &now
	}
	o.UpdatedAt = now
	s.orders[id] = o
	if t.Note != "" {
		s.notes[id] = append(s.notes[id], Note{OrderID: id, Body: t.Note, CreatedAt: now})
	}
	return true, nil
}

// Notes implements Store.
func (s *MemoryStore) Notes(_ context.Context, id int64) ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return nil, ErrNotFound
	}
	return append([]Note(nil), s.notes[id]...), nil
}
