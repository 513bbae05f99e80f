package orders

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a map-backed Store. It backs local development without a
// MongoDB instance and every test that exercises the finalization races.
type MemoryStore struct {
	mu     sync.Mutex
	byID   map[string]*Order
	// failures, when positive, makes the next CreateOrder calls fail.
	// Used by tests to exercise the bounded-retry path.
	failures int
	failErr  error
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Order)}
}

// FailNext makes the next n CreateOrder calls return err.
func (s *MemoryStore) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
	s.failErr = err
}

func (s *MemoryStore) CreateOrder(_ context.Context, order *Order) (*Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return nil, false, s.failErr
	}

	if existing, ok := s.byID[order.OrderID]; ok {
		cp := *existing
		return &cp, false, nil
	}

	cp := *order
	s.byID[order.OrderID] = &cp
	out := cp
	return &out, true, nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.byID[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) ListOrdersForBuyer(_ context.Context, buyerID string) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.byID {
		if o.BuyerID == buyerID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListAllOrders(_ context.Context) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Order, 0, len(s.byID))
	for _, o := range s.byID {
		cp := *o
		out = append(out, &cp)
	}
	sortNewestFirst(out)
	return out, nil
}

// Len reports how many orders the store holds (for tests).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func sortNewestFirst(orders []*Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

var _ Store = (*MemoryStore)(nil)
