package orders

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups for unknown order ids.
var ErrNotFound = errors.New("orders: order not found")

// Store persists orders keyed by their order id.
//
// CreateOrder must be idempotent on OrderID: when a record with the same id
// already exists, the existing record is returned unchanged and created is
// false. Implementations whose backend cannot insert atomically must catch
// the uniqueness violation from the concurrent writer and fold it into the
// idempotent case rather than surfacing it.
type Store interface {
	CreateOrder(ctx context.Context, order *Order) (stored *Order, created bool, err error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrdersForBuyer(ctx context.Context, buyerID string) ([]*Order, error)
	ListAllOrders(ctx context.Context) ([]*Order, error)
}
