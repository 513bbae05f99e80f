// Package notify delivers purchase confirmations to the buyer and the shop
// operator. Delivery is strictly best-effort: a failed notification is
// logged and dropped, it never blocks or reverts an order.
package notify

import (
	"context"

	"github.com/jcmexdev/gameshop/internal/identity"
	"github.com/jcmexdev/gameshop/internal/orders"
)

// Notifier sends the two confirmation messages for a finalized order.
// Each call is independent: a failure in one must not affect the other.
type Notifier interface {
	NotifyBuyer(ctx context.Context, order *orders.Order, buyer *identity.Identity) error
	NotifyOperator(ctx context.Context, order *orders.Order, buyer *identity.Identity) error
}
