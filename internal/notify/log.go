package notify

import (
	"context"
	"log/slog"

	"github.com/jcmexdev/gameshop/internal/identity"
	"github.com/jcmexdev/gameshop/internal/orders"
)

// LogNotifier writes notifications to the structured log. Used when no
// broker is configured; the order flow behaves identically either way.
type LogNotifier struct{}

func (LogNotifier) NotifyBuyer(ctx context.Context, order *orders.Order, buyer *identity.Identity) error {
	email := ""
	if buyer != nil {
		email = buyer.Email
	}
	slog.InfoContext(ctx, "buyer notification",
		"order_id", order.OrderID, "email", email, "total", order.Amount().String())
	return nil
}

func (LogNotifier) NotifyOperator(ctx context.Context, order *orders.Order, buyer *identity.Identity) error {
	slog.InfoContext(ctx, "operator notification",
		"order_id", order.OrderID, "method", order.Method, "total", order.Amount().String())
	return nil
}

var _ Notifier = LogNotifier{}
