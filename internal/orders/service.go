package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcmexdev/gameshop/internal/identity"
)

// ErrRecordingFailed means the charge already succeeded at the gateway but
// the order could not be persisted within the retry budget. Callers must
// surface this distinctly from a payment failure: re-attempting the payment
// would double-charge the buyer.
var ErrRecordingFailed = errors.New("orders: payment captured but order recording failed")

// Dispatcher sends the post-finalization notifications. Satisfied by
// notify.Notifier; declared here so the service owns its dependency shape.
type Dispatcher interface {
	NotifyBuyer(ctx context.Context, order *Order, buyer *identity.Identity) error
	NotifyOperator(ctx context.Context, order *Order, buyer *identity.Identity) error
}

// Service finalizes orders exactly once and triggers notifications on the
// first (and only the first) successful write for a given order id.
type Service struct {
	store      Store
	notifier   Dispatcher
	maxWrites  int
	retryDelay time.Duration
}

// NewService constructs the finalization service. notifier may be nil.
func NewService(store Store, notifier Dispatcher) *Service {
	return &Service{
		store:      store,
		notifier:   notifier,
		maxWrites:  3,
		retryDelay: 200 * time.Millisecond,
	}
}

// Finalize persists the order idempotently. Whichever caller wins the write
// (client checkout path or webhook reconciler) triggers the notifications;
// the loser gets the stored record back and created=false.
//
// A store failure is retried within a small bounded budget and then reported
// as ErrRecordingFailed — at this point the money has moved, so the error is
// terminal for automation and needs human reconciliation.
func (s *Service) Finalize(ctx context.Context, order *Order, buyer *identity.Identity) (*Order, bool, error) {
	if order.OrderID == "" {
		return nil, false, errors.New("orders: order id is required")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = StatusFulfilled
	}

	var (
		stored  *Order
		created bool
		err     error
	)
	for attempt := 1; ; attempt++ {
		stored, created, err = s.store.CreateOrder(ctx, order)
		if err == nil {
			break
		}
		if attempt >= s.maxWrites || ctx.Err() != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrRecordingFailed, err)
		}
		slog.WarnContext(ctx, "order write failed, retrying",
			"order_id", order.OrderID, "attempt", attempt, "error", err)
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return nil, false, fmt.Errorf("%w: %v", ErrRecordingFailed, ctx.Err())
		}
	}

	if created {
		s.dispatch(ctx, stored, buyer)
	}
	return stored, created, nil
}

// GetOrder returns the stored record for an order id.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// ListForBuyer returns the buyer's own orders, newest first.
func (s *Service) ListForBuyer(ctx context.Context, buyerID string) ([]*Order, error) {
	return s.store.ListOrdersForBuyer(ctx, buyerID)
}

// ListAll returns every order. Privileged callers only; the HTTP layer
// enforces the admin check.
func (s *Service) ListAll(ctx context.Context) ([]*Order, error) {
	return s.store.ListAllOrders(ctx)
}

// dispatch fires both notifications in the background. Detached from the
// request context so an early HTTP response does not cancel them; each is
// independent and a failure is logged, never propagated.
func (s *Service) dispatch(ctx context.Context, order *Order, buyer *identity.Identity) {
	if s.notifier == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := s.notifier.NotifyBuyer(bg, order, buyer); err != nil {
			slog.ErrorContext(bg, "buyer notification failed", "order_id", order.OrderID, "error", err)
		}
	}()
	go func() {
		if err := s.notifier.NotifyOperator(bg, order, buyer); err != nil {
			slog.ErrorContext(bg, "operator notification failed", "order_id", order.OrderID, "error", err)
		}
	}()
}
