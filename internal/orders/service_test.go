package orders

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gameshop/internal/identity"
	"github.com/jcmexdev/gameshop/internal/payment"
)

type countingNotifier struct {
	buyer    atomic.Int32
	operator atomic.Int32
	done     sync.WaitGroup
}

func (n *countingNotifier) NotifyBuyer(context.Context, *Order, *identity.Identity) error {
	defer n.done.Done()
	n.buyer.Add(1)
	return nil
}

func (n *countingNotifier) NotifyOperator(context.Context, *Order, *identity.Identity) error {
	defer n.done.Done()
	n.operator.Add(1)
	return nil
}

func testOrder(orderID string) *Order {
	return &Order{
		OrderID:       orderID,
		BuyerID:       "buyer-1",
		BuyerEmail:    "buyer@example.com",
		TransactionID: "pi_1",
		Method:        payment.MethodCard,
		Items:         []LineItem{{Name: "Account A", UnitPrice: 4700, Quantity: 1}},
		Total:         4700,
		Currency:      "usd",
	}
}

func TestFinalizeCreatesOnce(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	buyer := &identity.Identity{ID: "buyer-1", Email: "buyer@example.com"}

	stored, created, err := svc.Finalize(context.Background(), testOrder("ORD-AB12CD"), buyer)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusFulfilled, stored.Status)
	assert.False(t, stored.CreatedAt.IsZero())

	// Replay under the same order id returns the stored record unchanged.
	replay, created, err := svc.Finalize(context.Background(), testOrder("ORD-AB12CD"), buyer)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.CreatedAt, replay.CreatedAt)
	assert.Equal(t, 1, store.Len())
}

func TestFinalizeRequiresOrderID(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil)
	o := testOrder("")
	_, _, err := svc.Finalize(context.Background(), o, nil)
	require.Error(t, err)
}

func TestFinalizeRetriesThenReportsRecordingFailure(t *testing.T) {
	store := NewMemoryStore()
	store.FailNext(100, errors.New("mongo down"))
	svc := NewService(store, nil)
	svc.retryDelay = time.Millisecond

	_, _, err := svc.Finalize(context.Background(), testOrder("ORD-AB12CD"), nil)
	require.ErrorIs(t, err, ErrRecordingFailed)
}

func TestFinalizeRecoversWithinRetryBudget(t *testing.T) {
	store := NewMemoryStore()
	store.FailNext(2, errors.New("transient"))
	svc := NewService(store, nil)
	svc.retryDelay = time.Millisecond

	_, created, err := svc.Finalize(context.Background(), testOrder("ORD-AB12CD"), nil)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestFinalizeNotifiesOnlyOnFirstWrite(t *testing.T) {
	store := NewMemoryStore()
	notifier := &countingNotifier{}
	notifier.done.Add(2)
	svc := NewService(store, notifier)
	buyer := &identity.Identity{ID: "buyer-1"}

	_, created, err := svc.Finalize(context.Background(), testOrder("ORD-AB12CD"), buyer)
	require.NoError(t, err)
	require.True(t, created)

	// The replay must not notify again.
	_, created, err = svc.Finalize(context.Background(), testOrder("ORD-AB12CD"), buyer)
	require.NoError(t, err)
	require.False(t, created)

	notifier.done.Wait()
	assert.Equal(t, int32(1), notifier.buyer.Load())
	assert.Equal(t, int32(1), notifier.operator.Load())
}

func TestFinalizeConcurrentRaceWritesOnce(t *testing.T) {
	store := NewMemoryStore()
	notifier := &countingNotifier{}
	notifier.done.Add(2)
	svc := NewService(store, notifier)
	buyer := &identity.Identity{ID: "buyer-1"}

	// Client path and webhook path hit Finalize at the same time.
	var wg sync.WaitGroup
	var createdCount atomic.Int32
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := svc.Finalize(context.Background(), testOrder("ORD-AB12CD"), buyer)
			require.NoError(t, err)
			if created {
				createdCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), createdCount.Load())
	assert.Equal(t, 1, store.Len())

	notifier.done.Wait()
	assert.Equal(t, int32(1), notifier.buyer.Load())
}

func TestNewOrderIDFormat(t *testing.T) {
	seen := make(map[string]bool)
	for range 200 {
		id := NewOrderID()
		require.Len(t, id, 10)
		require.Equal(t, "ORD-", id[:4])
		for _, c := range id[4:] {
			assert.Contains(t, "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ", string(c))
		}
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
