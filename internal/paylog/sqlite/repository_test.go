package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gameshop/internal/paylog"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "paylog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRecordAndListByRef(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	entries := []*paylog.Entry{
		{GatewayRef: "pi_1", OrderID: "ORD-AB12CD", Type: paylog.EventIntentCreated, Detail: "card 47.00 usd", RecordedAt: base},
		{GatewayRef: "pi_1", OrderID: "ORD-AB12CD", Type: paylog.EventWebhookVerified, Detail: "payment_intent.succeeded", RecordedAt: base.Add(time.Minute)},
		{GatewayRef: "pi_1", OrderID: "ORD-AB12CD", Type: paylog.EventOrderFinalized, RecordedAt: base.Add(2 * time.Minute)},
		{GatewayRef: "pi_other", Type: paylog.EventPaymentFailed, RecordedAt: base},
	}
	for _, e := range entries {
		require.NoError(t, repo.Record(ctx, e))
	}

	got, err := repo.ListByRef(ctx, "pi_1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Oldest first.
	assert.Equal(t, paylog.EventIntentCreated, got[0].Type)
	assert.Equal(t, paylog.EventWebhookVerified, got[1].Type)
	assert.Equal(t, paylog.EventOrderFinalized, got[2].Type)

	assert.Equal(t, "ORD-AB12CD", got[0].OrderID)
	assert.Equal(t, "card 47.00 usd", got[0].Detail)
	assert.True(t, got[0].RecordedAt.Equal(base))
}

func TestListByRefEmpty(t *testing.T) {
	repo := openTestRepo(t)

	got, err := repo.ListByRef(context.Background(), "pi_none")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordConcurrent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	done := make(chan error, 20)
	for i := range 20 {
		go func(i int) {
			done <- repo.Record(ctx, &paylog.Entry{
				GatewayRef: "pi_1",
				Type:       paylog.EventWebhookVerified,
				RecordedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
			})
		}(i)
	}
	for range 20 {
		require.NoError(t, <-done)
	}

	got, err := repo.ListByRef(ctx, "pi_1")
	require.NoError(t, err)
	assert.Len(t, got, 20)
}
