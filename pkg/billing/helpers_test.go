package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/walletd/pkg/async"
	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/storage/memory"
)

// mockDirectory is a function-field mock of billing.OrganizationDirectory.
type mockDirectory struct {
	ExistsFunc func(ctx context.Context, orgID string) (bool, error)
}

func (m *mockDirectory) Exists(ctx context.Context, orgID string) (bool, error) {
	return m.ExistsFunc(ctx, orgID)
}

func knownOrgs(ids ...string) *mockDirectory {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return &mockDirectory{ExistsFunc: func(_ context.Context, orgID string) (bool, error) {
		return set[orgID], nil
	}}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store      *memory.Store
	svc        *billing.Service
	dispatcher *async.Dispatcher
	clock      *fakeClock
	hook       *test.Hook
}

const testActor = "actor-1"

func newFixture(t *testing.T, orgIDs ...string) *fixture {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	store := memory.New()
	for _, id := range orgIDs {
		_, err := store.CreateWallet(context.Background(), id, "usd")
		require.NoError(t, err)
	}

	clock := newFakeClock()
	dispatcher := async.NewDispatcher(logger, time.Second)
	svc := billing.NewService(billing.Stores{
		Ledger:        store,
		Calculations:  store,
		Warnings:      store,
		Config:        store,
		Organizations: knownOrgs(orgIDs...),
	}, billing.ServiceConfig{
		Dispatcher: dispatcher,
		Logger:     logger,
		Clock:      clock.Now,
	})

	return &fixture{store: store, svc: svc, dispatcher: dispatcher, clock: clock, hook: hook}
}

func (f *fixture) fund(t *testing.T, orgID string, amount int64) {
	t.Helper()
	_, err := f.svc.Credit(context.Background(), billing.CreditRequest{
		OrganizationID: orgID,
		Amount:         amount,
		Description:    "top up",
		ActorID:        testActor,
	})
	require.NoError(t, err)
	f.dispatcher.Wait()
}

func (f *fixture) balance(t *testing.T, orgID string) int64 {
	t.Helper()
	w, err := f.svc.GetWallet(context.Background(), orgID)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) history(t *testing.T, orgID string) []*billing.Transaction {
	t.Helper()
	page, err := f.svc.ListTransactions(context.Background(), orgID, billing.TransactionFilter{Limit: billing.MaxPageLimit})
	require.NoError(t, err)
	return page.Transactions
}

// assertConserved checks that replaying the history reproduces the balance.
func (f *fixture) assertConserved(t *testing.T, orgID string) {
	t.Helper()
	txns := f.history(t, orgID)
	var sum int64
	for _, txn := range txns {
		require.True(t, txn.Consistent(), "inconsistent transaction %s", txn.ID)
		sum += txn.SignedAmount()
	}
	require.Equal(t, f.balance(t, orgID), sum)
	if len(txns) > 0 {
		require.Equal(t, f.balance(t, orgID), txns[0].BalanceAfter)
	}
}
