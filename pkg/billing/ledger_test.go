package billing_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/walletd/pkg/billing"
)

func TestLedger_Credit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "org-1")

	txn, err := f.svc.Credit(ctx, billing.CreditRequest{
		OrganizationID: "org-1",
		Amount:         500,
		Description:    "invoice 42",
		ActorID:        testActor,
		ReferenceID:    "inv-42",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, txn.ID)
	assert.Equal(t, billing.TransactionTypeCredit, txn.Type)
	assert.Equal(t, int64(0), txn.BalanceBefore)
	assert.Equal(t, int64(500), txn.BalanceAfter)
	assert.Equal(t, testActor, txn.ProcessedBy)
	assert.Equal(t, "inv-42", txn.ReferenceID)
	assert.Equal(t, f.clock.Now(), txn.CreatedAt)
	assert.Equal(t, int64(500), f.balance(t, "org-1"))
	f.assertConserved(t, "org-1")

	t.Run("validation", func(t *testing.T) {
		for _, req := range []billing.CreditRequest{
			{OrganizationID: "org-1", Amount: 0, ActorID: testActor},
			{OrganizationID: "org-1", Amount: -10, ActorID: testActor},
			{OrganizationID: "", Amount: 10, ActorID: testActor},
			{OrganizationID: "org-1", Amount: 10, ActorID: ""},
		} {
			_, err := f.svc.Credit(ctx, req)
			assert.True(t, billing.IsInvalidArgument(err), "%+v", req)
		}
		assert.Equal(t, int64(500), f.balance(t, "org-1"))
	})

	t.Run("unknown wallet", func(t *testing.T) {
		_, err := f.svc.Credit(ctx, billing.CreditRequest{OrganizationID: "org-9", Amount: 10, ActorID: testActor})
		assert.ErrorIs(t, err, billing.ErrWalletNotFound)
		assert.True(t, billing.IsNotFound(err))
	})
}

func TestLedger_Debit(t *testing.T) {
	ctx := context.Background()

	t.Run("debits within balance", func(t *testing.T) {
		f := newFixture(t, "org-1")
		f.fund(t, "org-1", 1000)

		txn, err := f.svc.Debit(ctx, billing.DebitRequest{OrganizationID: "org-1", Amount: 100, Description: "usage", ActorID: testActor})
		require.NoError(t, err)
		f.dispatcher.Wait()

		assert.Equal(t, billing.TransactionTypeDebit, txn.Type)
		assert.Equal(t, int64(1000), txn.BalanceBefore)
		assert.Equal(t, int64(900), txn.BalanceAfter)
		assert.Equal(t, int64(900), f.balance(t, "org-1"))
		f.assertConserved(t, "org-1")
	})

	t.Run("insufficient balance leaves no trace", func(t *testing.T) {
		f := newFixture(t, "org-1")
		f.fund(t, "org-1", 50)

		_, err := f.svc.Debit(ctx, billing.DebitRequest{OrganizationID: "org-1", Amount: 200, ActorID: testActor})
		assert.True(t, billing.IsInsufficientBalance(err))
		f.dispatcher.Wait()

		assert.Equal(t, int64(50), f.balance(t, "org-1"))
		assert.Len(t, f.history(t, "org-1"), 1)
		warnings, err := f.svc.ListWarnings(ctx, "org-1", 10)
		require.NoError(t, err)
		assert.Empty(t, warnings)
	})

	t.Run("allow negative overrides the balance check", func(t *testing.T) {
		f := newFixture(t, "org-1")
		f.fund(t, "org-1", 50)

		txn, err := f.svc.Debit(ctx, billing.DebitRequest{OrganizationID: "org-1", Amount: 200, ActorID: testActor, AllowNegative: true})
		require.NoError(t, err)
		f.dispatcher.Wait()

		assert.Equal(t, int64(-150), txn.BalanceAfter)
		assert.Equal(t, int64(-150), f.balance(t, "org-1"))
		f.assertConserved(t, "org-1")
	})

	t.Run("non-positive amount", func(t *testing.T) {
		f := newFixture(t, "org-1")
		for _, amount := range []int64{0, -1} {
			_, err := f.svc.Debit(ctx, billing.DebitRequest{OrganizationID: "org-1", Amount: amount, ActorID: testActor, AllowNegative: true})
			assert.True(t, billing.IsInvalidArgument(err))
		}
		assert.Empty(t, f.history(t, "org-1"))
	})

	t.Run("reference can be debited once", func(t *testing.T) {
		f := newFixture(t, "org-1")
		f.fund(t, "org-1", 1000)

		first, err := f.svc.Debit(ctx, billing.DebitRequest{OrganizationID: "org-1", Amount: 100, ActorID: testActor, ReferenceID: "meeting-1"})
		require.NoError(t, err)

		_, err = f.svc.Debit(ctx, billing.DebitRequest{OrganizationID: "org-1", Amount: 100, ActorID: testActor, ReferenceID: "meeting-1"})
		require.Error(t, err)
		assert.True(t, billing.IsConflict(err))
		var dup *billing.DuplicateReferenceError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, first.ID, dup.Existing.ID)
		f.dispatcher.Wait()

		assert.Equal(t, int64(900), f.balance(t, "org-1"))
	})
}

func TestLedger_ConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "org-1", "org-2")

	const workers = 50
	const amount = 10
	f.fund(t, "org-1", workers*amount)
	f.fund(t, "org-2", workers*amount)

	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		for _, org := range []string{"org-1", "org-2"} {
			wg.Add(1)
			go func(org string, i int) {
				defer wg.Done()
				_, err := f.svc.Debit(ctx, billing.DebitRequest{
					OrganizationID: org,
					Amount:         amount,
					ActorID:        testActor,
					ReferenceID:    fmt.Sprintf("m-%d", i),
				})
				errs <- err
			}(org, i)
		}
	}
	wg.Wait()
	close(errs)
	f.dispatcher.Wait()

	for err := range errs {
		require.NoError(t, err)
	}
	for _, org := range []string{"org-1", "org-2"} {
		assert.Equal(t, int64(0), f.balance(t, org))
		assert.Len(t, f.history(t, org), workers+1)
		f.assertConserved(t, org)
	}
}

func TestLedger_ConcurrentOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "org-1")
	f.fund(t, "org-1", 95)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Debit(ctx, billing.DebitRequest{OrganizationID: "org-1", Amount: 10, ActorID: testActor})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, billing.IsInsufficientBalance(err))
		}()
	}
	wg.Wait()
	f.dispatcher.Wait()

	assert.Equal(t, 9, succeeded)
	assert.Equal(t, int64(5), f.balance(t, "org-1"))
	f.assertConserved(t, "org-1")
}

func TestLedger_MonitorFailureDoesNotAffectDebit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "org-1")
	f.fund(t, "org-1", 100)

	// A garbage rate makes the monitor fail after the debit commits.
	require.NoError(t, f.store.SetConfig(ctx, billing.RateConfigKey, "not-a-number", "tester"))

	txn, err := f.svc.Debit(ctx, billing.DebitRequest{OrganizationID: "org-1", Amount: 100, ActorID: testActor})
	require.NoError(t, err)
	f.dispatcher.Wait()

	assert.Equal(t, int64(0), txn.BalanceAfter)
	assert.Equal(t, int64(0), f.balance(t, "org-1"))

	var logged bool
	for _, entry := range f.hook.AllEntries() {
		if entry.Message == "Background task failed" && entry.Level == logrus.WarnLevel {
			logged = true
		}
	}
	assert.True(t, logged, "monitor failure should be logged")

	// The exhausted tier does not depend on the rate and is still raised.
	warnings, err := f.svc.ListWarnings(ctx, "org-1", 10)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, billing.WarningLevelExhausted, warnings[0].Level)
}

func TestLedger_ListTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "org-1")
	for i := 0; i < 25; i++ {
		f.fund(t, "org-1", 10)
	}

	page, err := f.svc.ListTransactions(ctx, "org-1", billing.TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, page.Transactions, billing.DefaultPageLimit)
	assert.Equal(t, billing.Pagination{Page: 1, Limit: 20, Total: 25, TotalPages: 2}, page.Pagination)
	assert.Equal(t, int64(250), page.Transactions[0].BalanceAfter)

	_, err = f.svc.ListTransactions(ctx, "org-1", billing.TransactionFilter{Limit: 101})
	assert.True(t, billing.IsInvalidArgument(err))

	_, err = f.svc.ListTransactions(ctx, "org-1", billing.TransactionFilter{Type: "REFUND"})
	assert.True(t, billing.IsInvalidArgument(err))

	_, err = f.svc.ListTransactions(ctx, "org-2", billing.TransactionFilter{})
	assert.True(t, billing.IsNotFound(err))
}
