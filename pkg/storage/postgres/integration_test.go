//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/orgs"
)

// setupPostgres starts a disposable PostgreSQL, applies the migrations and
// returns a Store over it.
func setupPostgres(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	defer provider.Close()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("walletd_test"),
		tcpostgres.WithUsername("walletd"),
		tcpostgres.WithPassword("walletd_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	cm, err := NewConnectionManager(ctx, ConnectionConfig{
		PrimaryURL:  connStr,
		MaxConns:    20,
		MinConns:    2,
		Timeout:     10 * time.Second,
		MaxLifetime: time.Hour,
		MaxIdleTime: 10 * time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { cm.Close() })

	_, err = Migrate(ctx, cm.Primary(), logger)
	require.NoError(t, err)

	return NewStore(cm), cm.Primary()
}

func createOrg(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	org, _, err := orgs.NewPostgresService(db, "usd").CreateOrganization(context.Background(), &orgs.CreateOrgRequest{Name: name})
	require.NoError(t, err)
	return org.ID
}

func TestIntegration_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	store, db := setupPostgres(t)
	ledger := billing.NewLedger(store)
	ctx := context.Background()
	orgID := createOrg(t, db, "Concurrent Debits")

	_, err := ledger.Credit(ctx, billing.CreditRequest{OrganizationID: orgID, Amount: 100, ActorID: "admin"})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ledger.Debit(ctx, billing.DebitRequest{
				OrganizationID: orgID,
				Amount:         10,
				ReferenceID:    fmt.Sprintf("meeting-%d", i),
				ActorID:        "system",
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, billing.IsInsufficientBalance(err), "unexpected error: %v", err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	w, err := store.GetWallet(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Balance)

	page, total, err := store.ListTransactions(ctx, orgID, billing.TransactionFilter{Page: 1, Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	assert.Equal(t, w.Balance, page[0].BalanceAfter)
}

func TestIntegration_DuplicateReferenceDebitsOnce(t *testing.T) {
	store, db := setupPostgres(t)
	ledger := billing.NewLedger(store)
	ctx := context.Background()
	orgID := createOrg(t, db, "Duplicate Reference")

	_, err := ledger.Credit(ctx, billing.CreditRequest{OrganizationID: orgID, Amount: 1000, ActorID: "admin"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Debit(ctx, billing.DebitRequest{
				OrganizationID: orgID,
				Amount:         100,
				ReferenceID:    "meeting-1",
				ActorID:        "system",
			})
			if err != nil {
				assert.ErrorIs(t, err, billing.ErrDuplicateReference)
			}
		}()
	}
	wg.Wait()

	w, err := store.GetWallet(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), w.Balance)
}

func TestIntegration_WarningCooldown(t *testing.T) {
	store, db := setupPostgres(t)
	ctx := context.Background()
	orgID := createOrg(t, db, "Warnings")
	now := time.Now().UTC()

	raise := func(id string, at time.Time) bool {
		inserted, err := store.RaiseWarning(ctx, &billing.LowBalanceWarning{
			ID:             id,
			OrganizationID: orgID,
			Level:          billing.WarningLevelExhausted,
			TriggeredAt:    at,
		}, at.Add(-billing.ExhaustedCooldown))
		require.NoError(t, err)
		return inserted
	}

	assert.True(t, raise("a1b2c3d4-0000-4000-8000-000000000001", now))
	assert.False(t, raise("a1b2c3d4-0000-4000-8000-000000000002", now.Add(time.Hour)))
	assert.True(t, raise("a1b2c3d4-0000-4000-8000-000000000003", now.Add(7*time.Hour)))

	warnings, err := store.ListWarnings(ctx, orgID, 10)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	assert.Equal(t, "a1b2c3d4-0000-4000-8000-000000000003", warnings[0].ID)
}
