package orgs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/storage/memory"
)

func TestMemoryService_CreateCreatesWallet(t *testing.T) {
	store := memory.New()
	svc := NewMemoryService(store, "usd")
	ctx := context.Background()

	org, wallet, err := svc.CreateOrganization(ctx, &CreateOrgRequest{Name: "Acme", Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "eur", wallet.Currency)
	assert.Zero(t, wallet.Balance)

	stored, err := store.GetWallet(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, org.ID, stored.OrganizationID)

	ok, err := svc.Exists(ctx, org.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryService_DuplicateSlug(t *testing.T) {
	svc := NewMemoryService(memory.New(), "usd")
	ctx := context.Background()

	_, _, err := svc.CreateOrganization(ctx, &CreateOrgRequest{Name: "Acme"})
	require.NoError(t, err)

	_, _, err = svc.CreateOrganization(ctx, &CreateOrgRequest{Name: "acme"})
	assert.True(t, billing.IsConflict(err))
}

func TestMemoryService_GetOrganizationReturnsCopy(t *testing.T) {
	svc := NewMemoryService(memory.New(), "usd")
	ctx := context.Background()

	org, _, err := svc.CreateOrganization(ctx, &CreateOrgRequest{Name: "Acme"})
	require.NoError(t, err)

	got, err := svc.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := svc.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", again.Name)

	_, err = svc.GetOrganization(ctx, "missing")
	assert.ErrorIs(t, err, billing.ErrOrganizationNotFound)
}
