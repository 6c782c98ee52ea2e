package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/observability"
	"github.com/platinummonkey/walletd/pkg/orgs"
	"github.com/platinummonkey/walletd/pkg/storage/cache"
)

func TestOpenMemory(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	b, err := Open(ctx, DefaultConfig(), nil, logger)
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.DB)
	assert.Nil(t, b.Redis)
	assert.IsType(t, &orgs.CachedService{}, b.Organizations)

	org, wallet, err := b.Organizations.CreateOrganization(ctx, &orgs.CreateOrgRequest{Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "usd", wallet.Currency)

	ok, err := b.Stores.Organizations.Exists(ctx, org.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := b.Stores.Ledger.GetWallet(ctx, org.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Balance)
}

func TestOpenWithRedisConfigCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	logger, _ := test.NewNullLogger()
	cfg := DefaultConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.OrgCacheSize = 0

	b, err := Open(context.Background(), cfg, observability.NewMetrics(prometheus.NewRegistry()), logger)
	require.NoError(t, err)
	defer b.Close()

	require.NotNil(t, b.Redis)
	assert.IsType(t, &cache.ConfigCache{}, b.Stores.Config)
	assert.IsType(t, &orgs.MemoryService{}, b.Organizations)

	ctx := context.Background()
	require.NoError(t, b.Stores.Config.SetConfig(ctx, billing.RateConfigKey, "2.50", "admin"))
	value, ok, err := b.Stores.Config.GetConfig(ctx, billing.RateConfigKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2.50", value)
}

func TestOpenRejectsUnknownType(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := DefaultConfig()
	cfg.Type = "filesystem"

	_, err := Open(context.Background(), cfg, nil, logger)
	assert.EqualError(t, err, `unknown storage type "filesystem"`)
}
