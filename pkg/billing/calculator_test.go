package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/walletd/pkg/billing"
)

func TestCostForDuration(t *testing.T) {
	tests := []struct {
		name     string
		seconds  int64
		rate     int64
		expected int64
	}{
		{"one second rounds up to a cent", 1, 200, 1},
		{"half hour", 1800, 200, 100},
		{"full hour", 3600, 200, 200},
		{"zero duration", 0, 200, 0},
		{"free rate", 7200, 0, 0},
		{"just over an hour", 3601, 200, 201},
		{"odd rate", 60, 7, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, err := billing.CostForDuration(tt.seconds, tt.rate)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cost)
		})
	}

	t.Run("negative duration", func(t *testing.T) {
		_, err := billing.CostForDuration(-1, 200)
		assert.True(t, billing.IsInvalidArgument(err))
	})
}

func TestCalculator_CalculateCost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "org-1")
	f.fund(t, "org-1", 1000)

	t.Run("affordable", func(t *testing.T) {
		est, err := f.svc.CalculateCost(ctx, "org-1", 1800)
		require.NoError(t, err)
		assert.Equal(t, &billing.CostEstimate{
			OrganizationID:   "org-1",
			DurationSeconds:  1800,
			RatePerHour:      200,
			TotalCost:        100,
			CanAfford:        true,
			CurrentBalance:   1000,
			BalanceAfterCost: 900,
		}, est)
	})

	t.Run("exact balance is affordable", func(t *testing.T) {
		est, err := f.svc.CalculateCost(ctx, "org-1", 5*3600)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), est.TotalCost)
		assert.True(t, est.CanAfford)
		assert.Equal(t, int64(0), est.BalanceAfterCost)
	})

	t.Run("unaffordable", func(t *testing.T) {
		est, err := f.svc.CalculateCost(ctx, "org-1", 6*3600)
		require.NoError(t, err)
		assert.False(t, est.CanAfford)
		assert.Equal(t, int64(-200), est.BalanceAfterCost)
	})

	t.Run("repeated reads are identical and do not mutate", func(t *testing.T) {
		first, err := f.svc.CalculateCost(ctx, "org-1", 1234)
		require.NoError(t, err)
		second, err := f.svc.CalculateCost(ctx, "org-1", 1234)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, int64(1000), f.balance(t, "org-1"))
		assert.Len(t, f.history(t, "org-1"), 1)
	})

	t.Run("negative duration", func(t *testing.T) {
		_, err := f.svc.CalculateCost(ctx, "org-1", -5)
		assert.True(t, billing.IsInvalidArgument(err))
	})

	t.Run("unknown wallet", func(t *testing.T) {
		_, err := f.svc.CalculateCost(ctx, "org-2", 60)
		assert.True(t, billing.IsNotFound(err))
	})
}
