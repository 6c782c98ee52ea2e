package billing_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/storage/memory"
)

// mockConfig is a function-field mock of billing.ConfigStore.
type mockConfig struct {
	GetConfigFunc func(ctx context.Context, key string) (string, bool, error)
	SetConfigFunc func(ctx context.Context, key, value, updatedBy string) error
}

func (m *mockConfig) GetConfig(ctx context.Context, key string) (string, bool, error) {
	return m.GetConfigFunc(ctx, key)
}

func (m *mockConfig) SetConfig(ctx context.Context, key, value, updatedBy string) error {
	return m.SetConfigFunc(ctx, key, value, updatedBy)
}

func TestParseDollarRate(t *testing.T) {
	tests := []struct {
		value    string
		expected int64
		wantErr  bool
	}{
		{"2", 200, false},
		{"2.00", 200, false},
		{"0.5", 50, false},
		{"1.234", 124, false},
		{"0", 0, false},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cents, err := billing.ParseDollarRate(tt.value)
			if tt.wantErr {
				assert.ErrorIs(t, err, billing.ErrInvalidRate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cents)
		})
	}
}

func TestFormatDollarRate(t *testing.T) {
	assert.Equal(t, "2.00", billing.FormatDollarRate(200))
	assert.Equal(t, "0.05", billing.FormatDollarRate(5))
	assert.Equal(t, "12.34", billing.FormatDollarRate(1234))
}

func TestRateResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("default when unset", func(t *testing.T) {
		r := billing.NewRateResolver(memory.New(), 0, nil)
		rate, err := r.GetRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, billing.DefaultRatePerHour, rate)
	})

	t.Run("configured default", func(t *testing.T) {
		r := billing.NewRateResolver(memory.New(), 350, nil)
		rate, err := r.GetRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(350), rate)
	})

	t.Run("set then get round trips", func(t *testing.T) {
		store := memory.New()
		r := billing.NewRateResolver(store, 0, nil)
		require.NoError(t, r.SetRate(ctx, 450, "admin"))

		value, _, _ := store.GetConfig(ctx, billing.RateConfigKey)
		assert.Equal(t, "4.50", value)

		rate, err := r.GetRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(450), rate)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		r := billing.NewRateResolver(memory.New(), 0, nil)
		assert.True(t, billing.IsInvalidArgument(r.SetRate(ctx, -1, "admin")))
		assert.True(t, billing.IsInvalidArgument(r.SetRate(ctx, 100, "")))
	})

	t.Run("every accepted rate reads back", func(t *testing.T) {
		store := memory.New()
		r := billing.NewRateResolver(store, 0, nil)

		require.NoError(t, r.SetRate(ctx, billing.MaxRatePerHour, "admin"))
		rate, err := r.GetRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, billing.MaxRatePerHour, rate)

		err = r.SetRate(ctx, billing.MaxRatePerHour+1, "admin")
		assert.True(t, billing.IsInvalidArgument(err))
		err = r.SetRate(ctx, 300_000_000_000, "admin")
		assert.True(t, billing.IsInvalidArgument(err))

		rate, err = r.GetRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, billing.MaxRatePerHour, rate)
	})

	t.Run("cancelled caller does not cancel the shared read", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		loadErr := make(chan error, 1)
		var calls atomic.Int32
		r := billing.NewRateResolver(&mockConfig{
			GetConfigFunc: func(ctx context.Context, _ string) (string, bool, error) {
				if calls.Add(1) == 1 {
					close(entered)
					<-release
					loadErr <- ctx.Err()
				}
				return "3.00", true, nil
			},
		}, 0, nil)

		callerCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			_, err := r.GetRate(callerCtx)
			done <- err
		}()

		<-entered
		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("GetRate did not return after its context was cancelled")
		}

		close(release)
		assert.NoError(t, <-loadErr)

		rate, err := r.GetRate(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(300), rate)
	})

	t.Run("store failure is infrastructure", func(t *testing.T) {
		r := billing.NewRateResolver(&mockConfig{
			GetConfigFunc: func(context.Context, string) (string, bool, error) {
				return "", false, errors.New("connection refused")
			},
		}, 0, nil)
		_, err := r.GetRate(ctx)
		assert.True(t, billing.IsInfrastructure(err))
	})

	t.Run("garbage config is an invalid rate", func(t *testing.T) {
		r := billing.NewRateResolver(&mockConfig{
			GetConfigFunc: func(context.Context, string) (string, bool, error) {
				return "two dollars", true, nil
			},
		}, 0, nil)
		_, err := r.GetRate(ctx)
		assert.ErrorIs(t, err, billing.ErrInvalidRate)
		assert.True(t, billing.IsInfrastructure(err))
	})
}
