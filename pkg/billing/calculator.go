package billing

import (
	"context"
	"math"
)

const (
	secondsPerHour = 3600
	// MaxRatePerHour bounds rates so that a year of usage cannot overflow
	// int64. SetRate rejects anything above it.
	MaxRatePerHour int64 = math.MaxInt64 / (366 * 24 * secondsPerHour)
)

// RateSource provides the current hourly rate in cents.
type RateSource interface {
	GetRate(ctx context.Context) (int64, error)
}

// WalletReader reads wallet balances without locking.
type WalletReader interface {
	GetWallet(ctx context.Context, orgID string) (*Wallet, error)
}

// CostForDuration returns ceil(durationSeconds * ratePerHour / 3600).
func CostForDuration(durationSeconds, ratePerHour int64) (int64, error) {
	if durationSeconds < 0 {
		return 0, InvalidArgument("duration must not be negative")
	}
	if ratePerHour < 0 {
		return 0, InvalidArgument("rate must not be negative")
	}
	if ratePerHour > 0 && durationSeconds > (math.MaxInt64-(secondsPerHour-1))/ratePerHour {
		return 0, InvalidArgument("duration too large")
	}
	return (durationSeconds*ratePerHour + secondsPerHour - 1) / secondsPerHour, nil
}

// Calculator prices usage against a wallet. It never mutates state.
type Calculator struct {
	rates   RateSource
	wallets WalletReader
}

// NewCalculator creates a Calculator.
func NewCalculator(rates RateSource, wallets WalletReader) *Calculator {
	return &Calculator{rates: rates, wallets: wallets}
}

// CalculateCost prices durationSeconds for orgID at the current rate. The
// balance read is advisory; the debit performs the authoritative check.
func (c *Calculator) CalculateCost(ctx context.Context, orgID string, durationSeconds int64) (*CostEstimate, error) {
	if orgID == "" {
		return nil, InvalidArgument("organization id is required")
	}
	if durationSeconds < 0 {
		return nil, InvalidArgument("duration must not be negative")
	}

	rate, err := c.rates.GetRate(ctx)
	if err != nil {
		return nil, err
	}
	cost, err := CostForDuration(durationSeconds, rate)
	if err != nil {
		return nil, err
	}

	wallet, err := c.wallets.GetWallet(ctx, orgID)
	if err != nil {
		return nil, err
	}

	after := wallet.Balance - cost
	return &CostEstimate{
		OrganizationID:   orgID,
		DurationSeconds:  durationSeconds,
		RatePerHour:      rate,
		TotalCost:        cost,
		CanAfford:        after >= 0,
		CurrentBalance:   wallet.Balance,
		BalanceAfterCost: after,
	}, nil
}
