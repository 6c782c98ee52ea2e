package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	// RateConfigKey holds the hourly rate as a decimal dollar amount.
	RateConfigKey = "pricing_per_hour"
	// DefaultRatePerHour is used when RateConfigKey is unset.
	DefaultRatePerHour int64 = 200

	// rateLoadTimeout bounds a shared config read, which outlives the
	// caller that started it.
	rateLoadTimeout = 5 * time.Second
)

var hundred = decimal.NewFromInt(100)

// RateResolver reads the billable rate from the configuration store.
type RateResolver struct {
	store       ConfigStore
	defaultRate int64
	logger      logrus.FieldLogger
	group       singleflight.Group
}

// NewRateResolver creates a RateResolver. A non-positive defaultRate falls
// back to DefaultRatePerHour.
func NewRateResolver(store ConfigStore, defaultRate int64, logger logrus.FieldLogger) *RateResolver {
	if defaultRate <= 0 {
		defaultRate = DefaultRatePerHour
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RateResolver{store: store, defaultRate: defaultRate, logger: logger}
}

// GetRate returns the current rate in cents per hour. Concurrent callers
// share one config read; each caller still returns as soon as its own ctx
// is done.
func (r *RateResolver) GetRate(ctx context.Context) (int64, error) {
	ch := r.group.DoChan(RateConfigKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rateLoadTimeout)
		defer cancel()
		return r.load(loadCtx)
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int64), nil
	}
}

func (r *RateResolver) load(ctx context.Context) (int64, error) {
	value, found, err := r.store.GetConfig(ctx, RateConfigKey)
	if err != nil {
		return 0, Infrastructure("read rate config", err)
	}
	if !found {
		return r.defaultRate, nil
	}
	cents, err := ParseDollarRate(value)
	if err != nil {
		r.logger.WithFields(logrus.Fields{"key": RateConfigKey, "value": value}).WithError(err).Error("Invalid rate configuration")
		return 0, err
	}
	return cents, nil
}

// SetRate stores centsPerHour as the new rate.
func (r *RateResolver) SetRate(ctx context.Context, centsPerHour int64, actorID string) error {
	if centsPerHour < 0 {
		return InvalidArgument("rate must not be negative")
	}
	if centsPerHour > MaxRatePerHour {
		return InvalidArgument("rate must not exceed %d cents per hour", MaxRatePerHour)
	}
	if actorID == "" {
		return InvalidArgument("actor id is required")
	}
	if err := r.store.SetConfig(ctx, RateConfigKey, FormatDollarRate(centsPerHour), actorID); err != nil {
		return Infrastructure("write rate config", err)
	}
	r.logger.WithFields(logrus.Fields{"rate_per_hour": centsPerHour, "actor_id": actorID}).Info("Billing rate updated")
	return nil
}

// ParseDollarRate converts a dollar amount such as "2.50" into cents.
// Fractions of a cent are rounded up.
func ParseDollarRate(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidRate, value, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidRate, value)
	}
	cents := d.Mul(hundred).Ceil()
	if cents.GreaterThan(decimal.NewFromInt(MaxRatePerHour)) {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidRate, value)
	}
	return cents.IntPart(), nil
}

// FormatDollarRate renders cents as a dollar amount with two decimals.
func FormatDollarRate(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
