package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/walletd/pkg/observability"
)

// Cool-down windows during which a tier is not raised again.
const (
	LowBalanceCooldown = 24 * time.Hour
	ExhaustedCooldown  = 6 * time.Hour
)

// Tier is one low-balance threshold test.
type Tier struct {
	Level     WarningLevel
	Threshold int64
	Cooldown  time.Duration
}

// Matches reports whether balance falls inside the tier.
func (t Tier) Matches(balance int64) bool {
	if t.Level == WarningLevelExhausted {
		return balance <= t.Threshold
	}
	return balance > 0 && balance < t.Threshold
}

// Tiers returns the threshold tests for an hourly rate in cents: less than
// an hour left, less than five minutes left, and exhausted.
func Tiers(hourlyCost int64) []Tier {
	return []Tier{
		{Level: WarningLevelEightyPercent, Threshold: hourlyCost, Cooldown: LowBalanceCooldown},
		{Level: WarningLevelNinetyFivePercent, Threshold: (5*hourlyCost + 59) / 60, Cooldown: LowBalanceCooldown},
		{Level: WarningLevelExhausted, Threshold: 0, Cooldown: ExhaustedCooldown},
	}
}

// Monitor raises deduplicated low-balance warnings.
type Monitor struct {
	rates    RateSource
	warnings WarningStore
	metrics  *observability.Metrics
	logger   logrus.FieldLogger
	now      func() time.Time
}

// NewMonitor creates a Monitor.
func NewMonitor(rates RateSource, warnings WarningStore, metrics *observability.Metrics, logger logrus.FieldLogger) *Monitor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Monitor{rates: rates, warnings: warnings, metrics: metrics, logger: logger, now: time.Now}
}

// Check evaluates balance against every tier and raises a warning for each
// matching tier that has not fired within its cool-down. Tiers are
// independent: a failure in one does not stop the others. Failures are
// logged here and returned for the caller's information only.
func (m *Monitor) Check(ctx context.Context, orgID string, balance int64) ([]*LowBalanceWarning, error) {
	log := m.logger.WithFields(logrus.Fields{"organization_id": orgID, "balance": balance})

	var errs []error
	tiers := Tiers(0)
	rate, err := m.rates.GetRate(ctx)
	if err != nil {
		// Without a rate only the exhausted tier can be evaluated.
		log.WithError(err).Warn("Rate unavailable for low balance check")
		errs = append(errs, err)
		tiers = tiers[2:]
	} else {
		tiers = Tiers(rate)
	}

	now := m.now().UTC()
	var raised []*LowBalanceWarning
	for _, tier := range tiers {
		if !tier.Matches(balance) {
			continue
		}
		w := &LowBalanceWarning{
			ID:               uuid.NewString(),
			OrganizationID:   orgID,
			Level:            tier.Level,
			BalanceBefore:    balance,
			BalanceThreshold: tier.Threshold,
			TriggeredAt:      now,
		}
		created, err := m.warnings.RaiseWarning(ctx, w, now.Add(-tier.Cooldown))
		if err != nil {
			log.WithError(err).WithField("level", tier.Level).Error("Failed to raise low balance warning")
			errs = append(errs, fmt.Errorf("raise %s warning: %w", tier.Level, err))
			continue
		}
		if !created {
			log.WithField("level", tier.Level).Debug("Low balance warning suppressed by cool-down")
			continue
		}
		m.metrics.RecordLowBalanceWarning(string(tier.Level))
		log.WithFields(logrus.Fields{"level": tier.Level, "threshold": tier.Threshold}).Warn("Low balance warning raised")
		raised = append(raised, w)
	}

	return raised, errors.Join(errs...)
}

// ListWarnings returns recent warnings for orgID, newest first.
func (m *Monitor) ListWarnings(ctx context.Context, orgID string, limit int) ([]*LowBalanceWarning, error) {
	if orgID == "" {
		return nil, InvalidArgument("organization id is required")
	}
	if limit <= 0 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return m.warnings.ListWarnings(ctx, orgID, limit)
}

// MarkEmailSent records that the notifier delivered the warning email.
func (m *Monitor) MarkEmailSent(ctx context.Context, warningID string) (*LowBalanceWarning, error) {
	if warningID == "" {
		return nil, InvalidArgument("warning id is required")
	}
	return m.warnings.MarkWarningEmailSent(ctx, warningID, m.now().UTC())
}
