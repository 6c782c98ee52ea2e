package billing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/walletd/pkg/observability"
)

// Stores groups the storage capabilities the billing components need. A
// single backend usually provides all of them.
type Stores struct {
	Ledger        LedgerStore
	Calculations  CalculationStore
	Warnings      WarningStore
	Config        ConfigStore
	Organizations OrganizationDirectory
}

// ServiceConfig configures NewService.
type ServiceConfig struct {
	DefaultRatePerHour int64
	// Dispatcher runs post-debit balance checks. Without one no
	// low-balance warnings are raised.
	Dispatcher Dispatcher
	Metrics    *observability.Metrics
	Logger     logrus.FieldLogger
	// Clock overrides time.Now for every component.
	Clock func() time.Time
}

// Service wires the rate resolver, calculator, ledger, orchestrator and
// monitor over one set of stores. It is the entry point for transports.
type Service struct {
	Rates        *RateResolver
	Calculator   *Calculator
	Ledger       *Ledger
	Orchestrator *Orchestrator
	Monitor      *Monitor

	calculations CalculationStore
}

// NewService builds a Service.
func NewService(stores Stores, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	rates := NewRateResolver(stores.Config, cfg.DefaultRatePerHour, logger.WithField("component", "rate_resolver"))
	monitor := NewMonitor(rates, stores.Warnings, cfg.Metrics, logger.WithField("component", "low_balance_monitor"))

	opts := []LedgerOption{
		WithLedgerMetrics(cfg.Metrics),
		WithLedgerLogger(logger.WithField("component", "ledger")),
	}
	if cfg.Dispatcher != nil {
		opts = append(opts, WithBalanceMonitor(monitor, cfg.Dispatcher))
	}
	if cfg.Clock != nil {
		opts = append(opts, WithLedgerClock(cfg.Clock))
		monitor.now = cfg.Clock
	}
	ledger := NewLedger(stores.Ledger, opts...)
	calculator := NewCalculator(rates, ledger)
	orchestrator := NewOrchestrator(stores.Organizations, calculator, ledger, stores.Calculations, cfg.Metrics, logger.WithField("component", "orchestrator"))
	if cfg.Clock != nil {
		orchestrator.now = cfg.Clock
	}

	return &Service{
		Rates:        rates,
		Calculator:   calculator,
		Ledger:       ledger,
		Orchestrator: orchestrator,
		Monitor:      monitor,
		calculations: stores.Calculations,
	}
}

// GetWallet returns the organization's wallet.
func (s *Service) GetWallet(ctx context.Context, orgID string) (*Wallet, error) {
	return s.Ledger.GetWallet(ctx, orgID)
}

// ListTransactions returns a page of wallet history.
func (s *Service) ListTransactions(ctx context.Context, orgID string, filter TransactionFilter) (*TransactionPage, error) {
	return s.Ledger.ListTransactions(ctx, orgID, filter)
}

// GetRate returns the current rate in cents per hour.
func (s *Service) GetRate(ctx context.Context) (int64, error) {
	return s.Rates.GetRate(ctx)
}

// SetRate replaces the rate.
func (s *Service) SetRate(ctx context.Context, centsPerHour int64, actorID string) error {
	return s.Rates.SetRate(ctx, centsPerHour, actorID)
}

// CalculateCost prices a duration against the organization's wallet.
func (s *Service) CalculateCost(ctx context.Context, orgID string, durationSeconds int64) (*CostEstimate, error) {
	return s.Calculator.CalculateCost(ctx, orgID, durationSeconds)
}

// ProcessMeetingBilling charges a finished meeting.
func (s *Service) ProcessMeetingBilling(ctx context.Context, req MeetingBillingRequest, actorID string) (*BillingResult, error) {
	return s.Orchestrator.ProcessMeetingBilling(ctx, req, actorID)
}

// CanStartMeeting is the admission pre-check for a meeting.
func (s *Service) CanStartMeeting(ctx context.Context, orgID string, estimatedMinutes int64) (bool, error) {
	return s.Orchestrator.CanStartMeeting(ctx, orgID, estimatedMinutes)
}

// Credit adds funds to a wallet.
func (s *Service) Credit(ctx context.Context, req CreditRequest) (*Transaction, error) {
	return s.Ledger.Credit(ctx, req)
}

// Debit removes funds from a wallet.
func (s *Service) Debit(ctx context.Context, req DebitRequest) (*Transaction, error) {
	return s.Ledger.Debit(ctx, req)
}

// ListWarnings returns the organization's low-balance warnings.
func (s *Service) ListWarnings(ctx context.Context, orgID string, limit int) ([]*LowBalanceWarning, error) {
	return s.Monitor.ListWarnings(ctx, orgID, limit)
}

// MarkWarningEmailSent flags a warning as notified.
func (s *Service) MarkWarningEmailSent(ctx context.Context, warningID string) (*LowBalanceWarning, error) {
	return s.Monitor.MarkEmailSent(ctx, warningID)
}

// ListCalculations returns recorded billing calculations, newest first.
func (s *Service) ListCalculations(ctx context.Context, orgID string, limit int) ([]*BillingCalculation, error) {
	if orgID == "" {
		return nil, InvalidArgument("organization id is required")
	}
	if limit <= 0 || limit > MaxPageLimit {
		limit = DefaultPageLimit
	}
	return s.calculations.ListCalculations(ctx, orgID, limit)
}
