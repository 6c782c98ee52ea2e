package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/walletd/pkg/observability"
)

// DefaultEstimatedMinutes is the meeting length assumed by CanStartMeeting
// when the caller does not provide one.
const DefaultEstimatedMinutes int64 = 60

// LedgerEngine is the part of the Ledger the Orchestrator depends on.
type LedgerEngine interface {
	Debit(ctx context.Context, req DebitRequest) (*Transaction, error)
	FindDebitByReference(ctx context.Context, orgID, referenceID string) (*Transaction, error)
}

// CostCalculator prices usage against a wallet.
type CostCalculator interface {
	CalculateCost(ctx context.Context, orgID string, durationSeconds int64) (*CostEstimate, error)
}

// Orchestrator bills finished meetings. Each call reaches a terminal
// status in one pass; it never retries a failed debit itself.
type Orchestrator struct {
	orgs         OrganizationDirectory
	calculator   CostCalculator
	ledger       LedgerEngine
	calculations CalculationStore
	metrics      *observability.Metrics
	logger       logrus.FieldLogger
	tracer       trace.Tracer
	now          func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(orgs OrganizationDirectory, calculator CostCalculator, ledger LedgerEngine, calculations CalculationStore, metrics *observability.Metrics, logger logrus.FieldLogger) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		orgs:         orgs,
		calculator:   calculator,
		ledger:       ledger,
		calculations: calculations,
		metrics:      metrics,
		logger:       logger,
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
	}
}

// ProcessMeetingBilling charges the organization for a finished meeting.
//
// Invalid input and unknown organizations are returned as errors. Business
// outcomes are returned as a BillingResult: BLOCKED when the calculated
// cost exceeds the balance and no override was requested, CHARGED when the
// debit committed, FAILED when the debit itself was rejected. A balance that
// went stale between calculation and debit is FAILED, as is a zero-cost
// meeting, since the ledger rejects a zero debit. A meeting
// that was already charged returns its original CHARGED result with
// Duplicate set.
func (o *Orchestrator) ProcessMeetingBilling(ctx context.Context, req MeetingBillingRequest, actorID string) (*BillingResult, error) {
	if req.MeetingID == "" {
		return nil, InvalidArgument("meeting id is required")
	}
	if req.OrganizationID == "" {
		return nil, InvalidArgument("organization id is required")
	}
	if req.DurationSeconds < 0 {
		return nil, InvalidArgument("duration must not be negative")
	}
	if actorID == "" {
		return nil, InvalidArgument("actor id is required")
	}

	ctx, span := o.tracer.Start(ctx, "billing.process_meeting", trace.WithAttributes(
		attribute.String("billing.organization_id", req.OrganizationID),
		attribute.String("billing.meeting_id", req.MeetingID),
		attribute.Int64("billing.duration_seconds", req.DurationSeconds),
		attribute.Bool("billing.override", req.OverrideBalanceCheck),
	))
	defer span.End()

	result, err := o.process(ctx, req, actorID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("billing.status", string(result.Status)))
	o.metrics.RecordBillingOutcome(string(result.Status))
	return result, nil
}

func (o *Orchestrator) process(ctx context.Context, req MeetingBillingRequest, actorID string) (*BillingResult, error) {
	log := o.logger.WithFields(logrus.Fields{
		"organization_id": req.OrganizationID,
		"meeting_id":      req.MeetingID,
	})

	exists, err := o.orgs.Exists(ctx, req.OrganizationID)
	if err != nil {
		return nil, Infrastructure("look up organization", err)
	}
	if !exists {
		return nil, ErrOrganizationNotFound
	}

	prior, err := o.ledger.FindDebitByReference(ctx, req.OrganizationID, req.MeetingID)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		log.WithField("transaction_id", prior.ID).Info("Meeting already billed")
		return duplicateResult(req, prior), nil
	}

	estimate, err := o.calculator.CalculateCost(ctx, req.OrganizationID, req.DurationSeconds)
	if err != nil {
		return nil, err
	}

	result := &BillingResult{
		MeetingID:      req.MeetingID,
		OrganizationID: req.OrganizationID,
		Cost:           estimate.TotalCost,
		RatePerHour:    estimate.RatePerHour,
		BalanceBefore:  estimate.CurrentBalance,
		BalanceAfter:   estimate.CurrentBalance,
	}

	if !req.OverrideBalanceCheck && !estimate.CanAfford {
		result.Status = BillingStatusBlocked
		result.Reason = ReasonInsufficientBalance
		log.WithFields(logrus.Fields{"cost": estimate.TotalCost, "balance": estimate.CurrentBalance}).Info("Meeting billing blocked")
		return result, nil
	}

	txn, err := o.ledger.Debit(ctx, DebitRequest{
		OrganizationID: req.OrganizationID,
		Amount:         estimate.TotalCost,
		Description:    fmt.Sprintf("Meeting %s (%d seconds at %d cents/hour)", req.MeetingID, req.DurationSeconds, estimate.RatePerHour),
		ActorID:        actorID,
		ReferenceID:    req.MeetingID,
		AllowNegative:  req.OverrideBalanceCheck,
	})
	if err != nil {
		return o.debitFailed(ctx, req, result, err, log)
	}

	result.Status = BillingStatusCharged
	result.TransactionID = txn.ID
	result.BalanceBefore = txn.BalanceBefore
	result.BalanceAfter = txn.BalanceAfter
	o.recordCalculation(ctx, req, estimate, txn.ID, log)

	log.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"cost":           txn.Amount,
		"balance_after":  txn.BalanceAfter,
	}).Info("Meeting billed")
	return result, nil
}

func (o *Orchestrator) debitFailed(ctx context.Context, req MeetingBillingRequest, result *BillingResult, err error, log logrus.FieldLogger) (*BillingResult, error) {
	var dup *DuplicateReferenceError
	switch {
	case errors.As(err, &dup):
		existing := dup.Existing
		if existing == nil {
			found, lookupErr := o.ledger.FindDebitByReference(ctx, req.OrganizationID, req.MeetingID)
			if lookupErr != nil || found == nil {
				break
			}
			existing = found
		}
		log.WithField("transaction_id", existing.ID).Info("Meeting billed concurrently")
		return duplicateResult(req, existing), nil
	}

	result.Status = BillingStatusFailed
	result.Reason = failureReason(err)
	log.WithError(err).WithField("reason", result.Reason).Error("Meeting billing failed")
	return result, nil
}

// Reasons reported on BLOCKED and FAILED results. The underlying error is
// logged, never returned.
const (
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonInvalidAmount       = "invalid_amount"
	ReasonConflict            = "conflict"
	ReasonWalletNotFound      = "wallet_not_found"
	ReasonLedgerUnavailable   = "ledger_unavailable"
	ReasonInternal            = "internal_error"
)

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return ReasonInsufficientBalance
	case errors.Is(err, ErrInvalidArgument):
		return ReasonInvalidAmount
	case errors.Is(err, ErrConflict):
		return ReasonConflict
	case errors.Is(err, ErrNotFound):
		return ReasonWalletNotFound
	case errors.Is(err, ErrInfrastructure):
		return ReasonLedgerUnavailable
	default:
		return ReasonInternal
	}
}

// recordCalculation runs after the money moved. Its failure is logged and
// does not change the CHARGED outcome.
func (o *Orchestrator) recordCalculation(ctx context.Context, req MeetingBillingRequest, estimate *CostEstimate, txnID string, log logrus.FieldLogger) {
	calc := &BillingCalculation{
		ID:              uuid.NewString(),
		OrganizationID:  req.OrganizationID,
		MeetingID:       req.MeetingID,
		TransactionID:   txnID,
		DurationSeconds: req.DurationSeconds,
		RatePerHour:     estimate.RatePerHour,
		TotalCost:       estimate.TotalCost,
		CalculatedAt:    o.now().UTC(),
	}
	if err := o.calculations.RecordCalculation(ctx, calc); err != nil {
		log.WithError(err).Error("Failed to record billing calculation")
	}
}

// CanStartMeeting reports whether the wallet covers estimatedMinutes of
// usage at the current rate. It never mutates state.
func (o *Orchestrator) CanStartMeeting(ctx context.Context, orgID string, estimatedMinutes int64) (bool, error) {
	if estimatedMinutes < 0 {
		return false, InvalidArgument("estimated minutes must not be negative")
	}
	if estimatedMinutes > (1<<62)/60 {
		return false, InvalidArgument("estimated minutes too large")
	}
	estimate, err := o.calculator.CalculateCost(ctx, orgID, estimatedMinutes*60)
	if err != nil {
		return false, err
	}
	return estimate.CanAfford, nil
}

func duplicateResult(req MeetingBillingRequest, txn *Transaction) *BillingResult {
	return &BillingResult{
		Status:         BillingStatusCharged,
		MeetingID:      req.MeetingID,
		OrganizationID: req.OrganizationID,
		TransactionID:  txn.ID,
		Cost:           txn.Amount,
		BalanceBefore:  txn.BalanceBefore,
		BalanceAfter:   txn.BalanceAfter,
		Duplicate:      true,
	}
}
