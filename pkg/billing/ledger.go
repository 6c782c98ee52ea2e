package billing

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/walletd/pkg/observability"
)

const tracerName = "github.com/platinummonkey/walletd/pkg/billing"

// BalanceMonitor inspects a post-debit balance.
type BalanceMonitor interface {
	Check(ctx context.Context, orgID string, balance int64) ([]*LowBalanceWarning, error)
}

// Dispatcher runs a task without blocking the caller.
type Dispatcher interface {
	Go(ctx context.Context, taskName string, fn func(context.Context) error)
}

// CreditRequest adds funds to a wallet.
type CreditRequest struct {
	OrganizationID string
	Amount         int64
	Description    string
	ActorID        string
	ReferenceID    string
}

// DebitRequest removes funds from a wallet. A non-empty ReferenceID can be
// debited at most once per organization.
type DebitRequest struct {
	OrganizationID string
	Amount         int64
	Description    string
	ActorID        string
	ReferenceID    string
	AllowNegative  bool
}

// Ledger is the only writer of wallet balances. Every credit and debit
// runs inside the store's wallet lock, so the balance update and its
// transaction record commit together or not at all.
type Ledger struct {
	store      LedgerStore
	monitor    BalanceMonitor
	dispatcher Dispatcher
	metrics    *observability.Metrics
	logger     logrus.FieldLogger
	tracer     trace.Tracer
	now        func() time.Time
	newID      func() string
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithBalanceMonitor checks balances after each committed debit using d.
func WithBalanceMonitor(m BalanceMonitor, d Dispatcher) LedgerOption {
	return func(l *Ledger) {
		l.monitor = m
		l.dispatcher = d
	}
}

// WithLedgerMetrics records operation metrics.
func WithLedgerMetrics(m *observability.Metrics) LedgerOption {
	return func(l *Ledger) { l.metrics = m }
}

// WithLedgerLogger sets the logger.
func WithLedgerLogger(logger logrus.FieldLogger) LedgerOption {
	return func(l *Ledger) { l.logger = logger }
}

// WithLedgerClock overrides the transaction timestamp source.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger over store.
func NewLedger(store LedgerStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:  store,
		logger: logrus.StandardLogger(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetWallet returns the current wallet of orgID.
func (l *Ledger) GetWallet(ctx context.Context, orgID string) (*Wallet, error) {
	if orgID == "" {
		return nil, InvalidArgument("organization id is required")
	}
	return l.store.GetWallet(ctx, orgID)
}

// FindDebitByReference returns the debit recorded for referenceID, or nil.
func (l *Ledger) FindDebitByReference(ctx context.Context, orgID, referenceID string) (*Transaction, error) {
	if orgID == "" || referenceID == "" {
		return nil, InvalidArgument("organization id and reference id are required")
	}
	return l.store.FindDebitByReference(ctx, orgID, referenceID)
}

// ListTransactions returns one page of the wallet's history, newest first.
func (l *Ledger) ListTransactions(ctx context.Context, orgID string, filter TransactionFilter) (*TransactionPage, error) {
	if orgID == "" {
		return nil, InvalidArgument("organization id is required")
	}
	if err := filter.Normalize(); err != nil {
		return nil, err
	}
	if _, err := l.store.GetWallet(ctx, orgID); err != nil {
		return nil, err
	}

	txns, total, err := l.store.ListTransactions(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []*Transaction{}
	}
	return &TransactionPage{
		Transactions: txns,
		Pagination:   NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

// Credit adds req.Amount to the wallet.
func (l *Ledger) Credit(ctx context.Context, req CreditRequest) (*Transaction, error) {
	if err := validateMutation(req.OrganizationID, req.Amount, req.ActorID); err != nil {
		return nil, err
	}

	ctx, span := l.startSpan(ctx, "ledger.credit", req.OrganizationID, req.Amount)
	defer span.End()
	started := time.Now()

	var txn *Transaction
	err := l.store.WithWalletLock(ctx, req.OrganizationID, func(ctx context.Context, tx WalletTx) error {
		w := tx.Wallet()
		if w.Balance > math.MaxInt64-req.Amount {
			return InvalidArgument("credit would overflow the balance")
		}
		txn = l.newTransaction(w, TransactionTypeCredit, req.Amount, req.Description, req.ActorID, req.ReferenceID)
		return tx.Append(ctx, txn)
	})
	l.finish(span, "credit", req.Amount, started, err)
	if err != nil {
		return nil, err
	}

	l.logCommitted("Wallet credited", txn)
	return txn, nil
}

// Debit removes req.Amount from the wallet. Unless AllowNegative is set the
// debit fails with ErrInsufficientBalance when the balance does not cover
// the amount, and nothing is written.
func (l *Ledger) Debit(ctx context.Context, req DebitRequest) (*Transaction, error) {
	if err := validateMutation(req.OrganizationID, req.Amount, req.ActorID); err != nil {
		return nil, err
	}

	ctx, span := l.startSpan(ctx, "ledger.debit", req.OrganizationID, req.Amount)
	span.SetAttributes(attribute.Bool("billing.allow_negative", req.AllowNegative))
	defer span.End()
	started := time.Now()

	var txn *Transaction
	err := l.store.WithWalletLock(ctx, req.OrganizationID, func(ctx context.Context, tx WalletTx) error {
		if req.ReferenceID != "" {
			existing, err := tx.FindDebitByReference(ctx, req.ReferenceID)
			if err != nil {
				return err
			}
			if existing != nil {
				return &DuplicateReferenceError{
					OrganizationID: req.OrganizationID,
					ReferenceID:    req.ReferenceID,
					Existing:       existing,
				}
			}
		}

		w := tx.Wallet()
		if !req.AllowNegative && w.Balance < req.Amount {
			return ErrInsufficientBalance
		}
		if w.Balance < math.MinInt64+req.Amount {
			return InvalidArgument("debit would overflow the balance")
		}
		txn = l.newTransaction(w, TransactionTypeDebit, req.Amount, req.Description, req.ActorID, req.ReferenceID)
		return tx.Append(ctx, txn)
	})
	l.finish(span, "debit", req.Amount, started, err)
	if err != nil {
		return nil, err
	}

	l.logCommitted("Wallet debited", txn)
	l.scheduleBalanceCheck(ctx, txn)
	return txn, nil
}

// scheduleBalanceCheck runs after commit, outside the wallet lock.
func (l *Ledger) scheduleBalanceCheck(ctx context.Context, txn *Transaction) {
	if l.monitor == nil || l.dispatcher == nil {
		return
	}
	orgID, balance := txn.OrganizationID, txn.BalanceAfter
	l.dispatcher.Go(ctx, "low balance check", func(ctx context.Context) error {
		_, err := l.monitor.Check(ctx, orgID, balance)
		return err
	})
}

func (l *Ledger) newTransaction(w Wallet, typ TransactionType, amount int64, description, actorID, referenceID string) *Transaction {
	txn := &Transaction{
		ID:             l.newID(),
		OrganizationID: w.OrganizationID,
		Type:           typ,
		Amount:         amount,
		BalanceBefore:  w.Balance,
		Description:    description,
		ReferenceID:    referenceID,
		ProcessedBy:    actorID,
		CreatedAt:      l.now().UTC(),
	}
	txn.BalanceAfter = txn.BalanceBefore + txn.SignedAmount()
	return txn
}

func (l *Ledger) startSpan(ctx context.Context, name, orgID string, amount int64) (context.Context, trace.Span) {
	return l.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("billing.organization_id", orgID),
		attribute.Int64("billing.amount", amount),
	))
}

func (l *Ledger) finish(span trace.Span, op string, amount int64, started time.Time, err error) {
	outcome := outcomeLabel(err)
	l.metrics.RecordLedgerOperation(op, outcome, amount, started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
}

func (l *Ledger) logCommitted(msg string, txn *Transaction) {
	l.logger.WithFields(logrus.Fields{
		"organization_id": txn.OrganizationID,
		"transaction_id":  txn.ID,
		"amount":          txn.Amount,
		"balance_before":  txn.BalanceBefore,
		"balance_after":   txn.BalanceAfter,
		"processed_by":    txn.ProcessedBy,
	}).Info(msg)
}

func validateMutation(orgID string, amount int64, actorID string) error {
	if orgID == "" {
		return InvalidArgument("organization id is required")
	}
	if amount <= 0 {
		return InvalidArgument("amount must be positive, got %d", amount)
	}
	if actorID == "" {
		return InvalidArgument("actor id is required")
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrDuplicateReference):
		return "duplicate_reference"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
