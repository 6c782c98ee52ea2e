package billing

import (
	"context"
	"time"
)

// WalletTx is a wallet locked for the duration of an atomic scope. Every
// method runs inside the same storage transaction.
type WalletTx interface {
	// Wallet returns the wallet as read under the lock.
	Wallet() Wallet
	// FindDebitByReference returns the debit recorded for referenceID, or
	// nil when there is none.
	FindDebitByReference(ctx context.Context, referenceID string) (*Transaction, error)
	// Append sets the wallet balance to txn.BalanceAfter and inserts txn.
	Append(ctx context.Context, txn *Transaction) error
}

// LedgerStore is the storage capability the Ledger depends on.
type LedgerStore interface {
	// WithWalletLock runs fn with the organization's wallet locked against
	// concurrent mutation. Effects of Append are committed only if fn
	// returns nil. Fails with ErrWalletNotFound when no wallet exists.
	WithWalletLock(ctx context.Context, orgID string, fn func(ctx context.Context, tx WalletTx) error) error

	GetWallet(ctx context.Context, orgID string) (*Wallet, error)
	FindDebitByReference(ctx context.Context, orgID, referenceID string) (*Transaction, error)
	// ListTransactions returns one page of transactions, newest first, and
	// the total number matching the filter.
	ListTransactions(ctx context.Context, orgID string, filter TransactionFilter) ([]*Transaction, int64, error)
}

// WalletCreator creates the zero-balance wallet of a new organization.
type WalletCreator interface {
	CreateWallet(ctx context.Context, orgID, currency string) (*Wallet, error)
}

// CalculationStore persists billing calculations.
type CalculationStore interface {
	RecordCalculation(ctx context.Context, calc *BillingCalculation) error
	ListCalculations(ctx context.Context, orgID string, limit int) ([]*BillingCalculation, error)
}

// WarningStore persists low-balance warnings.
type WarningStore interface {
	// RaiseWarning inserts w unless a warning of the same organization and
	// level was triggered at or after since. It reports whether w was
	// inserted. The check and the insert are atomic.
	RaiseWarning(ctx context.Context, w *LowBalanceWarning, since time.Time) (bool, error)
	ListWarnings(ctx context.Context, orgID string, limit int) ([]*LowBalanceWarning, error)
	MarkWarningEmailSent(ctx context.Context, id string, at time.Time) (*LowBalanceWarning, error)
}

// ConfigStore is the mutable key/value system configuration.
type ConfigStore interface {
	// GetConfig returns the value stored under key and whether it was set.
	GetConfig(ctx context.Context, key string) (string, bool, error)
	SetConfig(ctx context.Context, key, value, updatedBy string) error
}

// OrganizationDirectory resolves billing targets.
type OrganizationDirectory interface {
	Exists(ctx context.Context, orgID string) (bool, error)
}
