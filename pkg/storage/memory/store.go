// Package memory provides an in-process implementation of the billing
// stores. Each wallet has its own mutex, so mutations of one wallet are
// serialized while different wallets proceed independently.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/walletd/pkg/billing"
)

type walletEntry struct {
	lock   sync.Mutex
	wallet billing.Wallet
}

type configEntry struct {
	value     string
	updatedBy string
	updatedAt time.Time
}

// Store implements billing.LedgerStore, billing.WalletCreator,
// billing.CalculationStore, billing.WarningStore and billing.ConfigStore.
type Store struct {
	mu           sync.RWMutex
	wallets      map[string]*walletEntry
	transactions map[string][]*billing.Transaction
	calculations map[string][]*billing.BillingCalculation
	config       map[string]configEntry

	// warnMu makes the cool-down check and insert in RaiseWarning atomic.
	warnMu   sync.Mutex
	warnings []*billing.LowBalanceWarning

	now func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		wallets:      make(map[string]*walletEntry),
		transactions: make(map[string][]*billing.Transaction),
		calculations: make(map[string][]*billing.BillingCalculation),
		config:       make(map[string]configEntry),
		now:          time.Now,
	}
}

// CreateWallet creates a zero-balance wallet for orgID.
func (s *Store) CreateWallet(_ context.Context, orgID, currency string) (*billing.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[orgID]; exists {
		return nil, fmt.Errorf("%w: wallet for %s already exists", billing.ErrConflict, orgID)
	}
	now := s.now().UTC()
	entry := &walletEntry{wallet: billing.Wallet{
		OrganizationID: orgID,
		Currency:       currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}}
	s.wallets[orgID] = entry
	w := entry.wallet
	return &w, nil
}

// GetWallet returns a snapshot of the wallet.
func (s *Store) GetWallet(_ context.Context, orgID string) (*billing.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.wallets[orgID]
	if !ok {
		return nil, billing.ErrWalletNotFound
	}
	w := entry.wallet
	return &w, nil
}

// WithWalletLock serializes fn against other mutations of the same wallet.
// Appended transactions and the new balance become visible together when
// fn returns nil and are discarded otherwise.
func (s *Store) WithWalletLock(ctx context.Context, orgID string, fn func(ctx context.Context, tx billing.WalletTx) error) error {
	s.mu.RLock()
	entry, ok := s.wallets[orgID]
	s.mu.RUnlock()
	if !ok {
		return billing.ErrWalletNotFound
	}

	entry.lock.Lock()
	defer entry.lock.Unlock()

	s.mu.RLock()
	working := entry.wallet
	s.mu.RUnlock()

	tx := &walletTx{store: s, wallet: working}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if len(tx.staged) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry.wallet.Balance = tx.wallet.Balance
	entry.wallet.UpdatedAt = tx.staged[len(tx.staged)-1].CreatedAt
	s.transactions[orgID] = append(s.transactions[orgID], tx.staged...)
	return nil
}

type walletTx struct {
	store  *Store
	wallet billing.Wallet
	staged []*billing.Transaction
}

func (t *walletTx) Wallet() billing.Wallet { return t.wallet }

func (t *walletTx) FindDebitByReference(ctx context.Context, referenceID string) (*billing.Transaction, error) {
	for _, txn := range t.staged {
		if txn.Type == billing.TransactionTypeDebit && txn.ReferenceID == referenceID {
			c := *txn
			return &c, nil
		}
	}
	return t.store.FindDebitByReference(ctx, t.wallet.OrganizationID, referenceID)
}

func (t *walletTx) Append(_ context.Context, txn *billing.Transaction) error {
	if txn.OrganizationID != t.wallet.OrganizationID {
		return fmt.Errorf("%w: transaction for %s appended to wallet %s", billing.ErrInvalidArgument, txn.OrganizationID, t.wallet.OrganizationID)
	}
	if !txn.Consistent() {
		return fmt.Errorf("%w: inconsistent transaction %s", billing.ErrInvalidArgument, txn.ID)
	}
	if txn.BalanceBefore != t.wallet.Balance {
		return fmt.Errorf("%w: balance moved from %d to %d", billing.ErrConflict, txn.BalanceBefore, t.wallet.Balance)
	}
	c := *txn
	t.staged = append(t.staged, &c)
	t.wallet.Balance = txn.BalanceAfter
	return nil
}

// FindDebitByReference returns the committed debit with referenceID, or nil.
func (s *Store) FindDebitByReference(_ context.Context, orgID, referenceID string) (*billing.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, txn := range s.transactions[orgID] {
		if txn.Type == billing.TransactionTypeDebit && txn.ReferenceID == referenceID {
			c := *txn
			return &c, nil
		}
	}
	return nil, nil
}

// ListTransactions returns the matching transactions, newest first.
func (s *Store) ListTransactions(_ context.Context, orgID string, filter billing.TransactionFilter) ([]*billing.Transaction, int64, error) {
	s.mu.RLock()
	all := s.transactions[orgID]
	matched := make([]*billing.Transaction, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		txn := all[i]
		if filter.Type != "" && txn.Type != filter.Type {
			continue
		}
		if filter.StartDate != nil && txn.CreatedAt.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && txn.CreatedAt.After(*filter.EndDate) {
			continue
		}
		c := *txn
		matched = append(matched, &c)
	}
	s.mu.RUnlock()

	total := int64(len(matched))
	start := filter.Offset()
	if start >= len(matched) {
		return []*billing.Transaction{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// RecordCalculation stores calc.
func (s *Store) RecordCalculation(_ context.Context, calc *billing.BillingCalculation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *calc
	s.calculations[calc.OrganizationID] = append(s.calculations[calc.OrganizationID], &c)
	return nil
}

// ListCalculations returns up to limit calculations, newest first.
func (s *Store) ListCalculations(_ context.Context, orgID string, limit int) ([]*billing.BillingCalculation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.calculations[orgID]
	out := make([]*billing.BillingCalculation, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		c := *all[i]
		out = append(out, &c)
	}
	return out, nil
}

// RaiseWarning inserts w unless the same tier fired at or after since.
func (s *Store) RaiseWarning(_ context.Context, w *billing.LowBalanceWarning, since time.Time) (bool, error) {
	s.warnMu.Lock()
	defer s.warnMu.Unlock()

	for _, existing := range s.warnings {
		if existing.OrganizationID == w.OrganizationID && existing.Level == w.Level && !existing.TriggeredAt.Before(since) {
			return false, nil
		}
	}
	c := *w
	s.warnings = append(s.warnings, &c)
	return true, nil
}

// ListWarnings returns up to limit warnings for orgID, newest first.
func (s *Store) ListWarnings(_ context.Context, orgID string, limit int) ([]*billing.LowBalanceWarning, error) {
	s.warnMu.Lock()
	defer s.warnMu.Unlock()

	out := []*billing.LowBalanceWarning{}
	for _, w := range s.warnings {
		if w.OrganizationID == orgID {
			c := *w
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TriggeredAt.After(out[j].TriggeredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkWarningEmailSent sets the email-sent flag and timestamp.
func (s *Store) MarkWarningEmailSent(_ context.Context, id string, at time.Time) (*billing.LowBalanceWarning, error) {
	s.warnMu.Lock()
	defer s.warnMu.Unlock()

	for _, w := range s.warnings {
		if w.ID == id {
			if !w.EmailSent {
				w.EmailSent = true
				sentAt := at
				w.EmailSentAt = &sentAt
			}
			c := *w
			return &c, nil
		}
	}
	return nil, billing.ErrWarningNotFound
}

// GetConfig returns the value stored under key.
func (s *Store) GetConfig(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.config[key]
	return entry.value, ok, nil
}

// SetConfig stores value under key.
func (s *Store) SetConfig(_ context.Context, key, value, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config[key] = configEntry{value: value, updatedBy: updatedBy, updatedAt: s.now().UTC()}
	return nil
}
