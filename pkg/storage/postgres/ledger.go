package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/walletd/pkg/billing"
)

const transactionColumns = `id, organization_id, type, amount_cents, balance_before_cents,
	balance_after_cents, description, reference_id, processed_by, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*billing.Transaction, error) {
	var (
		txn       billing.Transaction
		reference sql.NullString
	)
	err := row.Scan(&txn.ID, &txn.OrganizationID, &txn.Type, &txn.Amount, &txn.BalanceBefore,
		&txn.BalanceAfter, &txn.Description, &reference, &txn.ProcessedBy, &txn.CreatedAt)
	if err != nil {
		return nil, err
	}
	txn.ReferenceID = reference.String
	return &txn, nil
}

// CreateWallet creates a zero-balance wallet for an existing organization.
func (s *Store) CreateWallet(ctx context.Context, orgID, currency string) (*billing.Wallet, error) {
	if !validID(orgID) {
		return nil, billing.ErrOrganizationNotFound
	}
	w := &billing.Wallet{OrganizationID: orgID, Currency: currency}
	err := s.cm.Primary().QueryRowContext(ctx, `
		INSERT INTO wallets (organization_id, balance_cents, currency)
		VALUES ($1, 0, $2)
		RETURNING created_at, updated_at
	`, orgID, currency).Scan(&w.CreatedAt, &w.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: wallet for %s already exists", billing.ErrConflict, orgID)
	}
	if err != nil {
		return nil, classify("create wallet", err)
	}
	return w, nil
}

// GetWallet returns the committed wallet state.
func (s *Store) GetWallet(ctx context.Context, orgID string) (*billing.Wallet, error) {
	if !validID(orgID) {
		return nil, billing.ErrWalletNotFound
	}
	w := &billing.Wallet{}
	err := s.cm.Primary().QueryRowContext(ctx, `
		SELECT organization_id, balance_cents, currency, created_at, updated_at
		FROM wallets
		WHERE organization_id = $1
	`, orgID).Scan(&w.OrganizationID, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrWalletNotFound
	}
	if err != nil {
		return nil, classify("get wallet", err)
	}
	return w, nil
}

// WithWalletLock runs fn inside a transaction holding the wallet row lock.
func (s *Store) WithWalletLock(ctx context.Context, orgID string, fn func(ctx context.Context, tx billing.WalletTx) error) error {
	if !validID(orgID) {
		return billing.ErrWalletNotFound
	}

	tx, err := s.cm.Primary().BeginTx(ctx, nil)
	if err != nil {
		return classify("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is best-effort

	var w billing.Wallet
	err = tx.QueryRowContext(ctx, `
		SELECT organization_id, balance_cents, currency, created_at, updated_at
		FROM wallets
		WHERE organization_id = $1
		FOR UPDATE
	`, orgID).Scan(&w.OrganizationID, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.ErrWalletNotFound
	}
	if err != nil {
		return classify("lock wallet", err)
	}

	if err := fn(ctx, &walletTx{tx: tx, wallet: w}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("commit wallet transaction", err)
	}
	return nil
}

type walletTx struct {
	tx     *sql.Tx
	wallet billing.Wallet
}

func (t *walletTx) Wallet() billing.Wallet { return t.wallet }

func (t *walletTx) FindDebitByReference(ctx context.Context, referenceID string) (*billing.Transaction, error) {
	txn, err := scanTransaction(t.tx.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE organization_id = $1 AND reference_id = $2 AND type = 'DEBIT'
	`, t.wallet.OrganizationID, referenceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find debit by reference", err)
	}
	return txn, nil
}

func (t *walletTx) Append(ctx context.Context, txn *billing.Transaction) error {
	if txn.OrganizationID != t.wallet.OrganizationID || !txn.Consistent() {
		return billing.InvalidArgument("inconsistent transaction for wallet %s", t.wallet.OrganizationID)
	}
	if txn.BalanceBefore != t.wallet.Balance {
		return fmt.Errorf("%w: balance moved under the lock", billing.ErrConflict)
	}

	if _, err := t.tx.ExecContext(ctx, `
		UPDATE wallets SET balance_cents = $2, updated_at = $3
		WHERE organization_id = $1
	`, txn.OrganizationID, txn.BalanceAfter, txn.CreatedAt); err != nil {
		return classify("update wallet balance", err)
	}

	reference := sql.NullString{String: txn.ReferenceID, Valid: txn.ReferenceID != ""}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, txn.ID, txn.OrganizationID, txn.Type, txn.Amount, txn.BalanceBefore,
		txn.BalanceAfter, txn.Description, reference, txn.ProcessedBy, txn.CreatedAt)
	if isUniqueViolation(err) && txn.Type == billing.TransactionTypeDebit {
		return &billing.DuplicateReferenceError{OrganizationID: txn.OrganizationID, ReferenceID: txn.ReferenceID}
	}
	if err != nil {
		return classify("insert transaction", err)
	}

	t.wallet.Balance = txn.BalanceAfter
	return nil
}

// FindDebitByReference returns the committed debit with referenceID, or nil.
func (s *Store) FindDebitByReference(ctx context.Context, orgID, referenceID string) (*billing.Transaction, error) {
	if !validID(orgID) {
		return nil, nil
	}
	txn, err := scanTransaction(s.cm.Primary().QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE organization_id = $1 AND reference_id = $2 AND type = 'DEBIT'
	`, orgID, referenceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("find debit by reference", err)
	}
	return txn, nil
}

// ListTransactions returns one page of matching transactions, newest first,
// with insertion order breaking timestamp ties.
func (s *Store) ListTransactions(ctx context.Context, orgID string, filter billing.TransactionFilter) ([]*billing.Transaction, int64, error) {
	if !validID(orgID) {
		return []*billing.Transaction{}, 0, nil
	}

	conditions := []string{"organization_id = $1"}
	args := []any{orgID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	db := s.cm.Replica()

	var total int64
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM wallet_transactions WHERE "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, classify("count transactions", err)
	}

	args = append(args, filter.Limit, filter.Offset())
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM wallet_transactions
		WHERE %s
		ORDER BY created_at DESC, seq DESC
		LIMIT $%d OFFSET $%d
	`, transactionColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, classify("list transactions", err)
	}
	defer rows.Close()

	txns := []*billing.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, classify("scan transaction", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("list transactions", err)
	}
	return txns, total, nil
}
