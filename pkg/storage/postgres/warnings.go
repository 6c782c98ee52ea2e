package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/platinummonkey/walletd/pkg/billing"
)

const warningColumns = `id, organization_id, level, balance_before, balance_threshold,
	triggered_at, email_sent, email_sent_at`

func scanWarning(row rowScanner) (*billing.LowBalanceWarning, error) {
	var (
		w      billing.LowBalanceWarning
		sentAt sql.NullTime
	)
	if err := row.Scan(&w.ID, &w.OrganizationID, &w.Level, &w.BalanceBefore, &w.BalanceThreshold,
		&w.TriggeredAt, &w.EmailSent, &sentAt); err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		w.EmailSentAt = &t
	}
	return &w, nil
}

// RaiseWarning inserts w unless the same tier fired at or after since. A
// transaction-scoped advisory lock on (organization, level) serializes
// concurrent checks so exactly one of them inserts.
func (s *Store) RaiseWarning(ctx context.Context, w *billing.LowBalanceWarning, since time.Time) (bool, error) {
	tx, err := s.cm.Primary().BeginTx(ctx, nil)
	if err != nil {
		return false, classify("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is best-effort

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, w.OrganizationID+"|"+string(w.Level),
	); err != nil {
		return false, classify("lock warning tier", err)
	}

	var recent bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM low_balance_warnings
			WHERE organization_id = $1 AND level = $2 AND triggered_at >= $3
		)
	`, w.OrganizationID, w.Level, since).Scan(&recent); err != nil {
		return false, classify("check warning cooldown", err)
	}
	if recent {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO low_balance_warnings (`+warningColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, NULL)
	`, w.ID, w.OrganizationID, w.Level, w.BalanceBefore, w.BalanceThreshold, w.TriggeredAt); err != nil {
		return false, classify("insert warning", err)
	}
	if err := tx.Commit(); err != nil {
		return false, classify("commit warning", err)
	}
	return true, nil
}

// ListWarnings returns up to limit warnings for orgID, newest first.
func (s *Store) ListWarnings(ctx context.Context, orgID string, limit int) ([]*billing.LowBalanceWarning, error) {
	if !validID(orgID) {
		return []*billing.LowBalanceWarning{}, nil
	}
	rows, err := s.cm.Replica().QueryContext(ctx, `
		SELECT `+warningColumns+`
		FROM low_balance_warnings
		WHERE organization_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, classify("list warnings", err)
	}
	defer rows.Close()

	out := []*billing.LowBalanceWarning{}
	for rows.Next() {
		w, err := scanWarning(rows)
		if err != nil {
			return nil, classify("scan warning", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list warnings", err)
	}
	return out, nil
}

// MarkWarningEmailSent sets the email-sent flag. The first timestamp wins.
func (s *Store) MarkWarningEmailSent(ctx context.Context, id string, at time.Time) (*billing.LowBalanceWarning, error) {
	if !validID(id) {
		return nil, billing.ErrWarningNotFound
	}
	w, err := scanWarning(s.cm.Primary().QueryRowContext(ctx, `
		UPDATE low_balance_warnings
		SET email_sent = TRUE, email_sent_at = COALESCE(email_sent_at, $2)
		WHERE id = $1
		RETURNING `+warningColumns, id, at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrWarningNotFound
	}
	if err != nil {
		return nil, classify("mark warning email sent", err)
	}
	return w, nil
}
