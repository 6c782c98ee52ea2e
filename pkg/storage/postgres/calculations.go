package postgres

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/walletd/pkg/billing"
)

// RecordCalculation stores calc. An empty TransactionID is stored as NULL.
func (s *Store) RecordCalculation(ctx context.Context, calc *billing.BillingCalculation) error {
	txnID := sql.NullString{String: calc.TransactionID, Valid: calc.TransactionID != ""}
	_, err := s.cm.Primary().ExecContext(ctx, `
		INSERT INTO billing_calculations
			(id, organization_id, meeting_id, transaction_id, duration_seconds, rate_per_hour, total_cost, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, calc.ID, calc.OrganizationID, calc.MeetingID, txnID, calc.DurationSeconds,
		calc.RatePerHour, calc.TotalCost, calc.CalculatedAt)
	if err != nil {
		return classify("record calculation", err)
	}
	return nil
}

// ListCalculations returns up to limit calculations, newest first.
func (s *Store) ListCalculations(ctx context.Context, orgID string, limit int) ([]*billing.BillingCalculation, error) {
	if !validID(orgID) {
		return []*billing.BillingCalculation{}, nil
	}
	rows, err := s.cm.Replica().QueryContext(ctx, `
		SELECT id, organization_id, meeting_id, transaction_id, duration_seconds, rate_per_hour, total_cost, calculated_at
		FROM billing_calculations
		WHERE organization_id = $1
		ORDER BY calculated_at DESC
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, classify("list calculations", err)
	}
	defer rows.Close()

	out := []*billing.BillingCalculation{}
	for rows.Next() {
		var (
			c     billing.BillingCalculation
			txnID sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.MeetingID, &txnID, &c.DurationSeconds,
			&c.RatePerHour, &c.TotalCost, &c.CalculatedAt); err != nil {
			return nil, classify("scan calculation", err)
		}
		c.TransactionID = txnID.String
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list calculations", err)
	}
	return out, nil
}
