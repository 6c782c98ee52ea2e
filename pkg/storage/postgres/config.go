package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// GetConfig returns the value stored under key.
func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.cm.Primary().QueryRowContext(ctx,
		`SELECT value FROM system_config WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("get config", err)
	}
	return value, true, nil
}

// SetConfig upserts value under key.
func (s *Store) SetConfig(ctx context.Context, key, value, updatedBy string) error {
	_, err := s.cm.Primary().ExecContext(ctx, `
		INSERT INTO system_config (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at
	`, key, value, updatedBy)
	if err != nil {
		return classify("set config", err)
	}
	return nil
}
