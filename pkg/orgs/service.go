package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/walletd/pkg/billing"
)

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db              *sql.DB
	defaultCurrency string
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, defaultCurrency string) *PostgresService {
	return &PostgresService{db: db, defaultCurrency: defaultCurrency}
}

// CreateOrganization inserts the organization and its wallet in one
// transaction.
func (s *PostgresService) CreateOrganization(ctx context.Context, req *CreateOrgRequest) (*Organization, *billing.Wallet, error) {
	if err := req.Validate(s.defaultCurrency); err != nil {
		return nil, nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, billing.Infrastructure("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is best-effort

	org := &Organization{
		ID:     uuid.NewString(),
		Name:   req.Name,
		Slug:   generateSlug(req.Name),
		Status: OrgStatusActive,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO organizations (id, name, slug, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, org.ID, org.Name, org.Slug, org.Status).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, nil, fmt.Errorf("%w: organization slug %q already taken", billing.ErrConflict, org.Slug)
		}
		return nil, nil, billing.Infrastructure("create organization", err)
	}

	wallet := &billing.Wallet{OrganizationID: org.ID, Currency: strings.ToLower(req.Currency)}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO wallets (organization_id, balance_cents, currency)
		VALUES ($1, 0, $2)
		RETURNING created_at, updated_at
	`, wallet.OrganizationID, wallet.Currency).Scan(&wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		return nil, nil, billing.Infrastructure("create wallet", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, billing.Infrastructure("commit organization", err)
	}
	return org, wallet, nil
}

// GetOrganization retrieves an organization by ID
func (s *PostgresService) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, billing.ErrOrganizationNotFound
	}

	org := &Organization{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, status, created_at, updated_at
		FROM organizations
		WHERE id = $1 AND status <> 'deleted'
	`, id).Scan(&org.ID, &org.Name, &org.Slug, &org.Status, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, billing.Infrastructure("get organization", err)
	}
	return org, nil
}

// Exists reports whether a live organization with id exists.
func (s *PostgresService) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, s, id)
}

func exists(ctx context.Context, d Directory, id string) (bool, error) {
	_, err := d.GetOrganization(ctx, id)
	if errors.Is(err, billing.ErrOrganizationNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// generateSlug lower-cases name and keeps letters, digits and dashes.
func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	return slug
}
