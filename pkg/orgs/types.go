package orgs

import (
	"context"
	"time"

	"github.com/platinummonkey/walletd/pkg/billing"
)

// OrgStatus represents organization status
type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
	OrgStatusDeleted   OrgStatus = "deleted"
)

// Organization is a billing tenant.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Status    OrgStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateOrgRequest represents a request to create an organization
type CreateOrgRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
}

// Validate checks the request and applies the default currency.
func (r *CreateOrgRequest) Validate(defaultCurrency string) error {
	if len(r.Name) == 0 || len(r.Name) > 200 {
		return billing.InvalidArgument("name must be 1..200 characters")
	}
	if generateSlug(r.Name) == "" {
		return billing.InvalidArgument("name must contain letters or digits")
	}
	if r.Currency == "" {
		r.Currency = defaultCurrency
	}
	if len(r.Currency) != 3 {
		return billing.InvalidArgument("currency must be a 3-letter code")
	}
	return nil
}

// Directory looks organizations up by id.
type Directory interface {
	GetOrganization(ctx context.Context, id string) (*Organization, error)
}

// Service manages organizations. Creating an organization also creates
// its zero-balance wallet in the same unit of work.
type Service interface {
	Directory
	CreateOrganization(ctx context.Context, req *CreateOrgRequest) (*Organization, *billing.Wallet, error)
	Exists(ctx context.Context, id string) (bool, error)
}
