package orgs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/walletd/pkg/billing"
)

// MemoryService keeps organizations in process and creates wallets through
// a billing.WalletCreator.
type MemoryService struct {
	mu              sync.RWMutex
	orgs            map[string]*Organization
	slugs           map[string]string
	wallets         billing.WalletCreator
	defaultCurrency string
}

// NewMemoryService creates a MemoryService.
func NewMemoryService(wallets billing.WalletCreator, defaultCurrency string) *MemoryService {
	return &MemoryService{
		orgs:            make(map[string]*Organization),
		slugs:           make(map[string]string),
		wallets:         wallets,
		defaultCurrency: defaultCurrency,
	}
}

// CreateOrganization registers the organization and creates its wallet.
func (s *MemoryService) CreateOrganization(ctx context.Context, req *CreateOrgRequest) (*Organization, *billing.Wallet, error) {
	if err := req.Validate(s.defaultCurrency); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slug := generateSlug(req.Name)
	if _, taken := s.slugs[slug]; taken {
		return nil, nil, fmt.Errorf("%w: organization slug %q already taken", billing.ErrConflict, slug)
	}

	now := time.Now().UTC()
	org := &Organization{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Slug:      slug,
		Status:    OrgStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	wallet, err := s.wallets.CreateWallet(ctx, org.ID, strings.ToLower(req.Currency))
	if err != nil {
		return nil, nil, err
	}

	s.orgs[org.ID] = org
	s.slugs[slug] = org.ID
	c := *org
	return &c, wallet, nil
}

// GetOrganization returns the organization with id.
func (s *MemoryService) GetOrganization(_ context.Context, id string) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[id]
	if !ok || org.Status == OrgStatusDeleted {
		return nil, billing.ErrOrganizationNotFound
	}
	c := *org
	return &c, nil
}

// Exists reports whether a live organization with id exists.
func (s *MemoryService) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, s, id)
}
