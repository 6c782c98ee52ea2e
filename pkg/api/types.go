package api

import (
	"strings"
	"unicode/utf8"

	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/orgs"
)

// MaxReasonLength bounds the free-text reason of a manual adjustment.
const MaxReasonLength = 500

// SetRateRequest replaces the billing rate.
type SetRateRequest struct {
	RatePerHour *int64 `json:"rate_per_hour"`
}

// Validate checks the request.
func (r *SetRateRequest) Validate() error {
	if r.RatePerHour == nil {
		return billing.InvalidArgument("rate_per_hour is required")
	}
	if *r.RatePerHour < 0 {
		return billing.InvalidArgument("rate_per_hour must not be negative")
	}
	if *r.RatePerHour > billing.MaxRatePerHour {
		return billing.InvalidArgument("rate_per_hour must not exceed %d", billing.MaxRatePerHour)
	}
	return nil
}

// CalculateCostRequest prices a usage duration.
type CalculateCostRequest struct {
	OrganizationID  string `json:"organization_id"`
	DurationSeconds *int64 `json:"duration_seconds"`
}

// Validate checks the request.
func (r *CalculateCostRequest) Validate() error {
	if r.OrganizationID == "" {
		return billing.InvalidArgument("organization_id is required")
	}
	if r.DurationSeconds == nil {
		return billing.InvalidArgument("duration_seconds is required")
	}
	return nil
}

// WalletAdjustmentRequest is a manual credit or debit by an operator.
type WalletAdjustmentRequest struct {
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason"`
	AllowNegative bool   `json:"allow_negative,omitempty"`
}

// Validate checks the request and trims the reason.
func (r *WalletAdjustmentRequest) Validate() error {
	if r.Amount <= 0 {
		return billing.InvalidArgument("amount must be positive")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" || utf8.RuneCountInString(r.Reason) > MaxReasonLength {
		return billing.InvalidArgument("reason must be 1..%d characters", MaxReasonLength)
	}
	return nil
}

// CreateOrganizationResponse is returned when an organization is created.
type CreateOrganizationResponse struct {
	Organization *orgs.Organization `json:"organization"`
	Wallet       *billing.Wallet    `json:"wallet"`
}
