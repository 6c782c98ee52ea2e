package billing

import (
	"time"
)

// TransactionType is the direction of a wallet transaction.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeDebit  TransactionType = "DEBIT"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeCredit || t == TransactionTypeDebit
}

// Wallet is the prepaid balance of one organization. Balance is in cents.
type Wallet struct {
	OrganizationID string    `json:"organization_id"`
	Balance        int64     `json:"balance"`
	Currency       string    `json:"currency"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Transaction is an immutable ledger entry.
type Transaction struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Type           TransactionType `json:"type"`
	Amount         int64           `json:"amount"`
	BalanceBefore  int64           `json:"balance_before"`
	BalanceAfter   int64           `json:"balance_after"`
	Description    string          `json:"description"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	ProcessedBy    string          `json:"processed_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SignedAmount returns the amount with the sign of its effect on the balance.
func (t *Transaction) SignedAmount() int64 {
	if t.Type == TransactionTypeDebit {
		return -t.Amount
	}
	return t.Amount
}

// Consistent reports whether the before/after balances agree with the amount.
func (t *Transaction) Consistent() bool {
	return t.Amount > 0 && t.Type.Valid() && t.BalanceAfter == t.BalanceBefore+t.SignedAmount()
}

// TransactionFilter narrows a transaction listing. Zero values mean no filter.
type TransactionFilter struct {
	Type      TransactionType
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize applies defaults and validates paging parameters.
func (f *TransactionFilter) Normalize() error {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Page < 1 {
		return InvalidArgument("page must be >= 1")
	}
	if f.Limit < 1 || f.Limit > MaxPageLimit {
		return InvalidArgument("limit must be between 1 and %d", MaxPageLimit)
	}
	if f.Type != "" && !f.Type.Valid() {
		return InvalidArgument("unknown transaction type %q", f.Type)
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return InvalidArgument("end date before start date")
	}
	return nil
}

// Offset returns the number of rows to skip for the current page.
func (f *TransactionFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
}

// NewPagination computes the page count for total rows.
func NewPagination(page, limit int, total int64) Pagination {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// TransactionPage is one page of a wallet's history, newest first.
type TransactionPage struct {
	Transactions []*Transaction `json:"transactions"`
	Pagination   Pagination     `json:"pagination"`
}

// CostEstimate is the result of a cost calculation against a wallet.
type CostEstimate struct {
	OrganizationID   string `json:"organization_id"`
	DurationSeconds  int64  `json:"duration_seconds"`
	RatePerHour      int64  `json:"rate_per_hour"`
	TotalCost        int64  `json:"total_cost"`
	CanAfford        bool   `json:"can_afford"`
	CurrentBalance   int64  `json:"current_balance"`
	BalanceAfterCost int64  `json:"balance_after_cost"`
}

// BillingCalculation records the cost computed for one billed meeting.
type BillingCalculation struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organization_id"`
	MeetingID       string    `json:"meeting_id"`
	TransactionID   string    `json:"transaction_id"`
	DurationSeconds int64     `json:"duration_seconds"`
	RatePerHour     int64     `json:"rate_per_hour"`
	TotalCost       int64     `json:"total_cost"`
	CalculatedAt    time.Time `json:"calculated_at"`
}

// BillingStatus is the terminal outcome of a billing attempt.
type BillingStatus string

const (
	// BillingStatusPending is reserved for callers that persist a billing
	// request before processing it. ProcessMeetingBilling never returns it.
	BillingStatusPending BillingStatus = "PENDING"
	BillingStatusCharged BillingStatus = "CHARGED"
	BillingStatusBlocked BillingStatus = "BLOCKED"
	BillingStatusFailed  BillingStatus = "FAILED"
)

// MeetingBillingRequest asks for a finished meeting to be charged.
type MeetingBillingRequest struct {
	MeetingID            string `json:"meeting_id"`
	OrganizationID       string `json:"organization_id"`
	DurationSeconds      int64  `json:"duration_seconds"`
	OverrideBalanceCheck bool   `json:"override_balance_check"`
}

// BillingResult is returned for every billing attempt that reached a
// terminal state.
type BillingResult struct {
	Status         BillingStatus `json:"status"`
	MeetingID      string        `json:"meeting_id"`
	OrganizationID string        `json:"organization_id"`
	TransactionID  string        `json:"transaction_id,omitempty"`
	Cost           int64         `json:"cost"`
	RatePerHour    int64         `json:"rate_per_hour"`
	BalanceBefore  int64         `json:"balance_before"`
	BalanceAfter   int64         `json:"balance_after"`
	Duplicate      bool          `json:"duplicate,omitempty"`
	Reason         string        `json:"reason,omitempty"`
}

// WarningLevel names how much of the budget has been consumed.
type WarningLevel string

const (
	WarningLevelEightyPercent     WarningLevel = "EIGHTY_PERCENT"
	WarningLevelNinetyFivePercent WarningLevel = "NINETY_FIVE_PERCENT"
	WarningLevelExhausted         WarningLevel = "EXHAUSTED"
)

// LowBalanceWarning is raised when a debit leaves a wallet inside a tier.
type LowBalanceWarning struct {
	ID               string       `json:"id"`
	OrganizationID   string       `json:"organization_id"`
	Level            WarningLevel `json:"level"`
	BalanceBefore    int64        `json:"balance_before"`
	BalanceThreshold int64        `json:"balance_threshold"`
	TriggeredAt      time.Time    `json:"triggered_at"`
	EmailSent        bool         `json:"email_sent"`
	EmailSentAt      *time.Time   `json:"email_sent_at,omitempty"`
}
