package audit

import (
	"time"
)

// Action is the kind of privileged mutation being recorded.
type Action string

const (
	ActionConfigUpdate       Action = "CONFIG_UPDATE"
	ActionWalletCredit       Action = "WALLET_CREDIT"
	ActionWalletDebit        Action = "WALLET_DEBIT"
	ActionOrganizationCreate Action = "ORGANIZATION_CREATE"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionConfigUpdate, ActionWalletCredit, ActionWalletDebit, ActionOrganizationCreate:
		return true
	}
	return false
}

// ResourceType represents the type of resource being changed
type ResourceType string

const (
	ResourceTypeConfig       ResourceType = "config"
	ResourceTypeWallet       ResourceType = "wallet"
	ResourceTypeOrganization ResourceType = "organization"
)

// Event represents a single audit log entry
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	ActorID   string    `json:"actor_id"`

	OrganizationID string       `json:"organization_id,omitempty"`
	ResourceType   ResourceType `json:"resource_type,omitempty"`
	ResourceID     string       `json:"resource_id,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`

	// Changes tracking (before/after for updates)
	Changes *ChangeDetails `json:"changes,omitempty"`
}

// ChangeDetails tracks before/after values for updates
type ChangeDetails struct {
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
}

// SearchFilter narrows an audit log search. Zero values mean no filter.
type SearchFilter struct {
	OrganizationID string
	Action         Action
	StartTime      *time.Time
	EndTime        *time.Time
	Limit          int
}

const (
	DefaultSearchLimit = 50
	MaxSearchLimit     = 500
)

func (f *SearchFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultSearchLimit
	case f.Limit > MaxSearchLimit:
		return MaxSearchLimit
	}
	return f.Limit
}

func (f *SearchFilter) matches(e *Event) bool {
	if f.OrganizationID != "" && e.OrganizationID != f.OrganizationID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}
