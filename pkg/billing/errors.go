package billing

import (
	"errors"
	"fmt"
)

// Error taxonomy. Storage backends and the ledger wrap these so callers can
// classify failures with errors.Is or the IsX helpers below.
var (
	ErrInvalidArgument     = errors.New("billing: invalid argument")
	ErrNotFound            = errors.New("billing: not found")
	ErrInsufficientBalance = errors.New("billing: insufficient balance")
	ErrConflict            = errors.New("billing: concurrent modification")
	ErrInfrastructure      = errors.New("billing: infrastructure failure")
)

// Specialised errors. Each wraps one of the taxonomy sentinels.
var (
	ErrWalletNotFound       = fmt.Errorf("%w: wallet", ErrNotFound)
	ErrOrganizationNotFound = fmt.Errorf("%w: organization", ErrNotFound)
	ErrWarningNotFound      = fmt.Errorf("%w: low balance warning", ErrNotFound)
	ErrDuplicateReference   = fmt.Errorf("%w: reference already debited", ErrConflict)
	ErrInvalidRate          = fmt.Errorf("%w: invalid rate configuration", ErrInfrastructure)
)

// InvalidArgument returns an error wrapping ErrInvalidArgument with a reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Infrastructure wraps a storage or network error as ErrInfrastructure.
func Infrastructure(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}

// IsInvalidArgument reports whether err is an input validation failure.
func IsInvalidArgument(err error) bool { return errors.Is(err, ErrInvalidArgument) }

// IsNotFound reports whether err is a missing organization, wallet or record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInsufficientBalance reports whether a debit was refused by the balance check.
func IsInsufficientBalance(err error) bool { return errors.Is(err, ErrInsufficientBalance) }

// IsConflict reports whether err is a concurrent-modification failure.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsInfrastructure reports whether err came from an unreachable or failing dependency.
func IsInfrastructure(err error) bool { return errors.Is(err, ErrInfrastructure) }

// DuplicateReferenceError is returned by Debit when the reference id was
// already debited for the organization. Existing carries the original
// transaction when the backend could resolve it.
type DuplicateReferenceError struct {
	OrganizationID string
	ReferenceID    string
	Existing       *Transaction
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("billing: reference %q already debited for organization %s", e.ReferenceID, e.OrganizationID)
}

func (e *DuplicateReferenceError) Unwrap() error { return ErrDuplicateReference }
