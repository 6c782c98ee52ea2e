package postgres

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/walletd/pkg/billing"
)

// SQLSTATE codes the stores react to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

// Store implements the billing storage interfaces on PostgreSQL. Mutations
// and idempotency lookups always use the primary; history listings may be
// served by a read replica.
type Store struct {
	cm *ConnectionManager
}

// NewStore creates a Store over cm.
func NewStore(cm *ConnectionManager) *Store {
	return &Store{cm: cm}
}

// classify maps a driver error to the billing error taxonomy. Lock and
// serialization failures are conflicts the caller may retry.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %s: %v", billing.ErrConflict, op, err)
		}
	}
	return billing.Infrastructure(op, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

// validID reports whether id can be a UUID column value. Anything else
// cannot match a row and is answered without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
