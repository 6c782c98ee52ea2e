// Package postgres implements the billing stores on PostgreSQL.
//
// # Overview
//
// Every wallet mutation runs in one database transaction that first takes
// the wallet row lock with SELECT ... FOR UPDATE, then updates the balance
// and inserts the ledger row. A partial unique index on
// (organization_id, reference_id) for debits backs the idempotency check.
//
// Low-balance warnings are deduplicated under a transaction-scoped advisory
// lock keyed by organization and level.
//
// Schema migrations are embedded and applied by Migrate.
//
// Driver errors are classified into the billing error taxonomy: lock and
// serialization failures become billing.ErrConflict, everything else
// billing.ErrInfrastructure.
package postgres
