// Package storage selects and opens the persistence backend for walletd.
//
// # Overview
//
// Two backends implement every billing storage capability:
//
//   - memory: process-local maps with a mutex per wallet. Suitable for tests
//     and single-process development.
//   - postgres: row-level locking with SELECT ... FOR UPDATE, embedded
//     schema migrations, and read replicas for history listings.
//
// Open layers optional caches on top of either backend: a Redis read-through
// cache for system configuration (the billing rate) and an expiring LRU in
// front of the organization directory.
//
// # Usage Example
//
//	backend, err := storage.Open(ctx, cfg, metrics, logger)
//	if err != nil {
//		return err
//	}
//	defer backend.Close()
//
//	svc := billing.NewService(backend.Stores, billing.ServiceConfig{...})
package storage
