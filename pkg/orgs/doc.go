// Package orgs provides the organization directory the ledger bills
// against.
//
// # Overview
//
// Organizations are created together with their zero-balance wallet. The
// billing package only asks whether an organization exists, through the
// Exists method every Service implements.
//
// Implementations:
//
//   - PostgresService: organizations and wallets rows in one transaction
//   - MemoryService: in-process, wallets created through billing.WalletCreator
//   - CachedService: expiring LRU in front of either
//
// # Usage Example
//
//	svc := orgs.NewCachedService(orgs.NewPostgresService(db, "usd"), 1024, time.Minute, metrics)
//	org, wallet, err := svc.CreateOrganization(ctx, &orgs.CreateOrgRequest{Name: "Acme"})
package orgs
