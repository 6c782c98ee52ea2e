// Package api provides the HTTP API of the walletd billing service.
//
// # Overview
//
// The API exposes the wallet ledger to the rest of the platform: wallet and
// transaction reads, the billing rate, cost estimates, meeting billing and
// the admission pre-check. A second group of routes, gated to super admins,
// creates organizations, adjusts wallets by hand and searches the audit log.
//
// # Routes
//
// All routes live under /api/v1 and require the X-Actor-ID header set by
// the upstream gateway:
//
//	GET  /billing/organizations/{org_id}/wallet
//	GET  /billing/organizations/{org_id}/wallet/transactions
//	GET  /billing/rate
//	PUT  /billing/rate                                      (super admin)
//	POST /billing/calculate
//	POST /billing/meetings/process-billing
//	GET  /billing/organizations/{org_id}/can-start-meeting
//	GET  /billing/organizations/{org_id}/billing-calculations
//	GET  /billing/organizations/{org_id}/low-balance-warnings
//	POST /billing/low-balance-warnings/{warning_id}/email-sent
//	POST /organizations                                     (super admin)
//	POST /organizations/{org_id}/wallet/credit              (super admin)
//	POST /organizations/{org_id}/wallet/debit               (super admin)
//	GET  /admin/audit-logs                                  (super admin)
//
// Health checks are served on /health/live and /health/ready, and
// Prometheus metrics on /metrics.
//
// # Errors
//
// Failures are returned as {"error": "...", "code": "..."}. BLOCKED and
// FAILED billing results are business outcomes and come back with 200.
//
// # Usage
//
//	server := api.NewServer(api.ServerConfig{
//		Billing:       svc,
//		Organizations: backend.Organizations,
//		Audit:         backend.Audit,
//		Logger:        logger,
//	})
//	http.ListenAndServe(":8080", server)
package api
