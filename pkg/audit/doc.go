// Package audit records privileged mutations of the billing system: rate
// changes, manual wallet adjustments and organization creation.
//
// # Overview
//
// Events carry the acting identity and request id taken from the context,
// the affected organization and resource, and before/after values.
//
// Sinks:
//
//   - DBLogger: the audit_logs table, searchable
//   - MemoryLogger: in process, searchable
//   - LogrusLogger: structured log lines
//   - MultiLogger: fan-out; searches go to the first sink
//
// # Usage Example
//
//	event := audit.NewEvent(ctx, audit.ActionWalletCredit, audit.ResourceTypeWallet, orgID)
//	event.OrganizationID = orgID
//	event.Changes = &audit.ChangeDetails{
//		Before: map[string]any{"balance": txn.BalanceBefore},
//		After:  map[string]any{"balance": txn.BalanceAfter},
//	}
//	err := logger.Log(ctx, event)
package audit
