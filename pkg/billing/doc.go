// Package billing implements the prepaid wallet ledger.
//
// # Overview
//
// Every organization owns one wallet whose balance is held in integer
// cents. The balance changes only through Ledger.Credit and Ledger.Debit,
// and each change appends an immutable Transaction in the same atomic
// scope. Replaying an organization's transactions from zero therefore
// reproduces its balance.
//
// # Components
//
//   - RateResolver: hourly rate from the "pricing_per_hour" config key,
//     200 cents when unset
//   - Calculator: ceil(seconds * rate / 3600) and an affordability verdict
//   - Ledger: locked credit/debit, non-negative unless overridden
//   - Orchestrator: meeting billing (CHARGED, BLOCKED or FAILED) and the
//     CanStartMeeting pre-check
//   - Monitor: low-balance tiers with cool-downs, run after each debit
//
// # Usage Example
//
//	svc := billing.NewService(billing.Stores{
//		Ledger:        store,
//		Calculations:  store,
//		Warnings:      store,
//		Config:        configStore,
//		Organizations: directory,
//	}, billing.ServiceConfig{Dispatcher: async.NewDispatcher(logger, 10*time.Second)})
//
//	result, err := svc.ProcessMeetingBilling(ctx, billing.MeetingBillingRequest{
//		MeetingID:       meetingID,
//		OrganizationID:  orgID,
//		DurationSeconds: 1800,
//	}, actorID)
//
// # Errors
//
// Failures wrap ErrInvalidArgument, ErrNotFound, ErrInsufficientBalance,
// ErrConflict or ErrInfrastructure; use the IsX helpers to classify them.
//
// # Related Packages
//
//   - pkg/storage/memory, pkg/storage/postgres: LedgerStore implementations
//   - pkg/orgs: OrganizationDirectory
package billing
