// Package async provides safe fire-and-forget execution for background work.
//
// # Overview
//
// Dispatcher wraps goroutines with panic recovery, a per-task timeout
// and logrus error logging. The ledger uses a Dispatcher to run
// low-balance checks after a debit commits without delaying the caller.
//
//	dispatcher := async.NewDispatcher(logger, 10*time.Second)
//	dispatcher.Go(ctx, "low balance check", func(ctx context.Context) error {
//		_, err := monitor.Check(ctx, orgID, balance)
//		return err
//	})
//	defer dispatcher.Shutdown(shutdownCtx)
package async
