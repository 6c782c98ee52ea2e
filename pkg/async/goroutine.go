package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// run executes fn with panic recovery, a timeout and error logging.
func run(parentCtx context.Context, logger logrus.FieldLogger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logrus.Fields{
				"task":  taskName,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("Background task panicked")
		}
	}()

	if err := fn(ctx); err != nil {
		logger.WithError(err).WithField("task", taskName).Warn("Background task failed")
	}
}

// Dispatcher runs fire-and-forget tasks and tracks them so shutdown can
// wait for in-flight work. Tasks are detached from the caller's
// cancellation: a finished request must not abort its follow-up work.
type Dispatcher struct {
	logger  logrus.FieldLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher whose tasks run at most timeout each.
func NewDispatcher(logger logrus.FieldLogger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{logger: logger, timeout: timeout}
}

// Go starts fn in its own goroutine and returns immediately. Errors and
// panics are logged.
func (d *Dispatcher) Go(ctx context.Context, taskName string, fn func(context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		run(context.WithoutCancel(ctx), d.logger, d.timeout, taskName, fn)
	}()
}

// Wait blocks until every dispatched task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown waits for in-flight tasks or until ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
