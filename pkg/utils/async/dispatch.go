package async

import (
	"context"
	"fmt"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/citadel/pkg/utils/errutil"
	"github.com/secmon-lab/citadel/pkg/utils/logging"
)

var inflight sync.WaitGroup

// Dispatch runs task in a new goroutine detached from the caller's cancellation.
// The caller's logger is carried over; errors and panics are handled with errutil.
func Dispatch(ctx context.Context, name string, task func(ctx context.Context) error) {
	bgCtx := logging.With(context.WithoutCancel(ctx), logging.From(ctx).With("task", name))

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				errutil.Handle(bgCtx, goerr.New(fmt.Sprintf("panic: %v", r), goerr.V("task", name)), "async task panicked")
			}
		}()

		if err := task(bgCtx); err != nil {
			errutil.Handle(bgCtx, err, "async task failed")
		}
	}()
}

// Wait blocks until every dispatched task has returned or ctx is done.
// On timeout the watcher goroutine stays parked until the remaining tasks
// return; Wait is only called at shutdown so it exits with the process.
func Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "async tasks still running")
	}
}
