package cluster

import (
	"context"
	"time"
)

// WaitForCondition polls cond every interval until it reports true or timeout
// elapses. onSuccess receives the elapsed time, onFailure the timeout; either
// may be nil. A condition error aborts the wait.
func WaitForCondition(
	ctx context.Context,
	what string,
	cond func(ctx context.Context) (bool, error),
	interval, timeout time.Duration,
	onSuccess func(elapsed time.Duration),
	onFailure func(timeout time.Duration),
) error {
	start := time.Now()
	deadline := start.Add(timeout)

	for time.Now().Before(deadline) {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			if onSuccess != nil {
				onSuccess(time.Since(start))
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	if onFailure != nil {
		onFailure(timeout)
	}
	return NewTimeoutError(what, timeout)
}
