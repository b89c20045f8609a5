package poll

import (
	"context"
	"time"
)

// Until calls fn immediately and then once per interval, until fn reports
// done or returns an error. Returns ctx.Err() if the context is cancelled
// while waiting for the next attempt.
func Until(ctx context.Context, interval time.Duration, fn func(context.Context) (bool, error)) error {
	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// UntilResult is like Until but for functions that carry a value across
// attempts. The value of the last attempt is returned even on error, so
// callers can report the last observed state.
func UntilResult[T any](ctx context.Context, interval time.Duration, fn func(context.Context) (T, bool, error)) (T, error) {
	var result T
	for {
		var done bool
		var err error
		if result, done, err = fn(ctx); err != nil {
			return result, err
		}
		if done {
			return result, nil
		}
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return result, ctx.Err()
		}
	}
}
