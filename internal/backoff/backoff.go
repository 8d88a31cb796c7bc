// Package backoff retries a transient backend operation with exponential
// delay, per spec.md section 5's "TransientBackend: retry with backoff, up
// to 3 attempts" and section 4's 10ms-to-500ms client-polling backoff
// shape. No backoff library appears anywhere in the pack, so this is a
// deliberately small hand-rolled helper rather than a third-party
// dependency.
package backoff

import (
	"context"
	"errors"
	"time"

	"github.com/sonpython/gridmatch/internal/model"
)

// InitialDelay is the first retry delay.
const InitialDelay = 10 * time.Millisecond

// MaxDelay caps the doubling delay.
const MaxDelay = 500 * time.Millisecond

// MaxAttempts bounds how many times op runs, including the first try.
const MaxAttempts = 3

// Retry runs op, retrying with doubling delay (capped at MaxDelay) while
// the returned error is a *model.TransientBackendError, up to MaxAttempts
// total calls. A non-transient error returns immediately without
// retrying. The last error is returned if every attempt is exhausted.
func Retry(ctx context.Context, op func() error) error {
	delay := InitialDelay
	var err error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > MaxDelay {
			delay = MaxDelay
		}
	}
	return err
}

func isTransient(err error) bool {
	var t *model.TransientBackendError
	return errors.As(err, &t)
}
