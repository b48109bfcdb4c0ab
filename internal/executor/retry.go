package executor

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/intentest/intentest/pkg/errors"
)

// Retrier re-runs a failed resolution-plus-action unit. Only transient
// failures are retried; assertion failures and compile-time errors are
// final on the first attempt.
type Retrier struct {
	// Retries is the number of additional attempts after the first.
	Retries int

	// Delay separates consecutive attempts.
	Delay time.Duration
}

// Do invokes fn until it succeeds, fails fatally, or the retry budget is
// spent. fn receives the attempt number (1-based) and whether to bypass
// the locator cache; every attempt after the first bypasses it. Do
// returns the number of attempts made and the final error.
func (r Retrier) Do(ctx context.Context, fn func(attempt int, bypassCache bool) error) (int, error) {
	attempt := 0
	for {
		attempt++
		err := fn(attempt, attempt > 1)
		if err == nil {
			return attempt, nil
		}
		if !IsTransient(err) || attempt > r.Retries {
			return attempt, err
		}

		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return attempt, err
		}
	}
}

// IsTransient classifies failures for retry purposes. Element resolution
// misses are transient (the page may still be settling); action errors
// carry their own classification; everything else, assertion failures
// and step compilation errors included, is final.
func IsTransient(err error) bool {
	var actionErr *errors.ActionExecutionError
	if stderrors.As(err, &actionErr) {
		return actionErr.Transient
	}
	var notFound *errors.ElementNotFoundError
	return stderrors.As(err, &notFound)
}
