package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/dropvault/backend/internal/types"
)

// RetryPolicy bounds how often a conflicting transaction is re-run
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	OnRetry     func(attempt int)
}

// DefaultRetryPolicy returns the policy used when none is configured
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Backoff:     10 * time.Millisecond,
	}
}

func (p RetryPolicy) run(ctx context.Context, attempt func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for i := 1; ; i++ {
		err := attempt()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTxConflict) {
			return err
		}
		if i >= maxAttempts {
			return types.WrapError(types.ErrConflict,
				fmt.Sprintf("transaction retries exhausted after %d attempts", i), err)
		}
		if p.OnRetry != nil {
			p.OnRetry(i)
		}
		if err := sleepBackoff(ctx, p.Backoff, i); err != nil {
			return types.WrapError(types.ErrStoreUnavailable, "retry interrupted", err)
		}
	}
}

// sleepBackoff waits a linearly growing, jittered interval
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		return ctx.Err()
	}
	wait := base*time.Duration(attempt) + time.Duration(rand.Int63n(int64(base)))
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
