package pipeline

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/pkg/errors"
)

// RetryPolicy bounds retries of one external call.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Retry runs op until it succeeds or the policy is exhausted, backing off
// exponentially between attempts. The last failure is returned as is.
// Cancellation of ctx is never retried.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	policy = policy.normalize()
	rp := retrypolicy.NewBuilder[T]().
		HandleIf(func(_ T, err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}).
		WithBackoff(policy.BaseDelay, policy.MaxDelay).
		WithMaxRetries(policy.MaxRetries).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		Build()

	attempt := 0
	return failsafe.With(rp).WithContext(ctx).Get(func() (T, error) {
		attempt++
		return op(ctx, attempt)
	})
}
