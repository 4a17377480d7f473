package matchhub

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retry runs op up to attempts times with exponential backoff starting at initial.
func retry(ctx context.Context, attempts int, initial time.Duration, op func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = initial
	eb.MaxInterval = 20 * initial
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
	return backoff.Retry(func() error { return op(ctx) }, b)
}
