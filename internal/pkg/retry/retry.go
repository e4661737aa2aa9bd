package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Operation represents a function that can be retried.
type Operation func() error

// WithRetry executes the given operation with exponential backoff, giving up
// after maxRetries additional attempts or when the context is done.
func WithRetry(ctx context.Context, log zerolog.Logger, name string, op Operation, maxRetries uint64, baseDelay time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = baseDelay

	err := backoff.RetryNotify(
		backoff.Operation(op),
		backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx),
		func(err error, next time.Duration) {
			log.Warn().Err(err).Str("op", name).Dur("retry_in", next).Msg("operation failed, retrying")
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
