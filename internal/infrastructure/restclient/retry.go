package restclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

var (
	// RetryInitialInterval and RetryMaxInterval bound the wait between two
	// attempts.
	RetryInitialInterval = 500 * time.Millisecond
	RetryMaxInterval     = time.Minute
)

// Retry calls op until it succeeds, fails with an APIError or ctx is done.
// In the latter case the context error is returned.
func Retry(ctx context.Context, name string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = RetryInitialInterval
	bo.MaxInterval = RetryMaxInterval
	bo.MaxElapsedTime = 0

	err := backoff.RetryNotify(
		func() error {
			err := op()
			if err != nil && IsAPIError(err) {
				return backoff.Permanent(err)
			}
			return err
		},
		backoff.WithContext(bo, ctx),
		func(err error, d time.Duration) {
			log.WithError(err).Warnf("%s failed, retrying in %s", name, d.Round(time.Millisecond))
		},
	)
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil && !IsAPIError(err) {
		return ctxErr
	}
	return err
}
