package remote

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// isRetriable reports whether err is a transient Postgres conflict worth
// retrying inside the same remote call. Connectivity failures are not in
// this set; the sync engine owns that policy through failed-state parking
// and its periodic ticks.
func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// WithRetry runs fn, retrying serialization and deadlock conflicts with
// jittered exponential backoff starting at delay. retries counts retries,
// not calls: fn runs at most retries+1 times.
func WithRetry(ctx context.Context, retries int, delay time.Duration, fn func() error) error {
	for {
		err := fn()
		if err == nil || !isRetriable(err) || retries == 0 {
			return err
		}
		retries--

		wait := delay + time.Duration(rand.Int64N(int64(delay)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
}
