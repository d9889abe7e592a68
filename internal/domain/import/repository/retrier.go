package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes worth another attempt.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
)

const maxWriteRetries = 3

// Retrier re-runs a write while PostgreSQL reports a serialization failure
// or a deadlock. Any other error ends the attempt at once.
type Retrier struct {
	policy func() backoff.BackOff
	logger *slog.Logger
}

func NewRetrier(logger *slog.Logger) *Retrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{policy: writePolicy, logger: logger}
}

func writePolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 10 * time.Second
	return backoff.WithMaxRetries(b, maxWriteRetries)
}

// Retry runs write until it succeeds, fails with a non-retryable error or
// the policy gives up. attrs describe the record and go on every retry log.
func (r *Retrier) Retry(ctx context.Context, write func() error, attrs ...any) error {
	attempt := 0
	notify := func(err error, wait time.Duration) {
		attempt++
		args := append([]any{"attempt", attempt, "wait", wait, "error", err}, attrs...)
		r.logger.Warn("movement write conflicted, retrying", args...)
	}

	return backoff.RetryNotify(func() error {
		err := write()
		if err == nil || IsRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(r.policy(), ctx), notify)
}

// IsRetryable reports whether err is a serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgErrDeadlock || pgErr.Code == pgErrSerializationFailure
}
