package business

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"suppliersync/internal/supplier/models"
	"suppliersync/internal/supplier/pkg"
	"suppliersync/metrics"
	"suppliersync/pkg/logger"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy: сколько раз и с какой паузой повторять запрос.
// Retryable по умолчанию пропускает только ответы 429.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Retryable  func(error) bool
}

type Retrier struct {
	policy RetryPolicy
	sleep  SleepFunc
	pacer  pkg.Pacer
	log    logger.Logger
}

func NewRetrier(policy RetryPolicy, writer io.Writer) *Retrier {
	if policy.Retryable == nil {
		policy.Retryable = pkg.IsRateLimited
	}
	return &Retrier{
		policy: policy,
		sleep:  sleepContext,
		log:    logger.NewLogger(writer, "[ Retry ]"),
	}
}

// WithPacer makes every retry attempt wait on p after its backoff.
func (r *Retrier) WithPacer(p pkg.Pacer) *Retrier {
	r.pacer = p
	return r
}

// WithSleep replaces the backoff wait, tests use it to skip real time.
func (r *Retrier) WithSleep(sleep SleepFunc) *Retrier {
	r.sleep = sleep
	return r
}

// Delay before retry attempt (1-based): BaseDelay * 2^(attempt-1).
func (r *Retrier) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return r.policy.BaseDelay << (attempt - 1)
}

// Do runs op once and then up to MaxRetries more times while the error is
// retryable. Any other error is returned as is, right away.
func (r *Retrier) Do(ctx context.Context, identifier string, op func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !r.policy.Retryable(err) {
			return err
		}
		if attempt >= r.policy.MaxRetries {
			return fmt.Errorf("%s: %w after %d attempts: %w", identifier, ErrRetriesExhausted, attempt+1, err)
		}

		delay := r.Delay(attempt + 1)
		if pkg.IsRateLimited(err) {
			metrics.RecordRateLimitRetry()
		}
		r.log.Log("%s: %v, retry %d/%d in %s", identifier, err, attempt+1, r.policy.MaxRetries, delay)
		if err := r.sleep(ctx, delay); err != nil {
			return fmt.Errorf("%s: backoff interrupted: %w", identifier, err)
		}
		if r.pacer != nil {
			if err := r.pacer.Wait(ctx); err != nil {
				return fmt.Errorf("%s: pacer: %w", identifier, err)
			}
		}
	}
}

// FetchWithRetry is Do around one Fetcher call.
func (r *Retrier) FetchWithRetry(ctx context.Context, fetcher pkg.Fetcher, identifier string) ([]models.RawRecord, error) {
	var records []models.RawRecord
	err := r.Do(ctx, identifier, func(ctx context.Context) error {
		var err error
		records, err = fetcher.Fetch(ctx, identifier)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
