package scrape

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy bounds how transient fetch errors are retried: exponential
// backoff from InitialInterval, capped at MaxInterval, up to MaxAttempts
// total attempts. Non-transient errors are never retried.
type RetryPolicy struct {
	InitialInterval    time.Duration `json:"initial_interval"`
	BackoffCoefficient float64       `json:"backoff_coefficient"`
	MaxInterval        time.Duration `json:"max_interval"`
	MaxAttempts        int           `json:"max_attempts"`
}

// DefaultRetryPolicy returns the default bounded backoff.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		InitialInterval:    1 * time.Second,
		BackoffCoefficient: 2.0,
		MaxInterval:        30 * time.Second,
		MaxAttempts:        3,
	}
}

// Do runs fn until it succeeds, fails permanently, or the attempt budget
// is exhausted. The last error is returned when the budget runs out.
func (p *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	interval := p.InitialInterval

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", interval).
			Msg("Transient error, backing off")

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		interval = time.Duration(float64(interval) * p.BackoffCoefficient)
		if interval > p.MaxInterval {
			interval = p.MaxInterval
		}
	}
	return err
}
