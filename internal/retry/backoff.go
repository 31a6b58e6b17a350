package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Config controls exponential-backoff retry behavior.
type Config struct {
	MaxRetries int           `json:"max_retries"` // retries after the first attempt
	BaseDelay  time.Duration `json:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay"`
	Multiplier float64       `json:"multiplier"`
	Jitter     bool          `json:"jitter"`

	// Retryable decides whether a failed attempt should be retried.
	// A nil Retryable retries every error.
	Retryable func(error) bool `json:"-"`
}

// Result describes the outcome of a retried operation.
type Result struct {
	Attempts      int
	TotalDuration time.Duration
	LastErr       error
	Success       bool
}

// DefaultConfig returns the retry settings used for model calls: three
// retries with 1s/2s/4s backoff.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Do executes op with exponential backoff. Non-retryable errors and
// context cancellation stop the loop immediately; the backoff sleep itself
// is cut short if the context is cancelled mid-wait.
func Do(ctx context.Context, cfg Config, logger zerolog.Logger, op func() error) Result {
	start := time.Now()
	res := Result{}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		res.Attempts = attempt + 1

		err := op()
		if err == nil {
			res.Success = true
			res.TotalDuration = time.Since(start)
			if attempt > 0 {
				logger.Debug().Int("attempts", res.Attempts).Dur("total", res.TotalDuration).
					Msg("operation succeeded after retries")
			}
			return res
		}
		res.LastErr = err

		if cfg.Retryable != nil && !cfg.Retryable(err) {
			res.TotalDuration = time.Since(start)
			logger.Debug().Err(err).Int("attempt", res.Attempts).
				Msg("non-retryable error, giving up")
			return res
		}

		if attempt >= cfg.MaxRetries {
			res.TotalDuration = time.Since(start)
			logger.Debug().Err(err).Int("attempts", res.Attempts).
				Msg("retries exhausted")
			return res
		}

		if ctx.Err() != nil {
			res.LastErr = ctx.Err()
			res.TotalDuration = time.Since(start)
			return res
		}

		delay := backoffDelay(cfg, attempt)
		logger.Debug().Err(err).Int("attempt", res.Attempts).Dur("delay", delay).
			Msg("operation failed, retrying after backoff")

		select {
		case <-ctx.Done():
			res.LastErr = ctx.Err()
			res.TotalDuration = time.Since(start)
			return res
		case <-time.After(delay):
		}
	}

	res.TotalDuration = time.Since(start)
	return res
}

// backoffDelay computes baseDelay * multiplier^attempt, capped at MaxDelay,
// with up to 10% jitter.
func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}

	return time.Duration(delay)
}
