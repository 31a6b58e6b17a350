package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmstr/mmstr/internal/retry"
)

// DefaultTimeout bounds a single logical model call, including all retries.
const DefaultTimeout = 60 * time.Second

// ResilientClient wraps a Client with a call deadline and exponential
// backoff retries for transient provider failures.
type ResilientClient struct {
	client  Client
	timeout time.Duration
	retries retry.Config
	logger  zerolog.Logger
}

// NewResilientClient wraps client with the given timeout and retry config.
// A zero timeout falls back to DefaultTimeout.
func NewResilientClient(client Client, timeout time.Duration, cfg retry.Config, logger zerolog.Logger) *ResilientClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg.Retryable = IsRetryable
	return &ResilientClient{
		client:  client,
		timeout: timeout,
		retries: cfg,
		logger:  logger,
	}
}

// Complete runs the underlying call under a single deadline that spans all
// retry attempts and backoff sleeps, so a timeout firing mid-backoff
// cancels the wait instead of racing it. Errors come back classified.
func (rc *ResilientClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	var response string
	res := retry.Do(ctx, rc.retries, rc.logger, func() error {
		out, err := rc.client.Complete(ctx, systemPrompt, userPrompt)
		if err != nil {
			return Classify(err)
		}
		response = out
		return nil
	})

	if !res.Success {
		err := res.LastErr
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = Classify(context.DeadlineExceeded)
		}
		rc.logger.Warn().Err(err).Int("attempts", res.Attempts).
			Dur("duration", res.TotalDuration).Msg("model call failed")
		return "", err
	}

	return response, nil
}

// CompleteJSON performs a resilient completion and decodes the JSON payload
// into target. Decode failures are terminal: a malformed response is a bad
// model output, so it is surfaced immediately rather than retried.
func (rc *ResilientClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, target interface{}) error {
	raw, err := rc.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return err
	}
	return DecodeResponse(raw, target)
}
