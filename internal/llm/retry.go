package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type retryingCompleter struct {
	next    Completer
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// WithRetry retries failed completions up to retries extra times.
// With retries <= 0 the completer is returned unchanged.
func WithRetry(c Completer, retries int, backoff time.Duration, logger *slog.Logger) Completer {
	if retries <= 0 {
		return c
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryingCompleter{next: c, retries: retries, backoff: backoff, logger: logger}
}

func (r *retryingCompleter) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	var lastErr error
	for i := 0; i <= r.retries; i++ {
		out, err := r.next.Complete(ctx, prompt, opts)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRetryable(err) || i == r.retries {
			break
		}
		delay := r.backoff * time.Duration(1<<i)
		r.logger.Debug("Completion failed, retrying", "attempt", i+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("completion failed after %d attempts: %w", r.retries+1, lastErr)
}

func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
