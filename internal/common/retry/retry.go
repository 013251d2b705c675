// internal/common/retry/retry.go
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config defines retry behavior for transient failures.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultConfig covers chat API hiccups without hammering a broken endpoint.
var DefaultConfig = &Config{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// Do executes fn with exponential backoff. Only transient errors are
// retried; anything else returns immediately. operationName lands in the
// wrapped error.
func Do(ctx context.Context, cfg *Config, operationName string, fn func(context.Context) error) error {
	if cfg == nil {
		cfg = DefaultConfig
	}

	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !IsTransient(err) || attempt == cfg.MaxRetries {
			return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, attempt+1, err)
		}

		// Exponential backoff, power-of-two steps capped at MaxDelay
		delay := cfg.BaseDelay * time.Duration(1<<attempt)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt+1, ctx.Err())
		}
	}

	return fmt.Errorf("operation %s failed after %d retries: %w", operationName, cfg.MaxRetries, lastErr)
}

// IsTransient checks if the error is transient and worth retrying. The chat
// API reports rate limiting as "too many requests"; the rest are the usual
// network failure shapes.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
		"too many requests",
		"bad gateway",
		"gateway timeout",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
