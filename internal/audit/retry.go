package audit

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/yaserfarook1/SentinalLens/internal/workspace"
)

const (
	maxRetryAttempts    = 3
	initialRetryBackoff = 100 * time.Millisecond
	maxRetryBackoff     = 2 * time.Second
)

var retryableErrorSubstrings = []string{
	"timeout",
	"i/o timeout",
	"tls handshake timeout",
	"eof",
	"unexpected eof",
	"broken pipe",
	"connection reset",
	"connection refused",
	"connection aborted",
	"connection closed",
	"use of closed network connection",
	"network is unreachable",
	"no route to host",
	"no such host",
	"temporarily unavailable",
}

type retryConfig struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sleep          func(context.Context, time.Duration) error
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts:    maxRetryAttempts,
		initialBackoff: initialRetryBackoff,
		maxBackoff:     maxRetryBackoff,
		sleep:          sleepWithContext,
	}
}

func (cfg retryConfig) normalized() retryConfig {
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = maxRetryAttempts
	}
	if cfg.initialBackoff <= 0 {
		cfg.initialBackoff = initialRetryBackoff
	}
	if cfg.maxBackoff <= 0 {
		cfg.maxBackoff = maxRetryBackoff
	}
	if cfg.sleep == nil {
		cfg.sleep = sleepWithContext
	}
	if cfg.maxBackoff < cfg.initialBackoff {
		cfg.maxBackoff = cfg.initialBackoff
	}
	return cfg
}

// executeWithRetry runs fn up to cfg.maxAttempts times with exponential
// backoff. Only transient errors are retried; cancellation short-circuits
// between attempts and during backoff sleeps.
func executeWithRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	cfg = cfg.normalized()
	backoff := cfg.initialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		if err := contextError(ctx); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctxErr := contextError(ctx); ctxErr != nil {
			return ctxErr
		}

		if !isRetryableError(err) || attempt == cfg.maxAttempts {
			return err
		}

		if err := cfg.sleep(ctx, backoff); err != nil {
			if ctxErr := contextError(ctx); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		if backoff < cfg.maxBackoff {
			backoff *= 2
			if backoff > cfg.maxBackoff {
				backoff = cfg.maxBackoff
			}
		}
	}

	return lastErr
}

func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return err
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return contextError(ctx)
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

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var remote *workspace.RemoteError
	if errors.As(err, &remote) {
		return remote.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errText := strings.ToLower(err.Error())
	for _, marker := range retryableErrorSubstrings {
		if strings.Contains(errText, marker) {
			return true
		}
	}

	return false
}
