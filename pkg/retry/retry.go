package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imgurcomments/pkg/config"
	errs "imgurcomments/pkg/errors"
	"imgurcomments/pkg/logger"
)

// quotaFloor is the shortest pause after a quota failure that came without a
// reset time
const quotaFloor = 30 * time.Second

// Operation is one attempt at something that may fail transiently
type Operation func(ctx context.Context) error

// OperationWithResult is an Operation that also produces a value
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Config controls how often and how patiently an operation is retried
type Config struct {
	// MaxAttempts counts the first attempt too; 0 means no limit
	MaxAttempts int
	Backoff     Backoff
	// MaxWait gives up instead of pausing longer than this; 0 means no limit
	MaxWait time.Duration
	RetryIf func(error) bool
	// OnRetry is called before each pause
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig retries three times with exponential backoff, following
// server hints
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     &ServerHinted{Base: DefaultExponential(), QuotaFloor: quotaFloor},
		MaxWait:     5 * time.Minute,
		RetryIf:     DefaultRetryIf,
		Logger:      logger.GetLogger(),
	}
}

// FromConfig builds a Config from the retry section. When retries are
// disabled the operation runs exactly once.
func FromConfig(cfg config.RetryConfig, log logger.Logger) *Config {
	if log == nil {
		log = logger.GetLogger()
	}
	if !cfg.Enabled {
		return &Config{MaxAttempts: 1, Backoff: Constant(0), RetryIf: DefaultRetryIf, Logger: log}
	}

	return &Config{
		MaxAttempts: cfg.MaxAttempts,
		Backoff: &ServerHinted{
			Base: &Exponential{
				Initial:    cfg.InitialBackoff,
				Max:        cfg.MaxBackoff,
				Multiplier: cfg.Multiplier,
				Jitter:     0.1,
			},
			QuotaFloor: quotaFloor,
		},
		MaxWait: cfg.MaxWait,
		RetryIf: DefaultRetryIf,
		Logger:  log,
	}
}

// DefaultRetryIf retries transport failures, quota exhaustion, 429 and 5xx
// responses. Malformed data, other 4xx responses, cache failures and
// cancellation are final.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errs.IsRetryableError(err)
}

// Do runs op until it succeeds, fails with a final error, runs out of
// attempts or ctx ends
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			log.ErrorWithFields("giving up after retries", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
		}

		var delay time.Duration
		if cfg.Backoff != nil {
			delay = cfg.Backoff.Delay(attempt, err)
		}
		if cfg.MaxWait > 0 && delay > cfg.MaxWait {
			return fmt.Errorf("not retrying, the API asked to wait %s: %w", delay.Round(time.Second), err)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay":        delay,
			"max_attempts": cfg.MaxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult is Do for operations that return a value
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, error) {
	var result T

	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)

	return result, err
}
