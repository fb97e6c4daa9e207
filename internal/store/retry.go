package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultMaxAttempts – сколько раз повторяем транзакцию при конфликте
const DefaultMaxAttempts = 5

// RetryConfig задаёт ограниченный повтор транзакции
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig – несколько попыток с экспоненциальной паузой
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: 15 * time.Millisecond,
		MaxInterval:     300 * time.Millisecond,
	}
}

// Retry выполняет attempt, повторяя его только при ErrConflict.
// Любая другая ошибка возвращается сразу.
func Retry(ctx context.Context, cfg RetryConfig, attempt func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := attempt()
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, ErrConflict):
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(cfg.MaxAttempts)))

	return unwrapPermanent(err)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Unwrap()
	}
	return err
}
