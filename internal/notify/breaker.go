package notify

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig – параметры автомата
type BreakerConfig struct {
	MaxFailures uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// DefaultBreakerConfig – пять ошибок подряд размыкают цепь на 30 секунд
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, Interval: time.Minute, Timeout: 30 * time.Second}
}

// Breaker размыкает цепь, когда транспорт уведомлений лежит,
// чтобы запросы к обменам не ждали таймаутов брокера.
type Breaker struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker оборачивает Notifier автоматом
func NewBreaker(next Notifier, cfg BreakerConfig, log *zap.Logger) *Breaker {
	st := gobreaker.Settings{
		Name:        "notify",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Автомат уведомлений сменил состояние",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// Notify реализует Notifier
func (b *Breaker) Notify(ctx context.Context, n Notification) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Notify(ctx, n)
	})
	return err
}

// State возвращает состояние автомата
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
