package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// streamAdder – часть redis.Client, которая нужна для XADD
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisNotifier кладёт уведомления в Redis Stream, откуда их забирает сервис рассылок
type RedisNotifier struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewRedisNotifier создаёт RedisNotifier
func NewRedisNotifier(client streamAdder, stream string) *RedisNotifier {
	return &RedisNotifier{client: client, stream: stream, maxLen: 100000}
}

// Notify реализует Notifier
func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления: %w", err)
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: true,
		Values: map[string]any{
			"event":     string(n.Event),
			"recipient": n.RecipientUID,
			"payload":   string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("ошибка записи в redis stream: %w", err)
	}
	return nil
}
