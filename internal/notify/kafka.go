package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// messageWriter – часть kafka.Writer, которая нужна продюсеру
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier публикует уведомления в топик Kafka
type KafkaNotifier struct {
	writer messageWriter
}

// NewKafkaWriter создаёт продюсера для топика уведомлений
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// NewKafkaNotifier создаёт KafkaNotifier
func NewKafkaNotifier(w messageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

// Notify реализует Notifier. Ключ – получатель, так события одного
// пользователя попадают в одну партицию и сохраняют порядок.
func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("ошибка сериализации уведомления: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(n.RecipientUID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(n.Event)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("ошибка публикации в kafka: %w", err)
	}
	return nil
}

// Close закрывает продюсера
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
