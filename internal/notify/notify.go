// Package notify отправляет намерения уведомить пользователя.
//
// Само письмо отправляет внешний сервис рассылок: отсюда уходит только
// событие "уведомить пользователя Y о событии Z". Ошибки отправки
// логируются вызывающей стороной и никогда не откатывают транзакцию обмена.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event – тип уведомления
type Event string

const (
	EventSwapRequested      Event = "swap_requested"
	EventSwapAccepted       Event = "swap_accepted"
	EventAddressConfirmed   Event = "address_confirmed"
	EventAddressesConfirmed Event = "addresses_confirmed"
	EventShipmentConfirmed  Event = "shipment_confirmed"
	EventSwapCompleted      Event = "swap_completed"
	EventSwapCancelled      Event = "swap_cancelled"
	EventNewMessage         Event = "new_message"
)

// Notification – одно намерение уведомить
type Notification struct {
	Event          Event             `json:"event"`
	RecipientUID   string            `json:"recipient_uid"`
	RecipientEmail string            `json:"recipient_email,omitempty"`
	SwapRequestID  string            `json:"swap_request_id"`
	Data           map[string]string `json:"data,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Notifier доставляет уведомление до транспорта
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop ничего не отправляет
type Nop struct{}

// Notify реализует Notifier
func (Nop) Notify(context.Context, Notification) error { return nil }

// LogNotifier пишет уведомления в лог. Используется в разработке.
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier создаёт LogNotifier
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify реализует Notifier
func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.log.Info("📨 Уведомление",
		zap.String("event", string(n.Event)),
		zap.String("recipient", n.RecipientUID),
		zap.String("swap_request_id", n.SwapRequestID),
		zap.Any("data", n.Data),
	)
	return nil
}
