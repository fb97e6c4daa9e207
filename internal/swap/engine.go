// Package swap реализует протокол обмена ароматами: создание запроса,
// подтверждение адресов, подтверждение отправок, отмену и удаление аккаунта.
//
// Каждая операция – ровно одна транзакция store.RunInTx: прочитать документ
// обмена, проверить предусловия, записать документ, сообщение и счётчики
// профилей вместе. Уведомления собираются внутри транзакции и уходят только
// после фиксации.
package swap

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
	"github.com/rajivgeraev/scentswap-api/internal/notify"
	"github.com/rajivgeraev/scentswap-api/internal/payments"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// DefaultDeletionCooldown – окно после завершённого обмена, в течение которого аккаунт нельзя удалить
const DefaultDeletionCooldown = 30 * 24 * time.Hour

const notifyTimeout = 5 * time.Second

// Engine выполняет переходы состояния обмена
type Engine struct {
	store        store.Store
	notifier     notify.Notifier
	payments     payments.BalanceChecker
	log          *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
	newID        func() string
	monthlyLimit int
	cooldown     time.Duration
}

// Option настраивает Engine
type Option func(*Engine)

// WithNotifier задаёт транспорт уведомлений
func WithNotifier(n notify.Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithPayments задаёт проверку платёжного аккаунта
func WithPayments(p payments.BalanceChecker) Option { return func(e *Engine) { e.payments = p } }

// WithLogger задаёт логгер
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithClock подменяет часы
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithIDGenerator подменяет генератор идентификаторов
func WithIDGenerator(f func() string) Option { return func(e *Engine) { e.newID = f } }

// WithMonthlyLimit ограничивает число запросов на обмен в месяц; 0 – без ограничения
func WithMonthlyLimit(n int) Option { return func(e *Engine) { e.monthlyLimit = n } }

// WithDeletionCooldown задаёт окно после завершённого обмена
func WithDeletionCooldown(d time.Duration) Option { return func(e *Engine) { e.cooldown = d } }

// New создаёт движок поверх хранилища
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		notifier: notify.Nop{},
		payments: payments.NoAccounts{},
		log:      zap.NewNop(),
		tracer:   otel.Tracer("github.com/rajivgeraev/scentswap-api/internal/swap"),
		now:      time.Now,
		newID:    uuid.NewString,
		cooldown: DefaultDeletionCooldown,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	}
	span.End()
}

// run выполняет транзакцию и переводит ошибки хранилища в классы apperr.
// Уведомления, собранные последней успешной попыткой, отправляются после фиксации.
func (e *Engine) run(ctx context.Context, fn func(ctx context.Context, tx store.Tx, out *outbox) error) error {
	var box outbox
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		box.reset()
		return fn(ctx, tx, &box)
	})
	if err != nil {
		return translate(err)
	}
	e.dispatch(ctx, box.pending)
	return nil
}

func translate(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	switch {
	case store.IsConflict(err):
		return apperr.Wrap(apperr.KindConflict, "Обмен одновременно изменён, повторите запрос", err)
	case store.IsNotFound(err):
		return apperr.Wrap(apperr.KindNotFound, "Документ не найден", err)
	case errors.Is(err, store.ErrAlreadyExists):
		return apperr.Wrap(apperr.KindConflict, "Документ уже существует", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.KindUpstreamUnavailable, "Хранилище не ответило вовремя", err)
	}
	return apperr.Wrap(apperr.KindUpstreamUnavailable, "Хранилище недоступно", err)
}

// notFound переводит store.ErrNotFound в not_found, остальное возвращает как есть,
// чтобы конфликт дошёл до повтора транзакции
func notFound(err error, msg string) error {
	if store.IsNotFound(err) {
		return apperr.NotFound(msg)
	}
	return err
}

// outbox копит уведомления внутри попытки транзакции
type outbox struct {
	pending []notify.Notification
}

func (o *outbox) reset() { o.pending = o.pending[:0] }

func (o *outbox) add(n notify.Notification) {
	if n.RecipientUID == "" {
		return
	}
	o.pending = append(o.pending, n)
}

func (e *Engine) dispatch(ctx context.Context, pending []notify.Notification) {
	if len(pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	for _, n := range pending {
		if n.CreatedAt.IsZero() {
			n.CreatedAt = e.clock()
		}
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.log.Warn("Не удалось отправить уведомление",
				zap.String("event", string(n.Event)),
				zap.String("recipient", n.RecipientUID),
				zap.String("swap_request_id", n.SwapRequestID),
				zap.Error(err),
			)
		}
	}
}
