// Package payments проверяет состояние подключённого платёжного аккаунта
// пользователя перед удалением аккаунта.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/balance"
	"go.uber.org/zap"
)

// ErrNotConfigured – у пользователя есть аккаунт, а платёжный провайдер не настроен
var ErrNotConfigured = errors.New("payments: провайдер не настроен")

// BalanceChecker возвращает неурегулированный остаток на подключённом аккаунте
// в минимальных единицах валюты. Пустой accountID – аккаунта нет, остаток 0.
type BalanceChecker interface {
	OutstandingBalance(ctx context.Context, accountID string) (int64, error)
}

// NoAccounts используется без ключа Stripe
type NoAccounts struct{}

// OutstandingBalance реализует BalanceChecker
func (NoAccounts) OutstandingBalance(_ context.Context, accountID string) (int64, error) {
	if accountID != "" {
		return 0, ErrNotConfigured
	}
	return 0, nil
}

type balanceGetter interface {
	Get(params *stripe.BalanceParams) (*stripe.Balance, error)
}

// StripeChecker читает баланс Connect-аккаунта через Stripe API
type StripeChecker struct {
	client balanceGetter
	cb     *gobreaker.CircuitBreaker
}

// NewStripeChecker создаёт проверку баланса с ключом Stripe
func NewStripeChecker(secretKey string, log *zap.Logger) *StripeChecker {
	client := &balance.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
	return newStripeChecker(client, log)
}

func newStripeChecker(client balanceGetter, log *zap.Logger) *StripeChecker {
	st := gobreaker.Settings{
		Name:        "stripe-balance",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Автомат Stripe сменил состояние",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &StripeChecker{client: client, cb: gobreaker.NewCircuitBreaker(st)}
}

// OutstandingBalance реализует BalanceChecker: available + pending по всем валютам
func (s *StripeChecker) OutstandingBalance(ctx context.Context, accountID string) (int64, error) {
	if accountID == "" {
		return 0, nil
	}

	res, err := s.cb.Execute(func() (interface{}, error) {
		params := &stripe.BalanceParams{}
		params.Context = ctx
		params.SetStripeAccount(accountID)
		return s.client.Get(params)
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса Stripe: %w", err)
	}

	bal := res.(*stripe.Balance)
	var total int64
	for _, a := range bal.Available {
		total += a.Amount
	}
	for _, a := range bal.Pending {
		total += a.Amount
	}
	return total, nil
}
