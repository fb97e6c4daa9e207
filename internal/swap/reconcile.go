package swap

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// BlockReason – почему аккаунт нельзя удалить прямо сейчас
type BlockReason string

const (
	BlockActiveSwap        BlockReason = "active_swap"
	BlockRecentSwap        BlockReason = "recent_swap_cooldown"
	BlockActiveListings    BlockReason = "active_listings"
	BlockPaymentBalance    BlockReason = "payment_balance"
	BlockPaymentUnverified BlockReason = "payment_unverified"
)

var blockMessages = map[BlockReason]string{
	BlockActiveSwap:        "Сначала завершите или отмените активные обмены",
	BlockRecentSwap:        "Недавно завершён обмен, удаление аккаунта пока недоступно",
	BlockActiveListings:    "Сначала снимите с публикации активные объявления",
	BlockPaymentBalance:    "На платёжном аккаунте есть неурегулированный баланс",
	BlockPaymentUnverified: "Не удалось проверить платёжный аккаунт, обратитесь в поддержку",
}

// deletedUsername подставляется в снимок удалённого участника
const deletedUsername = "Удалённый пользователь"

// DeletionCheck – результат предварительной проверки удаления
type DeletionCheck struct {
	Allowed bool        `json:"allowed"`
	Reason  BlockReason `json:"reason,omitempty"`
	Message string      `json:"message,omitempty"`
}

func blocked(r BlockReason) *DeletionCheck {
	return &DeletionCheck{Reason: r, Message: blockMessages[r]}
}

// DeletionResult – что сделало удаление аккаунта
type DeletionResult struct {
	SwapsAnonymized int `json:"swaps_anonymized"`
	MessagesDeleted int `json:"messages_deleted"`
	QuotaRefunds    int `json:"quota_refunds"`
}

// guardrails проверяет обмены и объявления пользователя. Платёжный аккаунт
// проверяется отдельно, вне транзакции.
func (e *Engine) guardrails(ctx context.Context, tx store.Tx, uid string) (*DeletionCheck, []*models.SwapRequest, error) {
	swaps, err := tx.ListSwapsByParticipant(ctx, uid)
	if err != nil {
		return nil, nil, err
	}

	now := e.clock()
	for _, s := range swaps {
		if s.Status.InFlight() {
			return blocked(BlockActiveSwap), swaps, nil
		}
	}
	for _, s := range swaps {
		if s.Status == models.StatusSwapCompleted && s.CompletedAt != nil && now.Sub(*s.CompletedAt) < e.cooldown {
			return blocked(BlockRecentSwap), swaps, nil
		}
	}

	active, err := tx.CountActiveListings(ctx, uid)
	if err != nil {
		return nil, nil, err
	}
	if active > 0 {
		return blocked(BlockActiveListings), swaps, nil
	}
	return &DeletionCheck{Allowed: true}, swaps, nil
}

// CheckAccountDeletion проверяет все ограничения, ничего не меняя
func (e *Engine) CheckAccountDeletion(ctx context.Context, uid string) (res *DeletionCheck, err error) {
	ctx, span := e.startSpan(ctx, "swap.check_account_deletion", attribute.String("uid", uid))
	defer func() { endSpan(span, err) }()

	if uid == "" {
		return nil, apperr.New(apperr.KindUnauthenticated, "Пользователь не аутентифицирован")
	}

	var accountID string
	err = e.run(ctx, func(ctx context.Context, tx store.Tx, _ *outbox) error {
		user, err := tx.GetUser(ctx, uid)
		if err != nil {
			return notFound(err, "Профиль не найден")
		}
		accountID = user.StripeAccountID

		res, _, err = e.guardrails(ctx, tx, uid)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		return res, nil
	}

	return e.checkPayments(ctx, uid, accountID), nil
}

// checkPayments спрашивает платёжного провайдера. Любая ошибка блокирует удаление.
func (e *Engine) checkPayments(ctx context.Context, uid, accountID string) *DeletionCheck {
	balance, err := e.payments.OutstandingBalance(ctx, accountID)
	if err != nil {
		e.log.Warn("Не удалось проверить платёжный аккаунт", zapUser(uid), zap.Error(err))
		return blocked(BlockPaymentUnverified)
	}
	if balance > 0 {
		return blocked(BlockPaymentBalance)
	}
	return &DeletionCheck{Allowed: true}
}

// DeleteAccount удаляет профиль пользователя. Переписка всех его обменов
// удаляется, сами обмены остаются у второй стороны с пометкой deletedUsers.
// Перед удалением переписки решается, вернуть ли инициатору запрос в квоту.
func (e *Engine) DeleteAccount(ctx context.Context, uid string) (res *DeletionResult, err error) {
	ctx, span := e.startSpan(ctx, "swap.delete_account", attribute.String("uid", uid))
	defer func() { endSpan(span, err) }()

	check, err := e.CheckAccountDeletion(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return nil, apperr.Blocked(string(check.Reason), check.Message)
	}

	err = e.run(ctx, func(ctx context.Context, tx store.Tx, _ *outbox) error {
		now := e.clock()
		res = &DeletionResult{}

		// Состояние могло измениться после проверки платежей
		check, swaps, err := e.guardrails(ctx, tx, uid)
		if err != nil {
			return err
		}
		if !check.Allowed {
			return apperr.Blocked(string(check.Reason), check.Message)
		}

		p := newProfiles(tx)
		for _, swap := range swaps {
			refunded, err := e.refundInitiator(ctx, tx, p, swap, uid)
			if err != nil {
				return err
			}
			if refunded {
				res.QuotaRefunds++
			}

			n, err := tx.DeleteMessages(ctx, swap.ID)
			if err != nil {
				return err
			}
			res.MessagesDeleted += n

			anonymize(swap, uid)
			swap.UpdatedAt = now
			if err := tx.UpdateSwap(ctx, swap); err != nil {
				return err
			}
			res.SwapsAnonymized++
		}
		if err := p.flush(ctx); err != nil {
			return err
		}

		if err := tx.DeleteUser(ctx, uid); err != nil {
			return notFound(err, "Профиль не найден")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Аккаунт удалён", zapUser(uid),
		zap.Int("swaps", res.SwapsAnonymized), zap.Int("refunds", res.QuotaRefunds))
	return res, nil
}

// refundInitiator возвращает инициатору запрос в месячную квоту, если вторая
// сторона так и не прочитала первое сообщение. Решение опирается на readBy,
// который клиент ставит при открытии переписки; при любой ошибке поиска
// запрос не возвращается.
func (e *Engine) refundInitiator(ctx context.Context, tx store.Tx, p *profiles, swap *models.SwapRequest, deletingUID string) (bool, error) {
	initiator := swap.OfferedBy.UID
	if initiator == deletingUID || swap.DeletedUsers[initiator] {
		return false, nil
	}

	seed, err := tx.FindFirstMessageByType(ctx, swap.ID, models.MessageSwapRequest)
	if store.IsConflict(err) {
		return false, err
	}
	if err != nil {
		e.log.Warn("Первое сообщение обмена не найдено, квота не возвращается",
			zapSwap(swap.ID), zapUser(initiator), zap.Error(err))
		return false, nil
	}
	if seed.IsReadBy(swap.Counterparty(initiator)) {
		return false, nil
	}

	var refunded bool
	err = p.update(ctx, initiator, func(u *models.UserProfile) {
		refunded = u.RefundMonthlyRequest(swap.CreatedAt)
	})
	if store.IsConflict(err) {
		return false, err
	}
	if err != nil {
		e.log.Warn("Профиль инициатора недоступен, квота не возвращается",
			zapSwap(swap.ID), zapUser(initiator), zap.Error(err))
		return false, nil
	}
	return refunded, nil
}

// anonymize помечает участника удалённым и стирает его публичные данные в снимке
func anonymize(swap *models.SwapRequest, uid string) {
	swap.EnsureMaps()
	swap.DeletedUsers[uid] = true
	if snap := swap.Participant(uid); snap != nil {
		snap.Username = deletedUsername
		snap.AvatarURL = ""
		snap.FormattedAddress = ""
		snap.IsVerified = false
		snap.IsPremium = false
	}
}
