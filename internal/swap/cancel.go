package swap

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/notify"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// CancelResult – итог отмены
type CancelResult struct {
	Cancelled bool              `json:"cancelled"`
	Status    models.SwapStatus `json:"status"`
}

// Cancel переводит незавершённый обмен в cancelled. Отменить может любой участник.
// Счётчики не трогаются.
func (e *Engine) Cancel(ctx context.Context, swapID, callerUID string) (res *CancelResult, err error) {
	ctx, span := e.startSpan(ctx, "swap.cancel",
		attribute.String("swap_request_id", swapID), attribute.String("caller", callerUID))
	defer func() { endSpan(span, err) }()

	if swapID == "" {
		return nil, apperr.InvalidRequest("Не указан обмен")
	}

	err = e.run(ctx, func(ctx context.Context, tx store.Tx, out *outbox) error {
		now := e.clock()

		swap, err := tx.GetSwap(ctx, swapID)
		if err != nil {
			return notFound(err, "Обмен не найден")
		}
		if !swap.HasParticipant(callerUID) {
			return apperr.Forbidden("Вы не участник этого обмена")
		}
		if swap.Status == models.StatusCancelled {
			res = &CancelResult{Cancelled: true, Status: swap.Status}
			return nil
		}
		if !swap.Status.CanAdvanceTo(models.StatusCancelled) {
			return apperr.InvalidState("Завершённый обмен нельзя отменить")
		}

		swap.Status = models.StatusCancelled
		swap.CancelledBy = callerUID
		swap.CancelledAt = &now
		swap.UpdatedAt = now

		err = tx.InsertMessage(ctx, &models.Message{
			ID:            e.newID(),
			SwapRequestID: swapID,
			Type:          models.MessageSwapCancelled,
			SenderUID:     callerUID,
			ReadBy:        []string{callerUID},
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return err
		}
		if err := tx.UpdateSwap(ctx, swap); err != nil {
			return err
		}

		out.add(notify.Notification{
			Event:         notify.EventSwapCancelled,
			RecipientUID:  swap.Counterparty(callerUID),
			SwapRequestID: swapID,
			CreatedAt:     now,
		})
		res = &CancelResult{Cancelled: true, Status: swap.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
