package swap

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/notify"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// AddressInput – подтверждение адреса доставки
type AddressInput struct {
	SwapRequestID string
	CallerUID     string
	// UserUID из тела запроса; если задан, должен совпадать с CallerUID
	UserUID   string
	Address   string
	UserRole  models.ParticipantRole
	MessageID string
}

// AddressResult – состояние подтверждений после вызова
type AddressResult struct {
	BothConfirmed bool              `json:"both_confirmed"`
	NewStatus     models.SwapStatus `json:"new_status"`
	Confirmations map[string]bool   `json:"confirmations"`
}

func (in *AddressInput) validate() error {
	in.Address = strings.TrimSpace(in.Address)
	switch {
	case in.CallerUID == "":
		return apperr.New(apperr.KindUnauthenticated, "Пользователь не аутентифицирован")
	case in.SwapRequestID == "" || in.MessageID == "" || in.Address == "":
		return apperr.InvalidRequest("Не указаны обмен, сообщение или адрес")
	case in.UserUID != "" && in.UserUID != in.CallerUID:
		return apperr.Forbidden("Нельзя подтверждать адрес за другого пользователя")
	case in.UserRole != "" && in.UserRole != models.RoleOfferedBy && in.UserRole != models.RoleRequestedFrom:
		return apperr.InvalidRequest("Неизвестная роль участника")
	}
	return nil
}

func addressResult(swap *models.SwapRequest) *AddressResult {
	return &AddressResult{
		BothConfirmed: swap.BothAddressesConfirmed(),
		NewStatus:     swap.Status,
		Confirmations: models.CopyBoolMap(swap.AddressConfirmation),
	}
}

// ConfirmAddress записывает подтверждение адреса участника. Когда подтвердили
// оба, обмен переходит в pending_shipment, а SwapCount обоих растёт ровно раз.
// Повторное подтверждение возвращает текущее состояние без изменений.
func (e *Engine) ConfirmAddress(ctx context.Context, in AddressInput) (res *AddressResult, err error) {
	ctx, span := e.startSpan(ctx, "swap.confirm_address",
		attribute.String("swap_request_id", in.SwapRequestID), attribute.String("caller", in.CallerUID))
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}

	err = e.run(ctx, func(ctx context.Context, tx store.Tx, out *outbox) error {
		now := e.clock()

		swap, err := tx.GetSwap(ctx, in.SwapRequestID)
		if err != nil {
			return notFound(err, "Обмен не найден")
		}
		role, ok := swap.RoleOf(in.CallerUID)
		if !ok {
			return apperr.Forbidden("Вы не участник этого обмена")
		}
		if in.UserRole != "" && in.UserRole != role {
			return apperr.Forbidden("Роль не совпадает с ролью в обмене")
		}

		if swap.AddressConfirmation[in.CallerUID] {
			res = addressResult(swap)
			return nil
		}
		if swap.Status != models.StatusSwapAccepted {
			return apperr.InvalidState("Подтвердить адрес можно только в принятом обмене")
		}

		msg, err := tx.GetMessage(ctx, swap.ID, in.MessageID)
		if err != nil {
			return notFound(err, "Сообщение не найдено")
		}

		swap.AddressConfirmation[in.CallerUID] = true
		swap.Participant(in.CallerUID).FormattedAddress = in.Address
		swap.UpdatedAt = now

		p := newProfiles(tx)
		if err := p.update(ctx, in.CallerUID, func(u *models.UserProfile) {
			u.FormattedAddress = in.Address
			u.UpdatedAt = now
		}); err != nil {
			return err
		}

		counterparty := swap.Counterparty(in.CallerUID)
		both := swap.BothAddressesConfirmed()
		if both && swap.Status == models.StatusSwapAccepted {
			swap.Status = models.StatusPendingShipment
			msg.Type = models.MessagePendingShipment
			if err := countMilestone(ctx, p, swap, milestoneAddressesConfirmed, now); err != nil {
				return err
			}
			for _, uid := range swap.Participants {
				out.add(notify.Notification{
					Event:         notify.EventAddressesConfirmed,
					RecipientUID:  uid,
					SwapRequestID: swap.ID,
					CreatedAt:     now,
				})
			}
		} else {
			out.add(notify.Notification{
				Event:         notify.EventAddressConfirmed,
				RecipientUID:  counterparty,
				SwapRequestID: swap.ID,
				Data:          map[string]string{"role": string(role)},
				CreatedAt:     now,
			})
		}

		msg.AddressConfirmation = models.CopyBoolMap(swap.AddressConfirmation)
		msg.UpdatedAt = now
		if err := tx.UpdateMessage(ctx, msg); err != nil {
			return notFound(err, "Сообщение не найдено")
		}
		if err := tx.UpdateSwap(ctx, swap); err != nil {
			return err
		}
		if err := p.flush(ctx); err != nil {
			return err
		}

		res = addressResult(swap)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
