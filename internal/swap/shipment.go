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

const maxTrackingLength = 64

// ShipmentInput – подтверждение отправки
type ShipmentInput struct {
	SwapRequestID  string
	CallerUID      string
	UserUID        string
	TrackingNumber string
	MessageID      string
}

// ShipmentResult – состояние отправок после вызова
type ShipmentResult struct {
	BothShipped     bool              `json:"both_shipped"`
	NewStatus       models.SwapStatus `json:"new_status"`
	Shipments       map[string]bool   `json:"shipments"`
	TrackingNumbers map[string]string `json:"tracking_numbers"`
}

func (in *ShipmentInput) validate() error {
	in.TrackingNumber = strings.TrimSpace(in.TrackingNumber)
	switch {
	case in.CallerUID == "":
		return apperr.New(apperr.KindUnauthenticated, "Пользователь не аутентифицирован")
	case in.SwapRequestID == "" || in.MessageID == "":
		return apperr.InvalidRequest("Не указаны обмен или сообщение")
	case in.UserUID != "" && in.UserUID != in.CallerUID:
		return apperr.Forbidden("Нельзя подтверждать отправку за другого пользователя")
	case len(in.TrackingNumber) > maxTrackingLength:
		return apperr.InvalidRequest("Слишком длинный трек-номер")
	}
	return nil
}

func shipmentResult(swap *models.SwapRequest) *ShipmentResult {
	return &ShipmentResult{
		BothShipped:     swap.BothShipped(),
		NewStatus:       swap.Status,
		Shipments:       models.CopyBoolMap(swap.ShipmentStatus),
		TrackingNumbers: models.CopyStringMap(swap.TrackingNumbers),
	}
}

// ConfirmShipment записывает отправку участника. Когда отправили оба, обмен
// завершается, а SwapCount обоих растёт второй раз.
func (e *Engine) ConfirmShipment(ctx context.Context, in ShipmentInput) (res *ShipmentResult, err error) {
	ctx, span := e.startSpan(ctx, "swap.confirm_shipment",
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
		if !swap.HasParticipant(in.CallerUID) {
			return apperr.Forbidden("Вы не участник этого обмена")
		}

		if swap.ShipmentStatus[in.CallerUID] {
			res = shipmentResult(swap)
			return nil
		}
		if swap.Status != models.StatusPendingShipment {
			return apperr.InvalidState("Подтвердить отправку можно только после подтверждения адресов")
		}

		msg, err := tx.GetMessage(ctx, swap.ID, in.MessageID)
		if err != nil {
			return notFound(err, "Сообщение не найдено")
		}

		swap.ShipmentStatus[in.CallerUID] = true
		if in.TrackingNumber != "" {
			swap.TrackingNumbers[in.CallerUID] = in.TrackingNumber
		}
		swap.UpdatedAt = now

		p := newProfiles(tx)
		if swap.BothShipped() && swap.Status == models.StatusPendingShipment {
			swap.Status = models.StatusSwapCompleted
			completed := now
			swap.CompletedAt = &completed
			msg.Type = models.MessageSwapCompleted
			if err := countMilestone(ctx, p, swap, milestoneShipmentsConfirmed, now); err != nil {
				return err
			}
			for _, uid := range swap.Participants {
				out.add(notify.Notification{
					Event:         notify.EventSwapCompleted,
					RecipientUID:  uid,
					SwapRequestID: swap.ID,
					CreatedAt:     now,
				})
			}
		} else {
			data := map[string]string{}
			if in.TrackingNumber != "" {
				data["tracking_number"] = in.TrackingNumber
			}
			out.add(notify.Notification{
				Event:         notify.EventShipmentConfirmed,
				RecipientUID:  swap.Counterparty(in.CallerUID),
				SwapRequestID: swap.ID,
				Data:          data,
				CreatedAt:     now,
			})
		}

		msg.ShipmentStatus = models.CopyBoolMap(swap.ShipmentStatus)
		if msg.TrackingNumbers == nil {
			msg.TrackingNumbers = map[string]string{}
		}
		if in.TrackingNumber != "" {
			msg.TrackingNumbers[in.CallerUID] = in.TrackingNumber
		}
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

		res = shipmentResult(swap)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
