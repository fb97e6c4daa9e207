package swap

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/rajivgeraev/scentswap-api/internal/apperr"
	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/notify"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

const maxNoteLength = 1000

// CreateInput – запрос на обмен
type CreateInput struct {
	CallerUID          string
	OfferedListingID   string
	RequestedListingID string
	RequestedFromUID   string
	Note               string
}

// CreateResult – идентификаторы созданного обмена и первого сообщения
type CreateResult struct {
	SwapRequestID string `json:"swap_request_id"`
	MessageID     string `json:"message_id"`
}

func (in *CreateInput) validate() error {
	in.Note = strings.TrimSpace(in.Note)
	switch {
	case in.CallerUID == "":
		return apperr.New(apperr.KindUnauthenticated, "Пользователь не аутентифицирован")
	case in.OfferedListingID == "" || in.RequestedListingID == "" || in.RequestedFromUID == "":
		return apperr.InvalidRequest("Не указаны объявления или получатель")
	case in.OfferedListingID == in.RequestedListingID:
		return apperr.InvalidRequest("Нельзя обменять объявление само на себя")
	case in.RequestedFromUID == in.CallerUID:
		return apperr.InvalidRequest("Нельзя предложить обмен самому себе")
	case len([]rune(in.Note)) > maxNoteLength:
		return apperr.InvalidRequest("Слишком длинное сообщение")
	}
	return nil
}

// msgDuplicateSwap отдаётся и при найденном открытом обмене, и при проигранной
// гонке на уникальном индексе хранилища
const msgDuplicateSwap = "Такой запрос на обмен уже существует"

// CreateSwapRequest создаёт обмен и первое сообщение в одной транзакции.
// Квота инициатора списывается там же.
func (e *Engine) CreateSwapRequest(ctx context.Context, in CreateInput) (res *CreateResult, err error) {
	ctx, span := e.startSpan(ctx, "swap.create",
		attribute.String("caller", in.CallerUID),
		attribute.String("offered_listing", in.OfferedListingID),
		attribute.String("requested_listing", in.RequestedListingID),
	)
	defer func() { endSpan(span, err) }()

	if err := in.validate(); err != nil {
		return nil, err
	}

	swapID := e.newID()
	messageID := e.newID()

	err = e.run(ctx, func(ctx context.Context, tx store.Tx, out *outbox) error {
		now := e.clock()

		offered, err := tx.GetListing(ctx, in.OfferedListingID)
		if err != nil {
			return notFound(err, "Предлагаемое объявление не найдено")
		}
		requested, err := tx.GetListing(ctx, in.RequestedListingID)
		if err != nil {
			return notFound(err, "Запрашиваемое объявление не найдено")
		}

		if offered.OwnerUID != in.CallerUID {
			return apperr.Forbidden("Вы не владелец предлагаемого объявления")
		}
		if offered.Type != models.ListingTypeSwap {
			return apperr.InvalidState("Предлагаемое объявление не для обмена")
		}
		if !offered.IsActive() {
			return apperr.InvalidState("Предлагаемое объявление неактивно")
		}
		if requested.OwnerUID != in.RequestedFromUID {
			return apperr.InvalidState("Запрашиваемое объявление принадлежит другому пользователю")
		}
		if !requested.IsActive() {
			return apperr.InvalidState("Запрашиваемое объявление неактивно")
		}

		open, err := tx.HasOpenSwap(ctx, offered.ID, requested.ID, in.CallerUID)
		if err != nil {
			return err
		}
		if open {
			return apperr.Conflict(msgDuplicateSwap)
		}

		initiator, err := tx.GetUser(ctx, in.CallerUID)
		if err != nil {
			return notFound(err, "Профиль пользователя не найден")
		}
		target, err := tx.GetUser(ctx, in.RequestedFromUID)
		if err != nil {
			return notFound(err, "Профиль получателя не найден")
		}

		if e.monthlyLimit > 0 && !initiator.IsPremium && initiator.MonthlyRequests(now) >= e.monthlyLimit {
			return apperr.InvalidState("Лимит запросов на обмен в этом месяце исчерпан")
		}
		initiator.ChargeMonthlyRequest(now)
		initiator.UpdatedAt = now
		if err := tx.PutUser(ctx, initiator); err != nil {
			return err
		}

		swap := &models.SwapRequest{
			ID:               swapID,
			OfferedBy:        initiator.Snapshot(),
			RequestedFrom:    target.Snapshot(),
			OfferedListing:   offered.Snapshot(),
			RequestedListing: requested.Snapshot(),
			Participants:     []string{initiator.UID, target.UID},
			Status:           models.StatusSwapRequest,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		swap.EnsureMaps()

		if err := tx.InsertSwap(ctx, swap); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return apperr.Conflict(msgDuplicateSwap)
			}
			return err
		}

		seed := &models.Message{
			ID:            messageID,
			SwapRequestID: swapID,
			Type:          models.MessageSwapRequest,
			SenderUID:     in.CallerUID,
			Text:          in.Note,
			ReadBy:        []string{in.CallerUID},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertMessage(ctx, seed); err != nil {
			return err
		}

		out.add(notify.Notification{
			Event:          notify.EventSwapRequested,
			RecipientUID:   target.UID,
			RecipientEmail: target.Email,
			SwapRequestID:  swapID,
			Data: map[string]string{
				"from_username":     initiator.Username,
				"offered_listing":   offered.Title,
				"requested_listing": requested.Title,
			},
			CreatedAt: now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("Создан запрос на обмен",
		zapSwap(swapID), zapUser(in.CallerUID))
	return &CreateResult{SwapRequestID: swapID, MessageID: messageID}, nil
}

// AcceptResult – итог принятия обмена
type AcceptResult struct {
	Status    models.SwapStatus `json:"status"`
	MessageID string            `json:"message_id"`
}

// AcceptSwap переводит обмен в swap_accepted. Принять может только получатель.
// Повторный вызов возвращает уже принятое состояние.
func (e *Engine) AcceptSwap(ctx context.Context, swapID, callerUID string) (res *AcceptResult, err error) {
	ctx, span := e.startSpan(ctx, "swap.accept",
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
		if !swap.HasParticipant(callerUID) || swap.RequestedFrom.UID != callerUID {
			return apperr.Forbidden("Принять обмен может только получатель запроса")
		}

		if swap.Status == models.StatusSwapAccepted {
			res = &AcceptResult{Status: swap.Status}
			if msg, err := tx.FindFirstMessageByType(ctx, swapID, models.MessageSwapAccepted); err == nil {
				res.MessageID = msg.ID
			}
			return nil
		}
		if swap.Status != models.StatusSwapRequest {
			return apperr.InvalidState("Обмен нельзя принять в текущем статусе")
		}

		swap.Status = models.StatusSwapAccepted
		swap.UpdatedAt = now

		msg := &models.Message{
			ID:                  e.newID(),
			SwapRequestID:       swapID,
			Type:                models.MessageSwapAccepted,
			SenderUID:           callerUID,
			ReadBy:              []string{callerUID},
			AddressConfirmation: models.CopyBoolMap(swap.AddressConfirmation),
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return err
		}
		if err := tx.UpdateSwap(ctx, swap); err != nil {
			return err
		}

		out.add(notify.Notification{
			Event:         notify.EventSwapAccepted,
			RecipientUID:  swap.OfferedBy.UID,
			SwapRequestID: swapID,
			Data:          map[string]string{"by_username": swap.RequestedFrom.Username},
			CreatedAt:     now,
		})
		res = &AcceptResult{Status: swap.Status, MessageID: msg.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
