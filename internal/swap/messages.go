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

const maxMessageLength = 2000

// MessagesPage – переписка и число сообщений, которые пользователь ещё не видел
type MessagesPage struct {
	Messages []*models.Message `json:"messages"`
	Unread   int               `json:"unread"`
}

func participantSwap(ctx context.Context, tx store.Tx, swapID, uid string) (*models.SwapRequest, error) {
	swap, err := tx.GetSwap(ctx, swapID)
	if err != nil {
		return nil, notFound(err, "Обмен не найден")
	}
	if !swap.HasParticipant(uid) {
		return nil, apperr.Forbidden("Вы не участник этого обмена")
	}
	return swap, nil
}

// GetSwap возвращает обмен участнику
func (e *Engine) GetSwap(ctx context.Context, swapID, callerUID string) (*models.SwapRequest, error) {
	var swap *models.SwapRequest
	err := e.run(ctx, func(ctx context.Context, tx store.Tx, _ *outbox) error {
		var err error
		swap, err = participantSwap(ctx, tx, swapID, callerUID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return swap, nil
}

// ListMySwaps возвращает обмены пользователя, новые первыми. Пустой status – все.
func (e *Engine) ListMySwaps(ctx context.Context, callerUID string, status models.SwapStatus) ([]*models.SwapRequest, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.InvalidRequest("Неизвестный статус обмена")
	}

	var out []*models.SwapRequest
	err := e.run(ctx, func(ctx context.Context, tx store.Tx, _ *outbox) error {
		swaps, err := tx.ListSwapsByParticipant(ctx, callerUID)
		if err != nil {
			return err
		}
		out = out[:0]
		for _, s := range swaps {
			if status == "" || s.Status == status {
				out = append(out, s)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*models.SwapRequest{}
	}
	return out, nil
}

// SendMessage добавляет сообщение в переписку обмена
func (e *Engine) SendMessage(ctx context.Context, swapID, callerUID, text string) (msg *models.Message, err error) {
	ctx, span := e.startSpan(ctx, "swap.send_message",
		attribute.String("swap_request_id", swapID), attribute.String("caller", callerUID))
	defer func() { endSpan(span, err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.InvalidRequest("Сообщение не может быть пустым")
	}
	if len([]rune(text)) > maxMessageLength {
		return nil, apperr.InvalidRequest("Слишком длинное сообщение")
	}

	err = e.run(ctx, func(ctx context.Context, tx store.Tx, out *outbox) error {
		now := e.clock()

		swap, err := participantSwap(ctx, tx, swapID, callerUID)
		if err != nil {
			return err
		}
		if swap.Status == models.StatusCancelled {
			return apperr.InvalidState("Обмен отменён, переписка закрыта")
		}

		msg = &models.Message{
			ID:            e.newID(),
			SwapRequestID: swapID,
			Type:          models.MessageChat,
			SenderUID:     callerUID,
			Text:          text,
			ReadBy:        []string{callerUID},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return err
		}

		out.add(notify.Notification{
			Event:         notify.EventNewMessage,
			RecipientUID:  swap.Counterparty(callerUID),
			SwapRequestID: swapID,
			CreatedAt:     now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages возвращает переписку и отмечает все сообщения прочитанными вызывающим.
// Unread считается до отметки.
func (e *Engine) ListMessages(ctx context.Context, swapID, callerUID string) (page *MessagesPage, err error) {
	ctx, span := e.startSpan(ctx, "swap.list_messages",
		attribute.String("swap_request_id", swapID), attribute.String("caller", callerUID))
	defer func() { endSpan(span, err) }()

	err = e.run(ctx, func(ctx context.Context, tx store.Tx, _ *outbox) error {
		if _, err := participantSwap(ctx, tx, swapID, callerUID); err != nil {
			return err
		}

		msgs, err := tx.ListMessages(ctx, swapID)
		if err != nil {
			return err
		}

		page = &MessagesPage{Messages: msgs}
		for _, m := range msgs {
			if !m.MarkReadBy(callerUID) {
				continue
			}
			page.Unread++
			if err := tx.UpdateMessage(ctx, m); err != nil {
				return err
			}
		}
		if page.Messages == nil {
			page.Messages = []*models.Message{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// MarkRead отмечает одно сообщение прочитанным
func (e *Engine) MarkRead(ctx context.Context, swapID, messageID, callerUID string) (*models.Message, error) {
	var msg *models.Message
	err := e.run(ctx, func(ctx context.Context, tx store.Tx, _ *outbox) error {
		if _, err := participantSwap(ctx, tx, swapID, callerUID); err != nil {
			return err
		}

		m, err := tx.GetMessage(ctx, swapID, messageID)
		if err != nil {
			return notFound(err, "Сообщение не найдено")
		}
		if m.MarkReadBy(callerUID) {
			if err := tx.UpdateMessage(ctx, m); err != nil {
				return err
			}
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}
