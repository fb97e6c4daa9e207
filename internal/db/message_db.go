package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// GetMessage получает сообщение обмена
func (t *pgTx) GetMessage(ctx context.Context, swapID, messageID string) (*models.Message, error) {
	var msg models.Message
	err := scanDoc(t.tx.QueryRow(ctx, `
		SELECT doc FROM swap_messages WHERE swap_request_id = $1 AND id = $2
	`, swapID, messageID), &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindFirstMessageByType ищет самое раннее сообщение заданного типа
func (t *pgTx) FindFirstMessageByType(ctx context.Context, swapID string, mt models.MessageType) (*models.Message, error) {
	var msg models.Message
	err := scanDoc(t.tx.QueryRow(ctx, `
		SELECT doc FROM swap_messages
		WHERE swap_request_id = $1 AND type = $2
		ORDER BY seq ASC
		LIMIT 1
	`, swapID, string(mt)), &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages возвращает сообщения обмена в порядке добавления
func (t *pgTx) ListMessages(ctx context.Context, swapID string) ([]*models.Message, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT doc FROM swap_messages
		WHERE swap_request_id = $1
		ORDER BY seq ASC
	`, swapID)
	if err != nil {
		return nil, err
	}
	return collectDocs[models.Message](rows)
}

// InsertMessage добавляет сообщение в конец переписки
func (t *pgTx) InsertMessage(ctx context.Context, msg *models.Message) error {
	doc, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сообщения: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO swap_messages (swap_request_id, id, type, doc, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.SwapRequestID, msg.ID, string(msg.Type), doc, msg.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// UpdateMessage перезаписывает сообщение, порядок не меняется
func (t *pgTx) UpdateMessage(ctx context.Context, msg *models.Message) error {
	doc, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("ошибка сериализации сообщения: %w", err)
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE swap_messages SET type = $3, doc = $4
		WHERE swap_request_id = $1 AND id = $2
	`, msg.SwapRequestID, msg.ID, string(msg.Type), doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteMessages удаляет всю переписку обмена
func (t *pgTx) DeleteMessages(ctx context.Context, swapID string) (int, error) {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM swap_messages WHERE swap_request_id = $1
	`, swapID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
