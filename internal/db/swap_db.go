package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// GetSwap получает документ обмена по ID
func (t *pgTx) GetSwap(ctx context.Context, id string) (*models.SwapRequest, error) {
	var swap models.SwapRequest
	err := scanDoc(t.tx.QueryRow(ctx, `
		SELECT doc FROM swap_requests WHERE id = $1
	`, id), &swap)
	if err != nil {
		return nil, err
	}
	swap.EnsureMaps()
	return &swap, nil
}

// InsertSwap вставляет новый документ обмена
func (t *pgTx) InsertSwap(ctx context.Context, swap *models.SwapRequest) error {
	doc, err := json.Marshal(swap)
	if err != nil {
		return fmt.Errorf("ошибка сериализации обмена: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO swap_requests (id, offered_listing_id, requested_listing_id, offered_by_uid,
		                           participants, status, doc, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, swap.ID, swap.OfferedListing.ID, swap.RequestedListing.ID, swap.OfferedBy.UID,
		swap.Participants, string(swap.Status), doc, swap.CreatedAt, swap.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// UpdateSwap перезаписывает документ обмена
func (t *pgTx) UpdateSwap(ctx context.Context, swap *models.SwapRequest) error {
	doc, err := json.Marshal(swap)
	if err != nil {
		return fmt.Errorf("ошибка сериализации обмена: %w", err)
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE swap_requests
		SET status = $2, doc = $3, updated_at = $4
		WHERE id = $1
	`, swap.ID, string(swap.Status), doc, swap.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// HasOpenSwap проверяет, есть ли незакрытое предложение с теми же объявлениями
func (t *pgTx) HasOpenSwap(ctx context.Context, offeredListingID, requestedListingID, offeredByUID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM swap_requests
			WHERE offered_listing_id = $1 AND requested_listing_id = $2 AND offered_by_uid = $3
			  AND status IN ($4, $5)
		)
	`, offeredListingID, requestedListingID, offeredByUID,
		string(models.StatusSwapRequest), string(models.StatusSwapAccepted)).Scan(&exists)
	return exists, err
}

// ListSwapsByParticipant возвращает обмены пользователя, новые сверху
func (t *pgTx) ListSwapsByParticipant(ctx context.Context, uid string) ([]*models.SwapRequest, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT doc FROM swap_requests
		WHERE $1 = ANY(participants)
		ORDER BY created_at DESC
	`, uid)
	if err != nil {
		return nil, err
	}

	swaps, err := collectDocs[models.SwapRequest](rows)
	if err != nil {
		return nil, err
	}
	for _, s := range swaps {
		s.EnsureMaps()
	}
	return swaps, nil
}
