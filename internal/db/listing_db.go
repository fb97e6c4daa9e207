package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rajivgeraev/scentswap-api/internal/models"
)

// GetListing получает объявление по ID
func (t *pgTx) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	err := scanDoc(t.tx.QueryRow(ctx, `
		SELECT doc FROM listings WHERE id = $1
	`, id), &listing)
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// PutListing создает или перезаписывает объявление
func (t *pgTx) PutListing(ctx context.Context, listing *models.Listing) error {
	doc, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("ошибка сериализации объявления: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO listings (id, owner_uid, status, doc, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET owner_uid = EXCLUDED.owner_uid, status = EXCLUDED.status,
		    doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`, listing.ID, listing.OwnerUID, listing.Status, doc, listing.UpdatedAt)
	return err
}

// CountActiveListings считает активные объявления владельца
func (t *pgTx) CountActiveListings(ctx context.Context, ownerUID string) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM listings WHERE owner_uid = $1 AND status = $2
	`, ownerUID, models.ListingStatusActive).Scan(&count)
	return count, err
}
