package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

func (tx *memTx) GetSwap(_ context.Context, id string) (*models.SwapRequest, error) {
	var swap models.SwapRequest
	if err := tx.load(swapKey(id), &swap); err != nil {
		return nil, err
	}
	swap.EnsureMaps()
	return &swap, nil
}

func (tx *memTx) InsertSwap(_ context.Context, swap *models.SwapRequest) error {
	if _, ok := tx.get(swapKey(swap.ID)); ok {
		return store.ErrAlreadyExists
	}
	return tx.put(swapKey(swap.ID), swap)
}

func (tx *memTx) UpdateSwap(_ context.Context, swap *models.SwapRequest) error {
	if _, ok := tx.get(swapKey(swap.ID)); !ok {
		return store.ErrNotFound
	}
	return tx.put(swapKey(swap.ID), swap)
}

func (tx *memTx) allSwaps() ([]*models.SwapRequest, error) {
	var out []*models.SwapRequest
	for _, data := range tx.scan(collSwaps) {
		var swap models.SwapRequest
		if err := json.Unmarshal(data, &swap); err != nil {
			return nil, fmt.Errorf("ошибка разбора обмена: %w", err)
		}
		swap.EnsureMaps()
		out = append(out, &swap)
	}
	return out, nil
}

func (tx *memTx) HasOpenSwap(_ context.Context, offeredListingID, requestedListingID, offeredByUID string) (bool, error) {
	swaps, err := tx.allSwaps()
	if err != nil {
		return false, err
	}
	for _, s := range swaps {
		if s.OfferedListing.ID == offeredListingID &&
			s.RequestedListing.ID == requestedListingID &&
			s.OfferedBy.UID == offeredByUID &&
			s.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) ListSwapsByParticipant(_ context.Context, uid string) ([]*models.SwapRequest, error) {
	swaps, err := tx.allSwaps()
	if err != nil {
		return nil, err
	}
	var out []*models.SwapRequest
	for _, s := range swaps {
		if s.HasParticipant(uid) {
			out = append(out, s)
		}
	}
	// Новые сверху, как в остальных хранилищах
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (tx *memTx) GetMessage(_ context.Context, swapID, messageID string) (*models.Message, error) {
	var msg models.Message
	if err := tx.load(messageKey(swapID, messageID), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (tx *memTx) ListMessages(_ context.Context, swapID string) ([]*models.Message, error) {
	var out []*models.Message
	for _, data := range tx.scan(messagesColl(swapID)) {
		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("ошибка разбора сообщения: %w", err)
		}
		out = append(out, &msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (tx *memTx) FindFirstMessageByType(ctx context.Context, swapID string, t models.MessageType) (*models.Message, error) {
	msgs, err := tx.ListMessages(ctx, swapID)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.Type == t {
			return m, nil
		}
	}
	return nil, store.ErrNotFound
}

func (tx *memTx) InsertMessage(_ context.Context, msg *models.Message) error {
	key := messageKey(msg.SwapRequestID, msg.ID)
	if _, ok := tx.get(key); ok {
		return store.ErrAlreadyExists
	}
	return tx.put(key, msg)
}

func (tx *memTx) UpdateMessage(_ context.Context, msg *models.Message) error {
	key := messageKey(msg.SwapRequestID, msg.ID)
	if _, ok := tx.get(key); !ok {
		return store.ErrNotFound
	}
	return tx.put(key, msg)
}

func (tx *memTx) DeleteMessages(ctx context.Context, swapID string) (int, error) {
	msgs, err := tx.ListMessages(ctx, swapID)
	if err != nil {
		return 0, err
	}
	for _, m := range msgs {
		tx.del(messageKey(swapID, m.ID))
	}
	return len(msgs), nil
}

func (tx *memTx) GetUser(_ context.Context, uid string) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := tx.load(userKey(uid), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (tx *memTx) PutUser(_ context.Context, user *models.UserProfile) error {
	return tx.put(userKey(user.UID), user)
}

func (tx *memTx) DeleteUser(_ context.Context, uid string) error {
	if _, ok := tx.get(userKey(uid)); !ok {
		return store.ErrNotFound
	}
	tx.del(userKey(uid))
	return nil
}

func (tx *memTx) GetListing(_ context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	if err := tx.load(listingKey(id), &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

func (tx *memTx) PutListing(_ context.Context, listing *models.Listing) error {
	return tx.put(listingKey(listing.ID), listing)
}

func (tx *memTx) CountActiveListings(_ context.Context, ownerUID string) (int, error) {
	count := 0
	for _, data := range tx.scan(collListings) {
		var listing models.Listing
		if err := json.Unmarshal(data, &listing); err != nil {
			return 0, fmt.Errorf("ошибка разбора объявления: %w", err)
		}
		if listing.OwnerUID == ownerUID && listing.IsActive() {
			count++
		}
	}
	return count, nil
}
