package mongodb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rajivgeraev/scentswap-api/internal/models"
	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// mongoTx реализует store.Tx. ctx каждой операции – SessionContext транзакции.
type mongoTx struct {
	db *mongo.Database
}

func (t *mongoTx) coll(name string) *mongo.Collection {
	return t.db.Collection(name)
}

func findOne(ctx context.Context, c *mongo.Collection, filter bson.M, dst any, opts ...*options.FindOneOptions) error {
	err := c.FindOne(ctx, filter, opts...).Decode(dst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

func insertOne(ctx context.Context, c *mongo.Collection, doc any) error {
	_, err := c.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func replaceExisting(ctx context.Context, c *mongo.Collection, filter bson.M, doc any) error {
	res, err := c.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func guardID(offeredListingID, requestedListingID, offeredByUID string) string {
	return strings.Join([]string{offeredListingID, requestedListingID, offeredByUID}, "|")
}

func openStatuses() bson.A {
	return bson.A{string(models.StatusSwapRequest), string(models.StatusSwapAccepted)}
}

// GetSwap получает документ обмена
func (t *mongoTx) GetSwap(ctx context.Context, id string) (*models.SwapRequest, error) {
	var swap models.SwapRequest
	if err := findOne(ctx, t.coll(collSwaps), bson.M{"_id": id}, &swap); err != nil {
		return nil, err
	}
	swap.EnsureMaps()
	return &swap, nil
}

// InsertSwap вставляет обмен и отмечается в guard-документе тройки
func (t *mongoTx) InsertSwap(ctx context.Context, swap *models.SwapRequest) error {
	_, err := t.coll(collGuards).UpdateOne(ctx,
		bson.M{"_id": guardID(swap.OfferedListing.ID, swap.RequestedListing.ID, swap.OfferedBy.UID)},
		bson.M{"$inc": bson.M{"created": 1}, "$set": bson.M{"last_swap_id": swap.ID}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ошибка записи guard-документа: %w", err)
	}
	return insertOne(ctx, t.coll(collSwaps), swap)
}

// UpdateSwap перезаписывает документ обмена
func (t *mongoTx) UpdateSwap(ctx context.Context, swap *models.SwapRequest) error {
	return replaceExisting(ctx, t.coll(collSwaps), bson.M{"_id": swap.ID}, swap)
}

// HasOpenSwap ищет незакрытый обмен с той же тройкой
func (t *mongoTx) HasOpenSwap(ctx context.Context, offeredListingID, requestedListingID, offeredByUID string) (bool, error) {
	n, err := t.coll(collSwaps).CountDocuments(ctx, bson.M{
		"offered_listing.id":   offeredListingID,
		"requested_listing.id": requestedListingID,
		"offered_by.uid":       offeredByUID,
		"status":               bson.M{"$in": openStatuses()},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSwapsByParticipant возвращает обмены пользователя, новые первыми
func (t *mongoTx) ListSwapsByParticipant(ctx context.Context, uid string) ([]*models.SwapRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := t.coll(collSwaps).Find(ctx, bson.M{"participants": uid}, opts)
	if err != nil {
		return nil, err
	}
	var out []*models.SwapRequest
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for _, s := range out {
		s.EnsureMaps()
	}
	return out, nil
}

// GetMessage получает сообщение обмена
func (t *mongoTx) GetMessage(ctx context.Context, swapID, messageID string) (*models.Message, error) {
	var msg models.Message
	err := findOne(ctx, t.coll(collMessages), bson.M{"_id": messageID, "swap_request_id": swapID}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindFirstMessageByType возвращает самое раннее сообщение типа t
func (t *mongoTx) FindFirstMessageByType(ctx context.Context, swapID string, mt models.MessageType) (*models.Message, error) {
	var msg models.Message
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	err := findOne(ctx, t.coll(collMessages), bson.M{"swap_request_id": swapID, "type": string(mt)}, &msg, opts)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages возвращает переписку в хронологическом порядке
func (t *mongoTx) ListMessages(ctx context.Context, swapID string) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := t.coll(collMessages).Find(ctx, bson.M{"swap_request_id": swapID}, opts)
	if err != nil {
		return nil, err
	}
	var out []*models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// InsertMessage добавляет сообщение
func (t *mongoTx) InsertMessage(ctx context.Context, msg *models.Message) error {
	return insertOne(ctx, t.coll(collMessages), msg)
}

// UpdateMessage перезаписывает сообщение
func (t *mongoTx) UpdateMessage(ctx context.Context, msg *models.Message) error {
	return replaceExisting(ctx, t.coll(collMessages), bson.M{"_id": msg.ID, "swap_request_id": msg.SwapRequestID}, msg)
}

// DeleteMessages удаляет всю переписку обмена
func (t *mongoTx) DeleteMessages(ctx context.Context, swapID string) (int, error) {
	res, err := t.coll(collMessages).DeleteMany(ctx, bson.M{"swap_request_id": swapID})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

// GetUser получает профиль
func (t *mongoTx) GetUser(ctx context.Context, uid string) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := findOne(ctx, t.coll(collUsers), bson.M{"_id": uid}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// PutUser создаёт или перезаписывает профиль
func (t *mongoTx) PutUser(ctx context.Context, user *models.UserProfile) error {
	_, err := t.coll(collUsers).ReplaceOne(ctx, bson.M{"_id": user.UID}, user, options.Replace().SetUpsert(true))
	return err
}

// DeleteUser удаляет профиль
func (t *mongoTx) DeleteUser(ctx context.Context, uid string) error {
	res, err := t.coll(collUsers).DeleteOne(ctx, bson.M{"_id": uid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetListing получает объявление
func (t *mongoTx) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	if err := findOne(ctx, t.coll(collListings), bson.M{"_id": id}, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// PutListing создаёт или перезаписывает объявление
func (t *mongoTx) PutListing(ctx context.Context, listing *models.Listing) error {
	_, err := t.coll(collListings).ReplaceOne(ctx, bson.M{"_id": listing.ID}, listing, options.Replace().SetUpsert(true))
	return err
}

// CountActiveListings считает активные объявления владельца
func (t *mongoTx) CountActiveListings(ctx context.Context, ownerUID string) (int, error) {
	n, err := t.coll(collListings).CountDocuments(ctx, bson.M{"owner_uid": ownerUID, "status": models.ListingStatusActive})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
