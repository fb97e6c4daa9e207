// Package mongodb – хранилище обменов поверх MongoDB.
//
// Требуется replica set: каждая транзакция идёт в сессии со snapshot read
// concern, конфликт записи сервер помечает меткой TransientTransactionError,
// и тогда вся транзакция повторяется через store.Retry.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"

	"github.com/rajivgeraev/scentswap-api/internal/store"
)

// Имена коллекций
const (
	collSwaps    = "swap_requests"
	collMessages = "swap_messages"
	collUsers    = "users"
	collListings = "listings"
	// collGuards хранит по документу на тройку (offeredListing, requestedListing, offeredBy).
	// Каждое создание обмена пишет в него, поэтому два параллельных создания конфликтуют.
	collGuards = "swap_guards"
)

const labelTransientTransaction = "TransientTransactionError"

const codeNamespaceExists = 48

// Store реализует store.Store
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	retry  store.RetryConfig
}

// Connect подключается к MongoDB и проверяет соединение
func Connect(ctx context.Context, uri, database string, retry store.RetryConfig, log *zap.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB недоступна: %w", err)
	}

	log.Info("✅ Подключено к MongoDB", zap.String("database", database))
	return New(client, database, retry), nil
}

// New оборачивает готовый клиент
func New(client *mongo.Client, database string, retry store.RetryConfig) *Store {
	return &Store{client: client, db: client.Database(database), retry: retry}
}

// RunInTx выполняет fn в транзакции с повтором при конфликте записи
func (s *Store) RunInTx(ctx context.Context, fn store.TxFunc) error {
	return store.Retry(ctx, s.retry, func() error {
		return classify(s.runOnce(ctx, fn))
	})
}

func (s *Store) runOnce(ctx context.Context, fn store.TxFunc) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("ошибка открытия сессии: %w", err)
	}
	defer sess.EndSession(context.Background())

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	// Сам драйвер не повторяет: число попыток ограничено store.Retry
	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(txnOpts); err != nil {
			return fmt.Errorf("ошибка начала транзакции: %w", err)
		}
		if err := fn(sc, &mongoTx{db: s.db}); err != nil {
			_ = sess.AbortTransaction(context.Background())
			return err
		}
		if err := sess.CommitTransaction(sc); err != nil {
			return fmt.Errorf("ошибка фиксации транзакции: %w", err)
		}
		return nil
	})
}

// Close отключает клиента
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes создаёт коллекции и индексы. Коллекции должны существовать
// до первой транзакции, иначе вставка внутри транзакции упадёт.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, name := range []string{collSwaps, collMessages, collUsers, collListings, collGuards} {
		err := s.db.CreateCollection(ctx, name)
		var cmdErr mongo.CommandError
		if err != nil && !(errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists) {
			return fmt.Errorf("ошибка создания коллекции %s: %w", name, err)
		}
	}

	indexes := map[string][]mongo.IndexModel{
		collSwaps: {
			{
				Keys: bson.D{
					{Key: "offered_listing.id", Value: 1},
					{Key: "requested_listing.id", Value: 1},
					{Key: "offered_by.uid", Value: 1},
					{Key: "status", Value: 1},
				},
				Options: options.Index().SetName("swap_triple_idx"),
			},
			{
				Keys:    bson.D{{Key: "participants", Value: 1}, {Key: "created_at", Value: -1}},
				Options: options.Index().SetName("swap_participants_idx"),
			},
		},
		collMessages: {
			{
				Keys:    bson.D{{Key: "swap_request_id", Value: 1}, {Key: "created_at", Value: 1}},
				Options: options.Index().SetName("message_swap_created_idx"),
			},
		},
		collListings: {
			{
				Keys:    bson.D{{Key: "owner_uid", Value: 1}, {Key: "status", Value: 1}},
				Options: options.Index().SetName("listing_owner_status_idx"),
			},
		},
	}
	for coll, idx := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("ошибка создания индексов %s: %w", coll, err)
		}
	}
	return nil
}

// classify превращает транзиентные ошибки транзакции в store.ErrConflict
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel(labelTransientTransaction) {
		return fmt.Errorf("%w: %v", store.ErrConflict, err)
	}
	return err
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Tx    = (*mongoTx)(nil)
)
