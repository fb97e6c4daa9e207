// Package store описывает транзакционное хранилище документов обменов.
//
// Каждая операция движка выполняется внутри одной транзакции RunInTx:
// чтение документа, проверка предусловий и запись всех изменений
// (документ обмена, сообщение, счётчики профилей) одним блоком.
// Реализации обязаны обнаруживать конкурентные изменения прочитанных
// документов и возвращать ErrConflict, после чего транзакция повторяется.
package store

import (
	"context"
	"errors"

	"github.com/rajivgeraev/scentswap-api/internal/models"
)

var (
	// ErrNotFound – документ не существует
	ErrNotFound = errors.New("store: not found")

	// ErrConflict – транзакция пересеклась с конкурентной записью
	ErrConflict = errors.New("store: transaction conflict")

	// ErrAlreadyExists – документ с таким идентификатором уже есть
	ErrAlreadyExists = errors.New("store: already exists")
)

// TxFunc – тело транзакции. Может выполняться несколько раз, поэтому
// не должно иметь побочных эффектов вне tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store открывает транзакции
type Store interface {
	RunInTx(ctx context.Context, fn TxFunc) error
	Close(ctx context.Context) error
}

// Tx – операции, доступные внутри транзакции
type Tx interface {
	GetSwap(ctx context.Context, id string) (*models.SwapRequest, error)
	InsertSwap(ctx context.Context, swap *models.SwapRequest) error
	UpdateSwap(ctx context.Context, swap *models.SwapRequest) error
	// HasOpenSwap ищет обмен в статусе swap_request или swap_accepted с той же тройкой
	HasOpenSwap(ctx context.Context, offeredListingID, requestedListingID, offeredByUID string) (bool, error)
	ListSwapsByParticipant(ctx context.Context, uid string) ([]*models.SwapRequest, error)

	GetMessage(ctx context.Context, swapID, messageID string) (*models.Message, error)
	// FindFirstMessageByType возвращает самое раннее сообщение заданного типа
	FindFirstMessageByType(ctx context.Context, swapID string, t models.MessageType) (*models.Message, error)
	ListMessages(ctx context.Context, swapID string) ([]*models.Message, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	UpdateMessage(ctx context.Context, msg *models.Message) error
	DeleteMessages(ctx context.Context, swapID string) (int, error)

	GetUser(ctx context.Context, uid string) (*models.UserProfile, error)
	PutUser(ctx context.Context, user *models.UserProfile) error
	DeleteUser(ctx context.Context, uid string) error

	GetListing(ctx context.Context, id string) (*models.Listing, error)
	PutListing(ctx context.Context, listing *models.Listing) error
	CountActiveListings(ctx context.Context, ownerUID string) (int, error)
}

// IsNotFound – короткая проверка на ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict – короткая проверка на ErrConflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
