package models

import (
	"time"
)

// ListingType – тип объявления
type ListingType string

const (
	ListingTypeSwap ListingType = "swap"
	ListingTypeSell ListingType = "sell"
)

// ListingStatusActive – единственный статус, в котором объявление участвует в обменах
const ListingStatusActive = "active"

// Listing представляет объявление с ароматом.
// Создаётся и редактируется каталогом, здесь только читается.
type Listing struct {
	ID         string      `json:"id" bson:"_id"`
	OwnerUID   string      `json:"owner_uid" bson:"owner_uid"`
	Title      string      `json:"title" bson:"title"`
	Brand      string      `json:"brand,omitempty" bson:"brand,omitempty"`
	Fragrance  string      `json:"fragrance,omitempty" bson:"fragrance,omitempty"`
	AmountLeft string      `json:"amount_left,omitempty" bson:"amount_left,omitempty"`
	ImageURL   string      `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Type       ListingType `json:"type" bson:"type"`
	Status     string      `json:"status" bson:"status"`
	CreatedAt  time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" bson:"updated_at"`
}

// IsActive сообщает, активно ли объявление
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

// Snapshot замораживает поля объявления для документа обмена
func (l *Listing) Snapshot() ListingSnapshot {
	return ListingSnapshot{
		ID:         l.ID,
		Title:      l.Title,
		Brand:      l.Brand,
		ImageURL:   l.ImageURL,
		Fragrance:  l.Fragrance,
		AmountLeft: l.AmountLeft,
	}
}
