package models

import (
	"time"
)

// SwapStatus – статус предложения обмена
type SwapStatus string

const (
	StatusSwapRequest     SwapStatus = "swap_request"
	StatusSwapAccepted    SwapStatus = "swap_accepted"
	StatusPendingShipment SwapStatus = "pending_shipment"
	StatusSwapCompleted   SwapStatus = "swap_completed"
	StatusCancelled       SwapStatus = "cancelled"
)

// statusRank задаёт порядок продвижения по жизненному циклу
var statusRank = map[SwapStatus]int{
	StatusSwapRequest:     1,
	StatusSwapAccepted:    2,
	StatusPendingShipment: 3,
	StatusSwapCompleted:   4,
}

// Valid сообщает, известен ли статус
func (s SwapStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == StatusCancelled
}

// IsOpen – обмен ещё не принят или только что принят (request/accepted)
func (s SwapStatus) IsOpen() bool {
	return s == StatusSwapRequest || s == StatusSwapAccepted
}

// InFlight – обмен не завершён и не отменён
func (s SwapStatus) InFlight() bool {
	return s.IsOpen() || s == StatusPendingShipment
}

// IsTerminal – завершён или отменён
func (s SwapStatus) IsTerminal() bool {
	return s == StatusSwapCompleted || s == StatusCancelled
}

// CanAdvanceTo проверяет, что переход не откатывает статус назад.
// Отмена разрешена из любого незавершённого состояния.
func (s SwapStatus) CanAdvanceTo(next SwapStatus) bool {
	if next == StatusCancelled {
		return s.InFlight()
	}
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	return ok && nxt > cur
}

// ParticipantRole – роль участника в обмене
type ParticipantRole string

const (
	RoleOfferedBy     ParticipantRole = "offeredBy"
	RoleRequestedFrom ParticipantRole = "requestedFrom"
)

// ParticipantSnapshot – снимок публичного профиля участника на момент создания обмена
type ParticipantSnapshot struct {
	UID              string  `json:"uid" bson:"uid"`
	Username         string  `json:"username" bson:"username"`
	IsVerified       bool    `json:"is_verified" bson:"is_verified"`
	IsPremium        bool    `json:"is_premium" bson:"is_premium"`
	AvatarURL        string  `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	Rating           float64 `json:"rating" bson:"rating"`
	FormattedAddress string  `json:"formatted_address,omitempty" bson:"formatted_address,omitempty"`
}

// ListingSnapshot – снимок объявления на момент создания обмена
type ListingSnapshot struct {
	ID         string `json:"id" bson:"id"`
	Title      string `json:"title" bson:"title"`
	Brand      string `json:"brand,omitempty" bson:"brand,omitempty"`
	ImageURL   string `json:"image_url,omitempty" bson:"image_url,omitempty"`
	Fragrance  string `json:"fragrance,omitempty" bson:"fragrance,omitempty"`
	AmountLeft string `json:"amount_left,omitempty" bson:"amount_left,omitempty"`
}

// SwapRequest представляет предложение обмена между двумя пользователями
type SwapRequest struct {
	ID               string              `json:"id" bson:"_id"`
	OfferedBy        ParticipantSnapshot `json:"offered_by" bson:"offered_by"`
	RequestedFrom    ParticipantSnapshot `json:"requested_from" bson:"requested_from"`
	OfferedListing   ListingSnapshot     `json:"offered_listing" bson:"offered_listing"`
	RequestedListing ListingSnapshot     `json:"requested_listing" bson:"requested_listing"`
	Participants     []string            `json:"participants" bson:"participants"`
	Status           SwapStatus          `json:"status" bson:"status"`

	AddressConfirmation map[string]bool   `json:"address_confirmation" bson:"address_confirmation"`
	ShipmentStatus      map[string]bool   `json:"shipment_status" bson:"shipment_status"`
	TrackingNumbers     map[string]string `json:"tracking_numbers" bson:"tracking_numbers"`
	DeletedUsers        map[string]bool   `json:"deleted_users,omitempty" bson:"deleted_users,omitempty"`

	CancelledBy string     `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

// HasParticipant проверяет, участвует ли пользователь в обмене
func (s *SwapRequest) HasParticipant(uid string) bool {
	if uid == "" {
		return false
	}
	for _, p := range s.Participants {
		if p == uid {
			return true
		}
	}
	return false
}

// RoleOf возвращает роль пользователя в обмене
func (s *SwapRequest) RoleOf(uid string) (ParticipantRole, bool) {
	switch uid {
	case "":
		return "", false
	case s.OfferedBy.UID:
		return RoleOfferedBy, true
	case s.RequestedFrom.UID:
		return RoleRequestedFrom, true
	}
	return "", false
}

// Participant возвращает снимок участника по uid
func (s *SwapRequest) Participant(uid string) *ParticipantSnapshot {
	role, ok := s.RoleOf(uid)
	if !ok {
		return nil
	}
	if role == RoleOfferedBy {
		return &s.OfferedBy
	}
	return &s.RequestedFrom
}

// Counterparty возвращает uid второго участника
func (s *SwapRequest) Counterparty(uid string) string {
	switch uid {
	case s.OfferedBy.UID:
		return s.RequestedFrom.UID
	case s.RequestedFrom.UID:
		return s.OfferedBy.UID
	}
	return ""
}

// BothAddressesConfirmed – оба участника подтвердили адрес
func (s *SwapRequest) BothAddressesConfirmed() bool {
	return s.AddressConfirmation[s.OfferedBy.UID] && s.AddressConfirmation[s.RequestedFrom.UID]
}

// BothShipped – оба участника подтвердили отправку
func (s *SwapRequest) BothShipped() bool {
	return s.ShipmentStatus[s.OfferedBy.UID] && s.ShipmentStatus[s.RequestedFrom.UID]
}

// EnsureMaps инициализирует nil-карты после чтения из хранилища
func (s *SwapRequest) EnsureMaps() {
	if s.AddressConfirmation == nil {
		s.AddressConfirmation = map[string]bool{}
	}
	if s.ShipmentStatus == nil {
		s.ShipmentStatus = map[string]bool{}
	}
	if s.TrackingNumbers == nil {
		s.TrackingNumbers = map[string]string{}
	}
	if s.DeletedUsers == nil {
		s.DeletedUsers = map[string]bool{}
	}
}

// CopyBoolMap копирует карту подтверждений для сообщения
func CopyBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CopyStringMap копирует карту трек-номеров для сообщения
func CopyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
