package models

import (
	"time"
)

// MessageType повторяет события жизненного цикла обмена
type MessageType string

const (
	MessageSwapRequest     MessageType = "swap_request"
	MessageSwapAccepted    MessageType = "swap_accepted"
	MessagePendingShipment MessageType = "pending_shipment"
	MessageSwapCompleted   MessageType = "swap_completed"
	MessageSwapCancelled   MessageType = "swap_cancelled"
	MessageChat            MessageType = "chat"
)

// Message представляет сообщение в переписке по обмену
type Message struct {
	ID            string      `json:"id" bson:"_id"`
	SwapRequestID string      `json:"swap_request_id" bson:"swap_request_id"`
	Type          MessageType `json:"type" bson:"type"`
	SenderUID     string      `json:"sender_uid" bson:"sender_uid"`
	Text          string      `json:"text,omitempty" bson:"text,omitempty"`
	ReadBy        []string    `json:"read_by" bson:"read_by"`

	// Копия состояния подтверждений на момент перехода – клиенту не нужен второй запрос
	AddressConfirmation map[string]bool   `json:"address_confirmation,omitempty" bson:"address_confirmation,omitempty"`
	ShipmentStatus      map[string]bool   `json:"shipment_status,omitempty" bson:"shipment_status,omitempty"`
	TrackingNumbers     map[string]string `json:"tracking_numbers,omitempty" bson:"tracking_numbers,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// IsReadBy проверяет, видел ли пользователь сообщение
func (m *Message) IsReadBy(uid string) bool {
	for _, r := range m.ReadBy {
		if r == uid {
			return true
		}
	}
	return false
}

// MarkReadBy добавляет uid в readBy, возвращает false если он уже там
func (m *Message) MarkReadBy(uid string) bool {
	if uid == "" || m.IsReadBy(uid) {
		return false
	}
	m.ReadBy = append(m.ReadBy, uid)
	return true
}
