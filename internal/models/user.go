package models

import (
	"time"
)

// UserProfile представляет профиль пользователя со счётчиками обменов
type UserProfile struct {
	UID              string  `json:"uid" bson:"_id"`
	Username         string  `json:"username,omitempty" bson:"username,omitempty"`
	FirstName        string  `json:"first_name,omitempty" bson:"first_name,omitempty"`
	LastName         string  `json:"last_name,omitempty" bson:"last_name,omitempty"`
	Email            string  `json:"email,omitempty" bson:"email,omitempty"`
	AvatarURL        string  `json:"avatar_url,omitempty" bson:"avatar_url,omitempty"`
	IsVerified       bool    `json:"is_verified" bson:"is_verified"`
	IsPremium        bool    `json:"is_premium" bson:"is_premium"`
	Rating           float64 `json:"rating" bson:"rating"`
	FormattedAddress string  `json:"formatted_address,omitempty" bson:"formatted_address,omitempty"`

	// SwapCount растёт на двух этапах каждого обмена: адреса подтверждены и отправки подтверждены
	SwapCount int `json:"swap_count" bson:"swap_count"`

	// Квота запросов на обмен за календарный месяц (YYYY-MM)
	MonthlySwapCount int    `json:"monthly_swap_count" bson:"monthly_swap_count"`
	MonthlySwapMonth string `json:"monthly_swap_month,omitempty" bson:"monthly_swap_month,omitempty"`

	StripeAccountID string `json:"stripe_account_id,omitempty" bson:"stripe_account_id,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// MonthKey возвращает ключ месяца для счётчика квоты
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Snapshot замораживает публичные поля профиля для документа обмена
func (u *UserProfile) Snapshot() ParticipantSnapshot {
	return ParticipantSnapshot{
		UID:        u.UID,
		Username:   u.Username,
		IsVerified: u.IsVerified,
		IsPremium:  u.IsPremium,
		AvatarURL:  u.AvatarURL,
		Rating:     u.Rating,
	}
}

// MonthlyRequests возвращает число запросов за месяц, в который попадает now
func (u *UserProfile) MonthlyRequests(now time.Time) int {
	if u.MonthlySwapMonth != MonthKey(now) {
		return 0
	}
	return u.MonthlySwapCount
}

// ChargeMonthlyRequest списывает один запрос из квоты, сбрасывая счётчик в новом месяце
func (u *UserProfile) ChargeMonthlyRequest(now time.Time) {
	month := MonthKey(now)
	if u.MonthlySwapMonth != month {
		u.MonthlySwapMonth = month
		u.MonthlySwapCount = 0
	}
	u.MonthlySwapCount++
}

// RefundMonthlyRequest возвращает запрос в квоту, если он был списан в том же месяце
func (u *UserProfile) RefundMonthlyRequest(chargedAt time.Time) bool {
	if u.MonthlySwapMonth != MonthKey(chargedAt) || u.MonthlySwapCount <= 0 {
		return false
	}
	u.MonthlySwapCount--
	return true
}
