package models

import "time"

// Типы подписки.
const (
	SubscriptionTypeGroup      = "group"
	SubscriptionTypeIndividual = "individual"
)

// Статусы подписки.
const (
	SubscriptionActive  = "active"
	SubscriptionExpired = "expired"
)

// DaysPerMonth длительность месяца подписки в днях.
const DaysPerMonth = 30

// Request заявка пользователя на подписку.
type Request struct {
	ID               int        `json:"id"`
	UserID           int        `json:"user_id"`
	UserTgID         int64      `json:"user_tg_id"`
	Username         string     `json:"username"`
	TariffID         int        `json:"tariff_id"`
	TariffCode       string     `json:"tariff_code"`
	TariffName       string     `json:"tariff_name"`
	DurationID       int        `json:"duration_id"`
	Months           int        `json:"months"`
	Status           string     `json:"status"`
	SubscriptionType string     `json:"subscription_type"`
	GroupID          *int       `json:"group_id,omitempty"`
	UserEmail        string     `json:"user_email,omitempty"`
	ProcessedBy      *int       `json:"processed_by,omitempty"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewRequest данные новой заявки от бота.
type NewRequest struct {
	TgID             int64  `json:"tg_id" validate:"required"`
	TariffCode       string `json:"tariff_code" validate:"required"`
	DurationMonths   int    `json:"duration_months" validate:"required,gt=0"`
	SubscriptionType string `json:"subscription_type,omitempty" validate:"omitempty,oneof=group individual"`
	GroupID          *int   `json:"group_id,omitempty"`
	UserEmail        string `json:"user_email,omitempty" validate:"omitempty,email"`
}

// Subscription выданная подписка.
type Subscription struct {
	ID         int       `json:"id"`
	UserID     int       `json:"user_id"`
	UserTgID   int64     `json:"user_tg_id"`
	Username   string    `json:"username"`
	TariffCode string    `json:"tariff_code"`
	TariffName string    `json:"tariff_name"`
	Months     int       `json:"months"`
	RequestID  *int      `json:"request_id,omitempty"`
	Status     string    `json:"status"`
	GroupID    *int      `json:"group_id,omitempty"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	CreatedAt  time.Time `json:"created_at"`
}

// ApprovedSubscription результат одобрения заявки на подписку.
type ApprovedSubscription struct {
	RequestID      int       `json:"request_id"`
	SubscriptionID int       `json:"subscription_id"`
	UserTgID       int64     `json:"user_tg_id"`
	TariffName     string    `json:"tariff_name"`
	GroupID        *int      `json:"group_id,omitempty"`
	EndDate        time.Time `json:"end_date"`
	// PendingBonusID заявка на реферальный бонус, созданная при активации реферала.
	PendingBonusID *int `json:"pending_bonus_id,omitempty"`
}

// RejectedRequest результат отклонения заявки на подписку.
type RejectedRequest struct {
	RequestID  int    `json:"request_id"`
	UserTgID   int64  `json:"user_tg_id"`
	TariffName string `json:"tariff_name"`
}

// ExpiringSubscription подписка, срок которой скоро закончится.
type ExpiringSubscription struct {
	SubscriptionID int       `json:"subscription_id"`
	UserTgID       int64     `json:"user_tg_id"`
	TariffName     string    `json:"tariff_name"`
	EndDate        time.Time `json:"end_date"`
}
