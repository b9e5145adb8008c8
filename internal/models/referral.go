package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral связь пригласившего и приглашенного пользователей.
type Referral struct {
	ID          int        `json:"id"`
	ReferrerID  int        `json:"referrer_id"`
	ReferredID  int        `json:"referred_id"`
	Activated   bool       `json:"activated"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	RewardGiven bool       `json:"reward_given"`
	CreatedAt   time.Time  `json:"created_at"`
}

// BindReferral запрос на привязку реферала.
type BindReferral struct {
	ReferredTg int64 `json:"referred_tg" validate:"required"`
	ReferrerTg int64 `json:"referrer_tg" validate:"required"`
}

// ReferralInfo сводка по рефералам и выплатам пользователя.
type ReferralInfo struct {
	RefLink        string          `json:"ref_link"`
	RefCount       int             `json:"ref_count"`
	RubPerReferral decimal.Decimal `json:"rub_per_referral"`
	TotalRub       decimal.Decimal `json:"total_rub"`
	PendingRub     decimal.Decimal `json:"pending_rub"`
	PendingCount   int             `json:"pending_count"`
	ApprovedRub    decimal.Decimal `json:"approved_rub"`
	AvailableRub   decimal.Decimal `json:"available_rub"`
}

// PayoutTotals суммы выплат пользователя по статусам.
type PayoutTotals struct {
	PendingRub   decimal.Decimal
	PendingCount int
	ApprovedRub  decimal.Decimal
}

// ReferralEntry приглашенный пользователь в списке рефералов.
type ReferralEntry struct {
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	Activated bool   `json:"activated"`
}

// ReferralCounts количество рефералов пользователя.
type ReferralCounts struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}
