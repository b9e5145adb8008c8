package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestKind вид заявки, требующей одобрения администратора.
type RequestKind string

// Виды заявок.
const (
	KindReferralBonus  RequestKind = "referral_bonus"
	KindChannelBonus   RequestKind = "channel_bonus"
	KindTokenPurchase  RequestKind = "token_purchase"
	KindReferralPayout RequestKind = "referral_payout"
)

// Kinds все виды заявок.
var Kinds = []RequestKind{KindReferralBonus, KindChannelBonus, KindTokenPurchase, KindReferralPayout}

// Valid проверяет, что вид заявки известен.
func (k RequestKind) Valid() bool {
	for _, kind := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Статусы заявок на одобрение и заявок на подписку.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ApprovalRequest заявка любого вида в общем представлении для списка.
type ApprovalRequest struct {
	ID           int             `json:"id"`
	Kind         RequestKind     `json:"kind"`
	UserID       int             `json:"user_id"`
	UserTgID     int64           `json:"user_tg_id"`
	Username     string          `json:"username"`
	FullName     string          `json:"full_name"`
	Amount       int             `json:"amount"`
	Status       string          `json:"status"`
	AdminComment string          `json:"admin_comment,omitempty"`
	ProcessedBy  *int            `json:"processed_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
	Details      ApprovalDetails `json:"details"`
}

// ApprovalDetails поля, специфичные для вида заявки.
type ApprovalDetails struct {
	ReferredID       *int             `json:"referred_id,omitempty"`
	ReferredTgID     *int64           `json:"referred_tg_id,omitempty"`
	ReferredUsername string           `json:"referred_username,omitempty"`
	RequestID        *int             `json:"request_id,omitempty"`
	Cost             *decimal.Decimal `json:"cost,omitempty"`
	PaymentMethod    string           `json:"payment_method,omitempty"`
	ReferralCount    *int             `json:"referral_count,omitempty"`
	AmountRub        *decimal.Decimal `json:"amount_rub,omitempty"`
}

// ApproveInput параметры одобрения или отклонения заявки.
type ApproveInput struct {
	Comment       *string `json:"comment,omitempty"`
	PaymentMethod *string `json:"payment_method,omitempty"`
}

// ApproveResult результат одобрения.
type ApproveResult struct {
	ID         int         `json:"id"`
	Kind       RequestKind `json:"kind"`
	UserID     int         `json:"user_id"`
	UserTgID   int64       `json:"user_tg_id"`
	Credited   int         `json:"credited"`
	NewBalance int         `json:"new_balance"`
	// ReferredUsername заполняется для реферальных бонусов.
	ReferredUsername string `json:"referred_username,omitempty"`
}

// RejectResult результат отклонения.
type RejectResult struct {
	ID       int         `json:"id"`
	Kind     RequestKind `json:"kind"`
	UserTgID int64       `json:"user_tg_id"`
}

// Исходы проверки подписки на канал.
const (
	ChannelBonusAlreadyGiven   = "bonus_already_given"
	ChannelRequestAlreadyExist = "request_already_exists"
	ChannelRequestCreated      = "request_created"
)

// ChannelCheckResult результат проверки подписки на канал.
type ChannelCheckResult struct {
	Subscribed           bool   `json:"subscribed"`
	BonusAlreadyGiven    bool   `json:"bonus_already_given,omitempty"`
	RequestAlreadyExists bool   `json:"request_already_exists,omitempty"`
	RequestCreated       bool   `json:"request_created,omitempty"`
	BonusAmount          int    `json:"bonus_amount,omitempty"`
	Message              string `json:"message"`
}

// TokenPurchase созданная заявка на покупку токенов.
type TokenPurchase struct {
	ID     int             `json:"id"`
	Amount int             `json:"amount"`
	Cost   decimal.Decimal `json:"cost"`
	Status string          `json:"status"`
}

// Payout созданная заявка на выплату за рефералов.
type Payout struct {
	ID            int             `json:"id"`
	ReferralCount int             `json:"referral_count"`
	AmountRub     decimal.Decimal `json:"amount_rub"`
	Status        string          `json:"status"`
}
