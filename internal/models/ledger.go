package models

import "time"

// Действия, за которые списываются токены.
const (
	ActionAIChat          = "ai_chat"
	ActionImageGeneration = "image_generation"
)

// Модели генерации изображений со своей стоимостью.
const (
	ModelNanoBanana = "nano-banana"
	ModelPro        = "pro"
	ModelSD         = "sd"
)

// ActionLabels подписи действий для показа пользователю.
var ActionLabels = map[string]string{
	ActionImageGeneration: "генерацию изображения",
	ActionAIChat:          "запрос к GPT",
}

// ChargeRequest запрос на списание токенов от бота.
type ChargeRequest struct {
	TgID   int64  `json:"tg_id" validate:"required"`
	Action string `json:"action" validate:"required"`
	Model  string `json:"model,omitempty"`
	Cost   *int   `json:"cost,omitempty"`
}

// ChargeResult результат списания.
type ChargeResult struct {
	Action  string `json:"action"`
	Cost    int    `json:"cost"`
	Balance int    `json:"balance"`
	Label   string `json:"label"`
}

// LedgerEntry запись журнала изменений баланса.
type LedgerEntry struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	Delta        int       `json:"delta"`
	BalanceAfter int       `json:"balance_after"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// Причины изменения баланса в журнале.
const (
	ReasonCharge        = "charge"
	ReasonAdminSet      = "admin_set"
	ReasonReferralBonus = "referral_bonus"
	ReasonChannelBonus  = "channel_bonus"
	ReasonTokenPurchase = "token_purchase"
)
