package models

import "github.com/shopspring/decimal"

// DefaultAIPrompt системный промпт ассистента по умолчанию.
const DefaultAIPrompt = `Ты - помощник по маркетплейсам и онлайн-торговле.
Помогаешь продавцам Wildberries и Ozon: анализ ниши, карточки товаров, ценообразование, реклама.
Отвечай кратко, по делу и на русском языке.`

// Settings типизированные настройки бизнес-логики, изменяемые администратором.
type Settings struct {
	ReferralBonus       int             `json:"referral_bonus"`
	ChannelBonus        int             `json:"channel_bonus"`
	GPTRequestCost      int             `json:"gpt_request_cost"`
	ImageGenerationCost int             `json:"image_generation_cost"`
	ModelCosts          ModelCosts      `json:"model_costs"`
	RubPerReferral      decimal.Decimal `json:"referral_rub_per_referral"`
	TokenPriceRub       decimal.Decimal `json:"token_price_rub"`
	AIPrompt            string          `json:"ai_prompt"`
	ChannelUsername     string          `json:"channel_username"`
	ChannelID           int64           `json:"channel_id"`
}

// ModelCosts стоимость генерации изображения по моделям.
type ModelCosts struct {
	NanoBanana int `json:"nano-banana"`
	Pro        int `json:"pro"`
	SD         int `json:"sd"`
}

// DefaultSettings значения, применяемые при отсутствии записи в хранилище.
func DefaultSettings() Settings {
	return Settings{
		ReferralBonus:       100,
		ChannelBonus:        50,
		GPTRequestCost:      1,
		ImageGenerationCost: 5,
		ModelCosts: ModelCosts{
			NanoBanana: 5,
			Pro:        10,
			SD:         3,
		},
		RubPerReferral:  decimal.NewFromInt(50),
		TokenPriceRub:   decimal.NewFromInt(1),
		AIPrompt:        DefaultAIPrompt,
		ChannelUsername: "lifefreelancer",
		ChannelID:       -1002089983609,
	}
}

// SettingsPatch частичное обновление настроек. Пустые поля не меняются.
type SettingsPatch struct {
	ReferralBonus       *int             `json:"referral_bonus,omitempty" validate:"omitempty,gte=0"`
	ChannelBonus        *int             `json:"channel_bonus,omitempty" validate:"omitempty,gte=0"`
	GPTRequestCost      *int             `json:"gpt_request_cost,omitempty" validate:"omitempty,gte=0"`
	ImageGenerationCost *int             `json:"image_generation_cost,omitempty" validate:"omitempty,gte=0"`
	NanoBananaCost      *int             `json:"nano_banana_cost,omitempty" validate:"omitempty,gte=0"`
	ProCost             *int             `json:"pro_cost,omitempty" validate:"omitempty,gte=0"`
	SDCost              *int             `json:"sd_cost,omitempty" validate:"omitempty,gte=0"`
	RubPerReferral      *decimal.Decimal `json:"referral_rub_per_referral,omitempty"`
	TokenPriceRub       *decimal.Decimal `json:"token_price_rub,omitempty"`
	AIPrompt            *string          `json:"ai_prompt,omitempty"`
	ChannelUsername     *string          `json:"channel_username,omitempty"`
	ChannelID           *int64           `json:"channel_id,omitempty"`
}

// Pricing стоимость действий для бота.
type Pricing struct {
	ImageGenerationCost int        `json:"image_generation_cost"`
	GPTRequestCost      int        `json:"gpt_request_cost"`
	ModelCosts          ModelCosts `json:"model_costs"`
}

// ChannelSettings публичные настройки канала.
type ChannelSettings struct {
	ChannelBonus    int    `json:"channel_bonus"`
	ChannelUsername string `json:"channel_username"`
	ChannelID       int64  `json:"channel_id"`
}
