package settings

import (
	"strconv"

	"github.com/Uz11ps/markethelper/internal/models"
	"github.com/shopspring/decimal"
)

// Ключи таблицы settings.
const (
	KeyReferralBonus       = "referral_bonus"
	KeyChannelBonus        = "channel_bonus"
	KeyGPTRequestCost      = "gpt_request_cost"
	KeyImageGenerationCost = "image_generation_cost"
	KeyNanoBananaCost      = "model_cost_nano_banana"
	KeyProCost             = "model_cost_pro"
	KeySDCost              = "model_cost_sd"
	KeyRubPerReferral      = "referral_rub_per_referral"
	KeyTokenPriceRub       = "token_price_rub"
	KeyAIPrompt            = "ai_prompt"
	KeyChannelUsername     = "channel_username"
	KeyChannelID           = "channel_id"
)

// encode раскладывает настройки по ключам хранилища.
func encode(s models.Settings) map[string]string {
	return map[string]string{
		KeyReferralBonus:       strconv.Itoa(s.ReferralBonus),
		KeyChannelBonus:        strconv.Itoa(s.ChannelBonus),
		KeyGPTRequestCost:      strconv.Itoa(s.GPTRequestCost),
		KeyImageGenerationCost: strconv.Itoa(s.ImageGenerationCost),
		KeyNanoBananaCost:      strconv.Itoa(s.ModelCosts.NanoBanana),
		KeyProCost:             strconv.Itoa(s.ModelCosts.Pro),
		KeySDCost:              strconv.Itoa(s.ModelCosts.SD),
		KeyRubPerReferral:      s.RubPerReferral.String(),
		KeyTokenPriceRub:       s.TokenPriceRub.String(),
		KeyAIPrompt:            s.AIPrompt,
		KeyChannelUsername:     s.ChannelUsername,
		KeyChannelID:           strconv.FormatInt(s.ChannelID, 10),
	}
}

// decode собирает настройки из значений хранилища поверх значений по умолчанию.
// Ключи с нераспознанными значениями возвращаются в invalid, для них остается значение по умолчанию.
func decode(values map[string]string) (s models.Settings, invalid []string) {
	s = models.DefaultSettings()

	ints := map[string]*int{
		KeyReferralBonus:       &s.ReferralBonus,
		KeyChannelBonus:        &s.ChannelBonus,
		KeyGPTRequestCost:      &s.GPTRequestCost,
		KeyImageGenerationCost: &s.ImageGenerationCost,
		KeyNanoBananaCost:      &s.ModelCosts.NanoBanana,
		KeyProCost:             &s.ModelCosts.Pro,
		KeySDCost:              &s.ModelCosts.SD,
	}
	for key, dst := range ints {
		raw, ok := values[key]
		if !ok {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			invalid = append(invalid, key)
			continue
		}
		*dst = v
	}

	decimals := map[string]*decimal.Decimal{
		KeyRubPerReferral: &s.RubPerReferral,
		KeyTokenPriceRub:  &s.TokenPriceRub,
	}
	for key, dst := range decimals {
		raw, ok := values[key]
		if !ok {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil || v.IsNegative() {
			invalid = append(invalid, key)
			continue
		}
		*dst = v
	}

	if raw, ok := values[KeyChannelID]; ok {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			invalid = append(invalid, KeyChannelID)
		} else {
			s.ChannelID = v
		}
	}
	if raw, ok := values[KeyAIPrompt]; ok && raw != "" {
		s.AIPrompt = raw
	}
	if raw, ok := values[KeyChannelUsername]; ok && raw != "" {
		s.ChannelUsername = raw
	}
	return s, invalid
}

// missing возвращает значения для ключей, которых нет в хранилище.
func missing(stored, all map[string]string) map[string]string {
	res := make(map[string]string)
	for key, value := range all {
		if _, ok := stored[key]; !ok {
			res[key] = value
		}
	}
	return res
}

// touched возвращает ключи хранилища, которые задает patch.
func touched(p models.SettingsPatch) []string {
	fields := []struct {
		set bool
		key string
	}{
		{p.ReferralBonus != nil, KeyReferralBonus},
		{p.ChannelBonus != nil, KeyChannelBonus},
		{p.GPTRequestCost != nil, KeyGPTRequestCost},
		{p.ImageGenerationCost != nil, KeyImageGenerationCost},
		{p.NanoBananaCost != nil, KeyNanoBananaCost},
		{p.ProCost != nil, KeyProCost},
		{p.SDCost != nil, KeySDCost},
		{p.RubPerReferral != nil, KeyRubPerReferral},
		{p.TokenPriceRub != nil, KeyTokenPriceRub},
		{p.AIPrompt != nil, KeyAIPrompt},
		{p.ChannelUsername != nil, KeyChannelUsername},
		{p.ChannelID != nil, KeyChannelID},
	}
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.set {
			keys = append(keys, f.key)
		}
	}
	return keys
}

func pick(values map[string]string, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = values[k]
	}
	return out
}
