// Package settings хранит типизированные настройки бизнес-логики и вычисляет стоимость действий.
//
// Настройки читаются из хранилища при запуске и держатся в памяти. Снимок всегда
// содержит значения по умолчанию, поэтому недоступное хранилище не блокирует расчет цен.
// Сервис публикует снимок в Redis, откуда его читают другие процессы.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/models"
)

// CacheKey ключ снимка настроек в Redis.
const CacheKey = "settings:current"

const cacheTTL = 24 * time.Hour

// Repository хранилище настроек в виде ключ-значение.
type Repository interface {
	LoadSettings(ctx context.Context) (map[string]string, error)
	SeedSettings(ctx context.Context, values map[string]string) error
	SaveSettings(ctx context.Context, values map[string]string) error
}

// Cache описывает кэш снимка настроек.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Service типизированные настройки.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger

	mu      sync.RWMutex
	current models.Settings

	// updateMu упорядочивает Update внутри процесса.
	updateMu sync.Mutex
}

// NewService создает сервис со снимком значений по умолчанию.
func NewService(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		log:     log,
		current: models.DefaultSettings(),
	}
}

// Load читает настройки из хранилища и дописывает недостающие ключи значениями по умолчанию.
// При ошибке снимок не меняется.
func (s *Service) Load(ctx context.Context) error {
	const op = "services.settings.Load"
	log := s.log.With(slog.String("op", op))

	stored, err := s.repo.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	loaded, invalid := decode(stored)
	for _, key := range invalid {
		log.Warn("invalid setting value, default used", slog.String("key", key), slog.String("value", stored[key]))
	}

	if seed := missing(stored, encode(models.DefaultSettings())); len(seed) > 0 {
		if err := s.repo.SeedSettings(ctx, seed); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Info("default settings seeded", slog.Int("count", len(seed)))
	}

	s.set(loaded)
	s.publish(ctx, loaded)
	return nil
}

// Refresh обновляет снимок из кэша, а при его отсутствии из хранилища.
func (s *Service) Refresh(ctx context.Context) error {
	const op = "services.settings.Refresh"

	var cached models.Settings
	found, err := s.cache.Get(ctx, CacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read settings from cache", slog.String("op", op), sl.Err(err))
	}
	if found {
		s.set(cached)
		return nil
	}

	stored, err := s.repo.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	loaded, _ := decode(stored)
	s.set(loaded)
	s.publish(ctx, loaded)
	return nil
}

// Current возвращает копию текущего снимка.
func (s *Service) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update применяет частичное обновление поверх значений, прочитанных из хранилища,
// и сохраняет только затронутые ключи. Изменения других ключей, сделанные параллельно
// в этом или другом процессе, не перезаписываются.
func (s *Service) Update(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	const op = "services.settings.Update"

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	stored, err := s.repo.LoadSettings(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("%s: %w", op, err)
	}
	base, _ := decode(stored)

	next, err := apply(base, patch)
	if err != nil {
		return models.Settings{}, fmt.Errorf("%s: %w", op, err)
	}
	if changed := pick(encode(next), touched(patch)); len(changed) > 0 {
		if err := s.repo.SaveSettings(ctx, changed); err != nil {
			return models.Settings{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	s.set(next)
	s.publish(ctx, next)
	s.log.Info("settings updated", slog.String("op", op), slog.Any("keys", touched(patch)))
	return next, nil
}

// CostFor возвращает стоимость действия в токенах.
func (s *Service) CostFor(action, model string) (int, error) {
	const op = "services.settings.CostFor"
	current := s.Current()

	switch action {
	case models.ActionAIChat:
		return current.GPTRequestCost, nil
	case models.ActionImageGeneration:
		switch model {
		case models.ModelNanoBanana:
			return current.ModelCosts.NanoBanana, nil
		case models.ModelPro:
			return current.ModelCosts.Pro, nil
		case models.ModelSD:
			return current.ModelCosts.SD, nil
		default:
			return current.ImageGenerationCost, nil
		}
	default:
		return 0, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, "Неизвестный тип действия для списания токенов"))
	}
}

// Pricing возвращает стоимость действий для бота.
func (s *Service) Pricing() models.Pricing {
	current := s.Current()
	return models.Pricing{
		ImageGenerationCost: current.ImageGenerationCost,
		GPTRequestCost:      current.GPTRequestCost,
		ModelCosts:          current.ModelCosts,
	}
}

// Channel возвращает публичные настройки канала.
func (s *Service) Channel() models.ChannelSettings {
	current := s.Current()
	return models.ChannelSettings{
		ChannelBonus:    current.ChannelBonus,
		ChannelUsername: current.ChannelUsername,
		ChannelID:       current.ChannelID,
	}
}

func (s *Service) set(next models.Settings) {
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
}

func (s *Service) publish(ctx context.Context, current models.Settings) {
	if err := s.cache.Set(ctx, CacheKey, current, cacheTTL); err != nil {
		s.log.Warn("failed to publish settings to cache", sl.Err(err))
	}
}

func apply(s models.Settings, p models.SettingsPatch) (models.Settings, error) {
	ints := []struct {
		src *int
		dst *int
	}{
		{p.ReferralBonus, &s.ReferralBonus},
		{p.ChannelBonus, &s.ChannelBonus},
		{p.GPTRequestCost, &s.GPTRequestCost},
		{p.ImageGenerationCost, &s.ImageGenerationCost},
		{p.NanoBananaCost, &s.ModelCosts.NanoBanana},
		{p.ProCost, &s.ModelCosts.Pro},
		{p.SDCost, &s.ModelCosts.SD},
	}
	for _, f := range ints {
		if f.src == nil {
			continue
		}
		if *f.src < 0 {
			return s, apperr.New(apperr.ErrInvalidArgument, "Значение не может быть отрицательным")
		}
		*f.dst = *f.src
	}

	if p.RubPerReferral != nil {
		if p.RubPerReferral.IsNegative() {
			return s, apperr.New(apperr.ErrInvalidArgument, "Сумма за реферала не может быть отрицательной")
		}
		s.RubPerReferral = *p.RubPerReferral
	}
	if p.TokenPriceRub != nil {
		if p.TokenPriceRub.IsNegative() {
			return s, apperr.New(apperr.ErrInvalidArgument, "Цена токена не может быть отрицательной")
		}
		s.TokenPriceRub = *p.TokenPriceRub
	}
	if p.AIPrompt != nil {
		if strings.TrimSpace(*p.AIPrompt) == "" {
			return s, apperr.New(apperr.ErrInvalidArgument, "Промпт не может быть пустым")
		}
		s.AIPrompt = *p.AIPrompt
	}
	if p.ChannelUsername != nil {
		name := strings.TrimPrefix(strings.TrimSpace(*p.ChannelUsername), "@")
		if name == "" {
			return s, apperr.New(apperr.ErrInvalidArgument, "Имя канала не может быть пустым")
		}
		s.ChannelUsername = name
	}
	if p.ChannelID != nil {
		s.ChannelID = *p.ChannelID
	}
	return s, nil
}
