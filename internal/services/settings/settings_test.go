package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Uz11ps/markethelper/internal/cache"
	"github.com/Uz11ps/markethelper/internal/config"
	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) LoadSettings(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *RepoMock) SeedSettings(ctx context.Context, values map[string]string) error {
	return m.Called(ctx, values).Error(0)
}

func (m *RepoMock) SaveSettings(ctx context.Context, values map[string]string) error {
	return m.Called(ctx, values).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	return c
}

func intp(v int) *int { return &v }

func TestService_Load(t *testing.T) {
	tests := []struct {
		name       string
		stored     map[string]string
		setupMocks func(*RepoMock)
		wantErr    bool
		check      func(*testing.T, models.Settings)
	}{
		{
			name:   "пустое хранилище заполняется значениями по умолчанию",
			stored: map[string]string{},
			setupMocks: func(r *RepoMock) {
				r.On("SeedSettings", mock.Anything, mock.MatchedBy(func(v map[string]string) bool {
					return len(v) == 12 && v[KeyReferralBonus] == "100" && v[KeyTokenPriceRub] == "1"
				})).Return(nil).Once()
			},
			check: func(t *testing.T, s models.Settings) {
				assert.Equal(t, models.DefaultSettings().GPTRequestCost, s.GPTRequestCost)
				assert.Equal(t, 100, s.ReferralBonus)
			},
		},
		{
			name: "сохраненные значения применяются, неверные игнорируются",
			stored: map[string]string{
				KeyReferralBonus:       "200",
				KeyChannelBonus:        "-5",
				KeyGPTRequestCost:      "2",
				KeyImageGenerationCost: "7",
				KeyNanoBananaCost:      "4",
				KeyProCost:             "12",
				KeySDCost:              "abc",
				KeyRubPerReferral:      "75.50",
				KeyTokenPriceRub:       "1.25",
				KeyAIPrompt:            "prompt",
				KeyChannelUsername:     "mychannel",
				KeyChannelID:           "-100",
			},
			setupMocks: func(_ *RepoMock) {},
			check: func(t *testing.T, s models.Settings) {
				assert.Equal(t, 200, s.ReferralBonus)
				assert.Equal(t, 50, s.ChannelBonus)
				assert.Equal(t, 2, s.GPTRequestCost)
				assert.Equal(t, 7, s.ImageGenerationCost)
				assert.Equal(t, models.ModelCosts{NanoBanana: 4, Pro: 12, SD: 3}, s.ModelCosts)
				assert.True(t, decimal.RequireFromString("75.5").Equal(s.RubPerReferral))
				assert.True(t, decimal.RequireFromString("1.25").Equal(s.TokenPriceRub))
				assert.Equal(t, "prompt", s.AIPrompt)
				assert.Equal(t, "mychannel", s.ChannelUsername)
				assert.Equal(t, int64(-100), s.ChannelID)
			},
		},
		{
			name: "ошибка хранилища оставляет значения по умолчанию",
			setupMocks: func(r *RepoMock) {
				r.On("LoadSettings", mock.Anything).Return(nil, errors.New("db down")).Once()
			},
			wantErr: true,
			check: func(t *testing.T, s models.Settings) {
				assert.Equal(t, models.DefaultSettings(), s)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			if tt.stored != nil {
				repo.On("LoadSettings", mock.Anything).Return(tt.stored, nil).Once()
			}
			tt.setupMocks(repo)
			svc := NewService(repo, newTestCache(t), newNoopLogger())

			err := svc.Load(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			tt.check(t, svc.Current())
			repo.AssertExpectations(t)
		})
	}
}

func TestService_CostFor(t *testing.T) {
	svc := NewService(new(RepoMock), nil, newNoopLogger())

	tests := []struct {
		name    string
		action  string
		model   string
		want    int
		wantErr bool
	}{
		{"gpt", models.ActionAIChat, "", 1, false},
		{"изображение без модели", models.ActionImageGeneration, "", 5, false},
		{"nano-banana", models.ActionImageGeneration, models.ModelNanoBanana, 5, false},
		{"pro", models.ActionImageGeneration, models.ModelPro, 10, false},
		{"sd", models.ActionImageGeneration, models.ModelSD, 3, false},
		{"неизвестная модель", models.ActionImageGeneration, "dalle", 5, false},
		{"неизвестное действие", "video", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CostFor(tt.action, tt.model)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
				assert.Equal(t, "Неизвестный тип действия для списания токенов", apperr.Message(err, ""))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Update(t *testing.T) {
	t.Run("обновление сохраняется и публикуется", func(t *testing.T) {
		repo := new(RepoMock)
		c := newTestCache(t)
		svc := NewService(repo, c, newNoopLogger())

		repo.On("LoadSettings", mock.Anything).Return(map[string]string{KeyReferralBonus: "250"}, nil).Once()
		repo.On("SaveSettings", mock.Anything, mock.MatchedBy(func(v map[string]string) bool {
			return len(v) == 4 && v[KeyGPTRequestCost] == "3" && v[KeyProCost] == "20" &&
				v[KeyChannelUsername] == "newchannel" && v[KeyTokenPriceRub] == "2.5"
		})).Return(nil).Once()

		price := decimal.RequireFromString("2.5")
		name := "@newchannel"
		got, err := svc.Update(context.Background(), models.SettingsPatch{
			GPTRequestCost:  intp(3),
			ProCost:         intp(20),
			TokenPriceRub:   &price,
			ChannelUsername: &name,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, got.GPTRequestCost)
		assert.Equal(t, "newchannel", got.ChannelUsername)
		assert.Equal(t, 250, got.ReferralBonus)

		cost, err := svc.CostFor(models.ActionImageGeneration, models.ModelPro)
		require.NoError(t, err)
		assert.Equal(t, 20, cost)

		var cached models.Settings
		found, err := c.Get(context.Background(), CacheKey, &cached)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 3, cached.GPTRequestCost)
		assert.True(t, price.Equal(cached.TokenPriceRub))
		repo.AssertExpectations(t)
	})

	t.Run("отрицательная цена отклоняется", func(t *testing.T) {
		repo := new(RepoMock)
		svc := NewService(repo, newTestCache(t), newNoopLogger())
		repo.On("LoadSettings", mock.Anything).Return(map[string]string{}, nil).Once()

		price := decimal.NewFromInt(-1)
		_, err := svc.Update(context.Background(), models.SettingsPatch{TokenPriceRub: &price})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
		assert.Equal(t, models.DefaultSettings(), svc.Current())
		repo.AssertNotCalled(t, "SaveSettings", mock.Anything, mock.Anything)
	})

	t.Run("ошибка хранилища не меняет снимок", func(t *testing.T) {
		repo := new(RepoMock)
		svc := NewService(repo, newTestCache(t), newNoopLogger())
		repo.On("LoadSettings", mock.Anything).Return(map[string]string{}, nil).Once()
		repo.On("SaveSettings", mock.Anything, mock.Anything).Return(errors.New("tx failed")).Once()

		_, err := svc.Update(context.Background(), models.SettingsPatch{GPTRequestCost: intp(9)})
		require.Error(t, err)
		assert.Equal(t, 1, svc.Current().GPTRequestCost)
	})
}

// memoryRepo хранилище настроек в памяти для проверки параллельных обновлений.
type memoryRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func (r *memoryRepo) LoadSettings(_ context.Context) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out, nil
}

func (r *memoryRepo) SeedSettings(ctx context.Context, values map[string]string) error {
	return r.SaveSettings(ctx, values)
}

func (r *memoryRepo) SaveSettings(_ context.Context, values map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range values {
		r.values[k] = v
	}
	return nil
}

func TestService_UpdateConcurrentKeys(t *testing.T) {
	t.Run("параллельные обновления разных ключей не теряются", func(t *testing.T) {
		repo := &memoryRepo{values: map[string]string{}}
		svc := NewService(repo, newTestCache(t), newNoopLogger())

		var wg sync.WaitGroup
		for _, patch := range []models.SettingsPatch{
			{GPTRequestCost: intp(7)},
			{ReferralBonus: intp(300)},
		} {
			wg.Add(1)
			go func(p models.SettingsPatch) {
				defer wg.Done()
				_, err := svc.Update(context.Background(), p)
				assert.NoError(t, err)
			}(patch)
		}
		wg.Wait()

		assert.Equal(t, 7, svc.Current().GPTRequestCost)
		assert.Equal(t, 300, svc.Current().ReferralBonus)
		stored, _ := repo.LoadSettings(context.Background())
		assert.Equal(t, "7", stored[KeyGPTRequestCost])
		assert.Equal(t, "300", stored[KeyReferralBonus])
	})

	t.Run("устаревший снимок другого экземпляра не перезаписывает ключи", func(t *testing.T) {
		repo := &memoryRepo{values: map[string]string{}}
		first := NewService(repo, newTestCache(t), newNoopLogger())
		second := NewService(repo, newTestCache(t), newNoopLogger())

		_, err := first.Update(context.Background(), models.SettingsPatch{GPTRequestCost: intp(7)})
		require.NoError(t, err)
		got, err := second.Update(context.Background(), models.SettingsPatch{ReferralBonus: intp(300)})
		require.NoError(t, err)

		assert.Equal(t, 7, got.GPTRequestCost)
		stored, _ := repo.LoadSettings(context.Background())
		assert.Equal(t, "7", stored[KeyGPTRequestCost])
		assert.Equal(t, "300", stored[KeyReferralBonus])
		assert.Len(t, stored, 2)
	})
}

func TestService_Refresh(t *testing.T) {
	repo := new(RepoMock)
	c := newTestCache(t)

	published := models.DefaultSettings()
	published.ChannelBonus = 77
	require.NoError(t, c.Set(context.Background(), CacheKey, published, 0))

	svc := NewService(repo, c, newNoopLogger())
	require.NoError(t, svc.Refresh(context.Background()))

	assert.Equal(t, 77, svc.Channel().ChannelBonus)
	repo.AssertNotCalled(t, "LoadSettings", mock.Anything)
}

func TestService_Pricing(t *testing.T) {
	svc := NewService(new(RepoMock), nil, newNoopLogger())

	p := svc.Pricing()
	assert.Equal(t, 5, p.ImageGenerationCost)
	assert.Equal(t, 1, p.GPTRequestCost)
	assert.Equal(t, models.ModelCosts{NanoBanana: 5, Pro: 10, SD: 3}, p.ModelCosts)
}
