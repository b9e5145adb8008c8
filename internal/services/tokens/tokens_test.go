package tokens

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) Charge(ctx context.Context, tgID int64, cost int, reason string) (int, error) {
	args := m.Called(ctx, tgID, cost, reason)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) Balance(ctx context.Context, tgID int64) (int, error) {
	args := m.Called(ctx, tgID)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) SetBalance(ctx context.Context, userID, balance int) (int, error) {
	args := m.Called(ctx, userID, balance)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) History(ctx context.Context, tgID int64, limit int) ([]models.LedgerEntry, error) {
	args := m.Called(ctx, tgID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LedgerEntry), args.Error(1)
}

func (m *RepoMock) CreateTokenPurchase(ctx context.Context, tgID int64, amount int,
	cost decimal.Decimal) (*models.TokenPurchase, error) {
	args := m.Called(ctx, tgID, amount, cost)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenPurchase), args.Error(1)
}

// fixedPricer цены из настроек по умолчанию.
type fixedPricer struct {
	settings models.Settings
}

func (p fixedPricer) CostFor(action, model string) (int, error) {
	switch action {
	case models.ActionAIChat:
		return p.settings.GPTRequestCost, nil
	case models.ActionImageGeneration:
		if model == models.ModelPro {
			return p.settings.ModelCosts.Pro, nil
		}
		return p.settings.ImageGenerationCost, nil
	}
	return 0, apperr.New(apperr.ErrInvalidArgument, "Неизвестный тип действия для списания токенов")
}

func (p fixedPricer) Current() models.Settings { return p.settings }

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intp(v int) *int { return &v }

func TestService_Charge(t *testing.T) {
	tests := []struct {
		name        string
		req         models.ChargeRequest
		setupMocks  func(*RepoMock)
		want        *models.ChargeResult
		wantKind    error
		wantMessage string
	}{
		{
			name: "списание за генерацию изображения",
			req:  models.ChargeRequest{TgID: 1, Action: models.ActionImageGeneration},
			setupMocks: func(r *RepoMock) {
				r.On("Charge", mock.Anything, int64(1), 5, "charge:image_generation").Return(5, nil).Once()
			},
			want: &models.ChargeResult{Action: models.ActionImageGeneration, Cost: 5, Balance: 5, Label: "генерацию изображения"},
		},
		{
			name: "стоимость модели",
			req:  models.ChargeRequest{TgID: 1, Action: models.ActionImageGeneration, Model: models.ModelPro},
			setupMocks: func(r *RepoMock) {
				r.On("Charge", mock.Anything, int64(1), 10, mock.Anything).Return(90, nil).Once()
			},
			want: &models.ChargeResult{Action: models.ActionImageGeneration, Cost: 10, Balance: 90, Label: "генерацию изображения"},
		},
		{
			name: "явная стоимость",
			req:  models.ChargeRequest{TgID: 1, Action: models.ActionAIChat, Cost: intp(3)},
			setupMocks: func(r *RepoMock) {
				r.On("Charge", mock.Anything, int64(1), 3, "charge:ai_chat").Return(7, nil).Once()
			},
			want: &models.ChargeResult{Action: models.ActionAIChat, Cost: 3, Balance: 7, Label: "запрос к GPT"},
		},
		{
			name: "нулевая стоимость не списывает",
			req:  models.ChargeRequest{TgID: 1, Action: models.ActionAIChat, Cost: intp(0)},
			setupMocks: func(r *RepoMock) {
				r.On("Charge", mock.Anything, int64(1), 0, "charge:ai_chat").Return(3, nil).Once()
			},
			want: &models.ChargeResult{Action: models.ActionAIChat, Cost: 0, Balance: 3, Label: "запрос к GPT"},
		},
		{
			name: "заблокированный пользователь",
			req:  models.ChargeRequest{TgID: 7, Action: models.ActionAIChat},
			setupMocks: func(r *RepoMock) {
				r.On("Charge", mock.Anything, int64(7), 1, mock.Anything).
					Return(0, fmt.Errorf("storage.Charge: %w",
						apperr.New(apperr.ErrForbidden, "Пользователь заблокирован"))).Once()
			},
			wantKind:    apperr.ErrForbidden,
			wantMessage: "Пользователь заблокирован",
		},
		{
			name:        "отрицательная стоимость",
			req:         models.ChargeRequest{TgID: 1, Action: models.ActionAIChat, Cost: intp(-1)},
			setupMocks:  func(_ *RepoMock) {},
			wantKind:    apperr.ErrInvalidArgument,
			wantMessage: "Стоимость действия не может быть отрицательной",
		},
		{
			name:        "неизвестное действие",
			req:         models.ChargeRequest{TgID: 1, Action: "video"},
			setupMocks:  func(_ *RepoMock) {},
			wantKind:    apperr.ErrInvalidArgument,
			wantMessage: "Неизвестный тип действия для списания токенов",
		},
		{
			name: "недостаточно токенов",
			req:  models.ChargeRequest{TgID: 1, Action: models.ActionImageGeneration},
			setupMocks: func(r *RepoMock) {
				r.On("Charge", mock.Anything, int64(1), 5, mock.Anything).
					Return(0, fmt.Errorf("storage.Charge: %w", apperr.ErrInsufficientFunds)).Once()
			},
			wantKind:    apperr.ErrInsufficientFunds,
			wantMessage: "Недостаточно токенов",
		},
		{
			name: "пользователь не найден",
			req:  models.ChargeRequest{TgID: 42, Action: models.ActionAIChat},
			setupMocks: func(r *RepoMock) {
				r.On("Charge", mock.Anything, int64(42), 1, mock.Anything).
					Return(0, fmt.Errorf("storage.Charge: %w", apperr.ErrNotFound)).Once()
			},
			wantKind:    apperr.ErrNotFound,
			wantMessage: "Пользователь не найден",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)
			svc := NewService(repo, fixedPricer{settings: models.DefaultSettings()}, newNoopLogger())

			got, err := svc.Charge(context.Background(), tt.req)
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantKind))
				assert.Equal(t, tt.wantMessage, apperr.Message(err, ""))
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestService_SetBalance(t *testing.T) {
	repo := new(RepoMock)
	svc := NewService(repo, fixedPricer{settings: models.DefaultSettings()}, newNoopLogger())

	_, err := svc.SetBalance(context.Background(), 1, -5)
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	repo.On("SetBalance", mock.Anything, 1, 40).Return(40, nil).Once()
	balance, err := svc.SetBalance(context.Background(), 1, 40)
	require.NoError(t, err)
	assert.Equal(t, 40, balance)
	repo.AssertExpectations(t)
}

func TestService_CreatePurchase(t *testing.T) {
	settings := models.DefaultSettings()
	settings.TokenPriceRub = decimal.RequireFromString("1.50")

	repo := new(RepoMock)
	svc := NewService(repo, fixedPricer{settings: settings}, newNoopLogger())

	_, err := svc.CreatePurchase(context.Background(), 1, 0)
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	want := &models.TokenPurchase{ID: 3, Amount: 100, Cost: decimal.NewFromInt(150), Status: models.StatusPending}
	repo.On("CreateTokenPurchase", mock.Anything, int64(1), 100, mock.MatchedBy(func(c decimal.Decimal) bool {
		return c.Equal(decimal.NewFromInt(150))
	})).Return(want, nil).Once()

	got, err := svc.CreatePurchase(context.Background(), 1, 100)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	repo.AssertExpectations(t)
}

func TestService_History_DefaultLimit(t *testing.T) {
	repo := new(RepoMock)
	svc := NewService(repo, fixedPricer{settings: models.DefaultSettings()}, newNoopLogger())

	repo.On("History", mock.Anything, int64(1), 50).Return([]models.LedgerEntry{{ID: 1, Delta: -5}}, nil).Once()

	entries, err := svc.History(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	repo.AssertExpectations(t)
}
