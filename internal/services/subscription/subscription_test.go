package subscription

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreateRequest(ctx context.Context, in models.NewRequest) (*models.Request, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Request), args.Error(1)
}

func (m *RepoMock) ListRequests(ctx context.Context, status string) ([]models.Request, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Request), args.Error(1)
}

func (m *RepoMock) ApproveSubscriptionRequest(ctx context.Context, requestID, adminID int, groupID *int,
	referralBonus int, now time.Time) (*models.ApprovedSubscription, error) {
	args := m.Called(ctx, requestID, adminID, groupID, referralBonus, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ApprovedSubscription), args.Error(1)
}

func (m *RepoMock) RejectSubscriptionRequest(ctx context.Context, requestID, adminID int) (*models.RejectedRequest, error) {
	args := m.Called(ctx, requestID, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RejectedRequest), args.Error(1)
}

func (m *RepoMock) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func (m *RepoMock) ExtendSubscription(ctx context.Context, id, days int, now time.Time) (*models.Subscription, error) {
	args := m.Called(ctx, id, days, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) RevokeSubscription(ctx context.Context, id int, now time.Time) (*models.Subscription, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *RepoMock) ActiveSubscription(ctx context.Context, tgID int64, now time.Time) (*models.Subscription, error) {
	args := m.Called(ctx, tgID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

type settingsStub struct{ s models.Settings }

func (s settingsStub) Current() models.Settings { return s.s }

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Notify(ctx context.Context, tgID int64, message string) {
	m.Called(ctx, tgID, message)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(r *RepoMock, n *NotifierMock) *Service {
	settings := models.DefaultSettings()
	settings.ReferralBonus = 70
	s := NewService(r, settingsStub{s: settings}, n, newNoopLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestService_ApproveRequest(t *testing.T) {
	groupID := 3
	bonusID := 11

	tests := []struct {
		name        string
		setupMocks  func(*RepoMock, *NotifierMock)
		wantKind    error
		wantMessage string
	}{
		{
			name: "заявка одобрена и пользователь уведомлен",
			setupMocks: func(r *RepoMock, n *NotifierMock) {
				r.On("ApproveSubscriptionRequest", mock.Anything, 5, 1, &groupID, 70, fixedNow).
					Return(&models.ApprovedSubscription{RequestID: 5, SubscriptionID: 8, UserTgID: 100,
						TariffName: "PRO", GroupID: &groupID, EndDate: fixedNow.AddDate(0, 0, 30),
						PendingBonusID: &bonusID}, nil).Once()
				n.On("Notify", mock.Anything, int64(100),
					"✅ Ваша заявка #5 на тариф PRO одобрена!\nИспользуйте /start еще раз для перехода в профиль и использования бота!").
					Once()
			},
		},
		{
			name: "заявка уже обработана",
			setupMocks: func(r *RepoMock, _ *NotifierMock) {
				r.On("ApproveSubscriptionRequest", mock.Anything, 5, 1, &groupID, 70, fixedNow).
					Return(nil, fmt.Errorf("storage.ApproveSubscriptionRequest: %w",
						apperr.New(apperr.ErrAlreadyProcessed, "Заявка уже обработана"))).Once()
			},
			wantKind:    apperr.ErrAlreadyProcessed,
			wantMessage: "Заявка уже обработана",
		},
		{
			name: "не указана группа",
			setupMocks: func(r *RepoMock, _ *NotifierMock) {
				r.On("ApproveSubscriptionRequest", mock.Anything, 5, 1, &groupID, 70, fixedNow).
					Return(nil, fmt.Errorf("storage.ApproveSubscriptionRequest: %w",
						apperr.New(apperr.ErrInvalidArgument, "Для групповой подписки необходимо выбрать группу"))).Once()
			},
			wantKind:    apperr.ErrInvalidArgument,
			wantMessage: "Для групповой подписки необходимо выбрать группу",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, n := &RepoMock{}, &NotifierMock{}
			tt.setupMocks(r, n)
			s := newTestService(r, n)

			res, err := s.ApproveRequest(context.Background(), 5, 1, &groupID)
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantKind))
				assert.Equal(t, tt.wantMessage, apperr.Message(err, ""))
				n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 8, res.SubscriptionID)
			}
			r.AssertExpectations(t)
			n.AssertExpectations(t)
		})
	}
}

func TestService_RejectRequest(t *testing.T) {
	r, n := &RepoMock{}, &NotifierMock{}
	r.On("RejectSubscriptionRequest", mock.Anything, 6, 2).
		Return(&models.RejectedRequest{RequestID: 6, UserTgID: 200, TariffName: "BASIC"}, nil).Once()
	n.On("Notify", mock.Anything, int64(200), "❌ Ваша заявка #6 на тариф BASIC отклонена.").Once()

	res, err := newTestService(r, n).RejectRequest(context.Background(), 6, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, res.RequestID)
	r.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestService_ListRequests(t *testing.T) {
	t.Run("неизвестный статус", func(t *testing.T) {
		r := &RepoMock{}
		_, err := newTestService(r, &NotifierMock{}).ListRequests(context.Background(), "archived")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))
		r.AssertNotCalled(t, "ListRequests", mock.Anything, mock.Anything)
	})

	t.Run("пустой список вместо nil", func(t *testing.T) {
		r := &RepoMock{}
		r.On("ListRequests", mock.Anything, models.StatusPending).Return(nil, nil).Once()
		res, err := newTestService(r, &NotifierMock{}).ListRequests(context.Background(), models.StatusPending)
		require.NoError(t, err)
		assert.NotNil(t, res)
		assert.Empty(t, res)
	})
}

func TestService_Extend(t *testing.T) {
	tests := []struct {
		name        string
		days        int
		setupMocks  func(*RepoMock)
		wantKind    error
		wantMessage string
	}{
		{
			name:        "неположительное число дней",
			days:        0,
			setupMocks:  func(_ *RepoMock) {},
			wantKind:    apperr.ErrInvalidArgument,
			wantMessage: "Количество дней должно быть больше нуля",
		},
		{
			name: "подписка не найдена",
			days: 10,
			setupMocks: func(r *RepoMock) {
				r.On("ExtendSubscription", mock.Anything, 4, 10, fixedNow).
					Return(nil, fmt.Errorf("storage.ExtendSubscription: %w", apperr.ErrNotFound)).Once()
			},
			wantKind:    apperr.ErrNotFound,
			wantMessage: "Подписка не найдена",
		},
		{
			name: "подписка продлена",
			days: 10,
			setupMocks: func(r *RepoMock) {
				r.On("ExtendSubscription", mock.Anything, 4, 10, fixedNow).
					Return(&models.Subscription{ID: 4, Status: models.SubscriptionActive,
						EndDate: fixedNow.AddDate(0, 0, 10)}, nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &RepoMock{}
			tt.setupMocks(r)

			sub, err := newTestService(r, &NotifierMock{}).Extend(context.Background(), 4, tt.days)
			if tt.wantKind != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantKind))
				assert.Equal(t, tt.wantMessage, apperr.Message(err, ""))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.SubscriptionActive, sub.Status)
			r.AssertExpectations(t)
		})
	}
}

func TestService_Active(t *testing.T) {
	r := &RepoMock{}
	r.On("ActiveSubscription", mock.Anything, int64(100), fixedNow).
		Return(nil, fmt.Errorf("storage.ActiveSubscription: %w", apperr.ErrNotFound)).Once()

	_, err := newTestService(r, &NotifierMock{}).Active(context.Background(), 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, "Активная подписка не найдена", apperr.Message(err, ""))
}
