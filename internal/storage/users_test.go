package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_BannedUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, 50, "spammer", 10)
	u, err := storage.SetUserBanned(ctx, userID, true)
	require.NoError(t, err)
	assert.True(t, u.IsBanned)

	t.Run("списание запрещено", func(t *testing.T) {
		_, err := storage.Charge(ctx, 50, 1, models.ReasonCharge)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrForbidden))
		verify.VerifyBalance(t, userID, 10)
		verify.VerifyLedgerEntries(t, userID, 0)
	})

	t.Run("бесплатное действие тоже запрещено", func(t *testing.T) {
		_, err := storage.Charge(ctx, 50, 0, models.ReasonCharge)
		assert.True(t, errors.Is(err, apperr.ErrForbidden))
	})

	t.Run("заявка на подписку запрещена", func(t *testing.T) {
		_, err := storage.CreateRequest(ctx, models.NewRequest{TgID: 50, TariffCode: "GROUP", DurationMonths: 1})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrForbidden))
		verify.VerifyCount(t, `SELECT COUNT(*) FROM requests WHERE user_id = $1`, 0, userID)
	})

	t.Run("рассылка не доходит", func(t *testing.T) {
		audience, err := storage.ListAudience(ctx, models.AudienceAll)
		require.NoError(t, err)
		assert.NotContains(t, audience, int64(50))
	})

	t.Run("после разблокировки списание работает", func(t *testing.T) {
		_, err := storage.SetUserBanned(ctx, userID, false)
		require.NoError(t, err)
		balance, err := storage.Charge(ctx, 50, 3, models.ReasonCharge)
		require.NoError(t, err)
		assert.Equal(t, 7, balance)
	})

	t.Run("неизвестный пользователь", func(t *testing.T) {
		_, err := storage.SetUserBanned(ctx, 99999, true)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})
}

func TestStorage_ChargeZeroCostWritesNothing(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)

	userID := factory.CreateUser(t, 51, "free", 4)
	balance, err := storage.Charge(context.Background(), 51, 0, models.ReasonCharge)
	require.NoError(t, err)
	assert.Equal(t, 4, balance)
	verify.VerifyLedgerEntries(t, userID, 0)
}

func TestStorage_ListUsersAndStats(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	alice := factory.CreateUser(t, 61, "alice", 5)
	bob := factory.CreateUser(t, 62, "Bobby", 7)
	carol := factory.CreateUser(t, 63, "carol", 0)
	factory.CreateReferral(t, alice, bob)
	factory.CreateReferral(t, alice, carol)
	_, err := storage.SetUserBanned(ctx, carol, true)
	require.NoError(t, err)

	tests := []struct {
		name      string
		filter    models.UserFilter
		wantTotal int
		wantNames []string
	}{
		{
			name:      "без фильтра новые первыми",
			filter:    models.UserFilter{Limit: 10},
			wantTotal: 3,
			wantNames: []string{"carol", "Bobby", "alice"},
		},
		{
			name:      "поиск без учета регистра",
			filter:    models.UserFilter{Search: "bob", Limit: 10},
			wantTotal: 1,
			wantNames: []string{"Bobby"},
		},
		{
			name:      "смещение",
			filter:    models.UserFilter{Limit: 1, Offset: 1},
			wantTotal: 3,
			wantNames: []string{"Bobby"},
		},
		{
			name:      "ничего не найдено",
			filter:    models.UserFilter{Search: "zzz", Limit: 10},
			wantTotal: 0,
			wantNames: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := storage.ListUsers(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, page.Total)
			names := []string{}
			for _, u := range page.Items {
				names = append(names, u.Username)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}

	t.Run("статистика", func(t *testing.T) {
		st, err := storage.UserStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &models.UserStats{
			TotalUsers: 3, BannedUsers: 1, UsersWithReferrals: 1, TotalBonusDistributed: 12,
		}, st)
	})
}

func TestStorage_DeleteUserCascades(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, 70, "leaver", 10)
	_, err := storage.Charge(ctx, 70, 2, models.ReasonCharge)
	require.NoError(t, err)
	factory.CreateRequest(t, userID, "GROUP", 1, models.SubscriptionTypeGroup, nil)

	require.NoError(t, storage.DeleteUser(ctx, userID))
	verify.VerifyCount(t, `SELECT COUNT(*) FROM requests WHERE user_id = $1`, 0, userID)
	verify.VerifyCount(t, `SELECT COUNT(*) FROM ledger_entries WHERE user_id = $1`, 0, userID)

	_, err = storage.GetUserByID(ctx, userID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = storage.DeleteUser(ctx, userID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestStorage_AdminAccounts(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	created, err := storage.InsertAdmin(ctx, models.NewAdmin{Username: "ops", FullName: "Оператор"}, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "ops", created.Username)
	assert.Equal(t, "Оператор", created.FullName)
	assert.True(t, created.IsActive)
	assert.False(t, created.IsSuperAdmin)

	t.Run("занятый логин", func(t *testing.T) {
		_, err := storage.InsertAdmin(ctx, models.NewAdmin{Username: "ops"}, "hash-2")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrConflict))
	})

	t.Run("частичное обновление", func(t *testing.T) {
		email, hash, active := "ops@example.com", "hash-3", false
		updated, err := storage.UpdateAdmin(ctx, created.ID, models.AdminUpdate{
			Email: &email, PasswordHash: &hash, IsActive: &active,
		})
		require.NoError(t, err)
		assert.Equal(t, "Оператор", updated.FullName)
		assert.Equal(t, email, updated.Email)
		assert.Equal(t, hash, updated.PasswordHash)
		assert.False(t, updated.IsActive)
	})

	t.Run("список и поиск по id", func(t *testing.T) {
		list, err := storage.ListAdmins(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)

		got, err := storage.GetAdminByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ops", got.Username)
	})

	t.Run("удаление", func(t *testing.T) {
		require.NoError(t, storage.DeleteAdmin(ctx, created.ID))
		_, err := storage.GetAdminByID(ctx, created.ID)
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		assert.True(t, errors.Is(storage.DeleteAdmin(ctx, created.ID), apperr.ErrNotFound))
	})
}

func TestStorage_BroadcastHistory(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	for _, msg := range []string{"первая", "вторая", "третья"} {
		_, err := storage.CreateBroadcast(ctx, msg, models.AudienceAll, 1)
		require.NoError(t, err)
	}

	history, err := storage.BroadcastHistory(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "третья", history[0].Message)
	assert.Equal(t, "вторая", history[1].Message)

	rest, err := storage.BroadcastHistory(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "первая", rest[0].Message)
}
