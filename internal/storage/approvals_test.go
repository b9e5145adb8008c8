package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_ApproveTokenPurchase(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, 111, "buyer", 0)
	purchaseID := factory.CreateTokenPurchase(t, userID, 100)
	method := "card"

	res, err := storage.ApproveRequest(ctx, models.KindTokenPurchase, purchaseID, 0,
		models.ApproveInput{PaymentMethod: &method})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Credited)
	assert.Equal(t, 100, res.NewBalance)
	assert.Equal(t, int64(111), res.UserTgID)
	verify.VerifyBalance(t, userID, 100)
	verify.VerifyStatus(t, "token_purchase_requests", purchaseID, models.StatusApproved)
	verify.VerifyCount(t, "SELECT COUNT(*) FROM token_purchase_requests WHERE id = $1 AND payment_method = 'card'", 1, purchaseID)

	t.Run("повторное одобрение", func(t *testing.T) {
		_, err := storage.ApproveRequest(ctx, models.KindTokenPurchase, purchaseID, 0, models.ApproveInput{})
		assert.True(t, errors.Is(err, apperr.ErrAlreadyProcessed))
		verify.VerifyBalance(t, userID, 100)
	})

	t.Run("отклонение обработанной заявки", func(t *testing.T) {
		_, err := storage.RejectRequest(ctx, models.KindTokenPurchase, purchaseID, 0, nil)
		assert.True(t, errors.Is(err, apperr.ErrAlreadyProcessed))
	})

	t.Run("несуществующая заявка", func(t *testing.T) {
		_, err := storage.ApproveRequest(ctx, models.KindTokenPurchase, 999999, 0, models.ApproveInput{})
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})
}

func TestStorage_ApproveConcurrentOnlyOnce(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)

	userID := factory.CreateUser(t, 222, "lucky", 0)
	purchaseID := factory.CreateTokenPurchase(t, userID, 50)

	var (
		wg       sync.WaitGroup
		approved atomic.Int32
	)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := storage.ApproveRequest(context.Background(), models.KindTokenPurchase, purchaseID, 0, models.ApproveInput{})
			if err == nil {
				approved.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), approved.Load())
	verify.VerifyBalance(t, userID, 50)
}

func TestStorage_ChannelBonusFlow(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)
	ctx := context.Background()
	userID := factory.CreateUser(t, 333, "subscriber", 0)

	outcome, err := storage.CreateChannelBonusRequest(ctx, 333, 50)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelRequestCreated, outcome)

	pending, err := storage.HasPendingChannelBonus(ctx, 333)
	require.NoError(t, err)
	assert.True(t, pending)

	outcome, err = storage.CreateChannelBonusRequest(ctx, 333, 50)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelRequestAlreadyExist, outcome)

	list, err := storage.ListApprovals(ctx, models.KindChannelBonus, models.StatusPending)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 50, list[0].Amount)
	assert.Equal(t, "subscriber", list[0].Username)

	res, err := storage.ApproveRequest(ctx, models.KindChannelBonus, list[0].ID, 0, models.ApproveInput{})
	require.NoError(t, err)
	assert.Equal(t, 50, res.NewBalance)
	verify.VerifyBalance(t, userID, 50)
	verify.VerifyCount(t, "SELECT COUNT(*) FROM users WHERE id = $1 AND channel_bonus_given", 1, userID)

	outcome, err = storage.CreateChannelBonusRequest(ctx, 333, 50)
	require.NoError(t, err)
	assert.Equal(t, models.ChannelBonusAlreadyGiven, outcome)

	pending, err = storage.HasPendingChannelBonus(ctx, 404404)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestStorage_PayoutFlow(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)
	ctx := context.Background()

	referrerID := factory.CreateUser(t, 444, "referrer", 7)
	for i := range 3 {
		referredID := factory.CreateUser(t, int64(5000+i), "friend", 0)
		factory.CreateReferral(t, referrerID, referredID)
	}
	rate := decimal.NewFromInt(50)

	_, err := storage.CreatePayout(ctx, 444, 4, rate)
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	payout, err := storage.CreatePayout(ctx, 444, 2, rate)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(payout.AmountRub))
	assert.Equal(t, models.StatusPending, payout.Status)

	_, err = storage.CreatePayout(ctx, 444, 1, rate)
	assert.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	totals, err := storage.PayoutTotals(ctx, referrerID)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.PendingCount)

	res, err := storage.ApproveRequest(ctx, models.KindReferralPayout, payout.ID, 0, models.ApproveInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Credited)
	verify.VerifyBalance(t, referrerID, 7)
	verify.VerifyStatus(t, "referral_payouts", payout.ID, models.StatusApproved)

	list, err := storage.ListApprovals(ctx, models.KindReferralPayout, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Details.AmountRub)
	assert.True(t, decimal.NewFromInt(100).Equal(*list[0].Details.AmountRub))
}

func TestStorage_RejectKeepsBalance(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, 555, "declined", 3)
	purchaseID := factory.CreateTokenPurchase(t, userID, 10)
	comment := "оплата не поступила"

	res, err := storage.RejectRequest(ctx, models.KindTokenPurchase, purchaseID, 0, &comment)
	require.NoError(t, err)
	assert.Equal(t, int64(555), res.UserTgID)
	verify.VerifyStatus(t, "token_purchase_requests", purchaseID, models.StatusRejected)
	verify.VerifyBalance(t, userID, 3)

	_, err = storage.ApproveRequest(ctx, models.KindTokenPurchase, purchaseID, 0, models.ApproveInput{})
	assert.True(t, errors.Is(err, apperr.ErrAlreadyProcessed))
}
