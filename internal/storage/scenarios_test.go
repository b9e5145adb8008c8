package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

func TestScenario_SequentialChargesThenZeroBalance(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)
	ctx := context.Background()

	userID := factory.CreateUser(t, 5005, "chatter", 10)

	for _, want := range []int{9, 8, 7, 6, 5} {
		balance, err := storage.Charge(ctx, 5005, 1, models.ReasonCharge+":"+models.ActionAIChat)
		require.NoError(t, err)
		assert.Equal(t, want, balance)
	}

	_, err := storage.SetBalance(ctx, userID, 0)
	require.NoError(t, err)

	_, err = storage.Charge(ctx, 5005, 1, models.ReasonCharge+":"+models.ActionAIChat)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))
	verify.VerifyBalance(t, userID, 0)
	verify.VerifyLedgerEntries(t, userID, 6)
}

func TestScenario_PendingBonusApprovedOnce(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	verify := NewTestVerification(storage)
	ctx := context.Background()

	referrerID := factory.CreateUser(t, 6001, "referrer", 0)
	referredID := factory.CreateUser(t, 6002, "friend", 0)
	referralID := factory.CreateReferral(t, referrerID, referredID)
	bonusID := factory.CreatePendingBonus(t, referrerID, referredID, referralID, 50)

	res, err := storage.ApproveRequest(ctx, models.KindReferralBonus, bonusID, 0, models.ApproveInput{})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Credited)
	assert.Equal(t, 50, res.NewBalance)
	assert.Equal(t, "friend", res.ReferredUsername)
	verify.VerifyStatus(t, "pending_bonuses", bonusID, models.StatusApproved)

	_, err = storage.ApproveRequest(ctx, models.KindReferralBonus, bonusID, 0, models.ApproveInput{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAlreadyProcessed))

	verify.VerifyBalance(t, referrerID, 50)
	verify.VerifyCount(t, `SELECT COUNT(*) FROM referrals WHERE id = $1 AND reward_given`, 1, referralID)
}
