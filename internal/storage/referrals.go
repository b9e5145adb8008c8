package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

// BindReferral привязывает приглашенного пользователя к пригласившему.
// Возвращает false, если приглашенный уже был привязан ранее.
func (s *Storage) BindReferral(ctx context.Context, referredTg, referrerTg int64) (bool, error) {
	const op = "storage.BindReferral"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var bound bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var (
			referredID int
			current    sql.NullInt64
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, referrer_id FROM users WHERE tg_id = $1 FOR UPDATE`, referredTg).Scan(&referredID, &current)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrNotFound, "Пользователь не найден")
		}
		if err != nil {
			return err
		}

		var referrerID int
		err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE tg_id = $1`, referrerTg).Scan(&referrerID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrNotFound, "Пользователь не найден")
		}
		if err != nil {
			return err
		}

		if referredID == referrerID {
			return apperr.New(apperr.ErrInvalidArgument, "Нельзя пригласить самого себя")
		}
		if current.Valid {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET referrer_id = $2 WHERE id = $1`, referredID, referrerID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `INSERT INTO referrals (referrer_id, referred_id)
				VALUES ($1, $2)
				ON CONFLICT (referred_id) DO NOTHING`, referrerID, referredID)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		bound = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return bound, nil
}

// ReferralCounts возвращает общее количество рефералов пользователя и количество активированных.
func (s *Storage) ReferralCounts(ctx context.Context, userID int) (models.ReferralCounts, error) {
	const op = "storage.ReferralCounts"
	select {
	case <-ctx.Done():
		return models.ReferralCounts{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var c models.ReferralCounts
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE activated)
			FROM referrals WHERE referrer_id = $1`, userID).Scan(&c.Total, &c.Active)
	if err != nil {
		return models.ReferralCounts{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// PayoutTotals возвращает суммы выплат пользователя в ожидании и одобренных.
func (s *Storage) PayoutTotals(ctx context.Context, userID int) (models.PayoutTotals, error) {
	const op = "storage.PayoutTotals"
	select {
	case <-ctx.Done():
		return models.PayoutTotals{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var t models.PayoutTotals
	err := s.DB.QueryRowContext(ctx, `SELECT
				COALESCE(SUM(amount_rub) FILTER (WHERE status = 'pending'), 0),
				COALESCE(SUM(referral_count) FILTER (WHERE status = 'pending'), 0),
				COALESCE(SUM(amount_rub) FILTER (WHERE status = 'approved'), 0)
			FROM referral_payouts WHERE user_id = $1`, userID).Scan(&t.PendingRub, &t.PendingCount, &t.ApprovedRub)
	if err != nil {
		return models.PayoutTotals{}, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// ListReferrals возвращает приглашенных пользователем.
func (s *Storage) ListReferrals(ctx context.Context, userID int) ([]models.ReferralEntry, error) {
	const op = "storage.ListReferrals"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT COALESCE(u.username, ''), COALESCE(u.full_name, ''), r.activated
			FROM referrals r
			JOIN users u ON u.id = r.referred_id
			WHERE r.referrer_id = $1
			ORDER BY r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []models.ReferralEntry
	for rows.Next() {
		var e models.ReferralEntry
		if err := rows.Scan(&e.Username, &e.FullName, &e.Activated); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
