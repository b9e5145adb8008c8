package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

const requestColumns = `r.id, r.user_id, u.tg_id, COALESCE(u.username, ''), r.tariff_id, t.code, t.name,
	r.duration_id, d.months, r.status, r.subscription_type, r.group_id, COALESCE(r.user_email, ''),
	r.processed_by, r.processed_at, r.created_at`

const requestJoins = `FROM requests r
	JOIN users u ON u.id = r.user_id
	JOIN tariffs t ON t.id = r.tariff_id
	JOIN durations d ON d.id = r.duration_id`

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r           models.Request
		groupID     sql.NullInt64
		processedBy sql.NullInt64
		processedAt sql.NullTime
	)
	err := row.Scan(&r.ID, &r.UserID, &r.UserTgID, &r.Username, &r.TariffID, &r.TariffCode, &r.TariffName,
		&r.DurationID, &r.Months, &r.Status, &r.SubscriptionType, &groupID, &r.UserEmail,
		&processedBy, &processedAt, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.GroupID = intPtr(groupID)
	r.ProcessedBy = intPtr(processedBy)
	r.ProcessedAt = timePtr(processedAt)
	return &r, nil
}

// CreateRequest сохраняет заявку пользователя на подписку.
// Если тип подписки не указан, он берется из тарифа.
func (s *Storage) CreateRequest(ctx context.Context, in models.NewRequest) (*models.Request, error) {
	const op = "storage.CreateRequest"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var (
			userID int
			banned bool
		)
		err := tx.QueryRowContext(ctx, `SELECT id, is_banned FROM users WHERE tg_id = $1`, in.TgID).Scan(&userID, &banned)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrNotFound, "Пользователь не найден")
		}
		if err != nil {
			return err
		}
		if banned {
			return errUserBanned
		}

		var (
			tariffID   int
			tariffType string
		)
		err = tx.QueryRowContext(ctx,
			`SELECT id, subscription_type FROM tariffs WHERE code = $1`, in.TariffCode).Scan(&tariffID, &tariffType)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrInvalidArgument, "Неизвестный тариф")
		}
		if err != nil {
			return err
		}

		var durationID int
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM durations WHERE months = $1`, in.DurationMonths).Scan(&durationID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrInvalidArgument, "Неизвестная длительность подписки")
		}
		if err != nil {
			return err
		}

		subscriptionType := in.SubscriptionType
		if subscriptionType == "" {
			subscriptionType = tariffType
		}

		// Группа имеет смысл только для групповой подписки.
		groupID := in.GroupID
		if subscriptionType != models.SubscriptionTypeGroup {
			groupID = nil
		}
		if groupID != nil {
			if err := ensureGroupExists(ctx, tx, *groupID); err != nil {
				return err
			}
		}

		var email sql.NullString
		if in.UserEmail != "" {
			email = sql.NullString{String: in.UserEmail, Valid: true}
		}
		return tx.QueryRowContext(ctx, `INSERT INTO requests
				(user_id, tariff_id, duration_id, subscription_type, group_id, user_email)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
			userID, tariffID, durationID, subscriptionType, groupID, email).Scan(&id)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r, err := scanRequest(s.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` `+requestJoins+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// ListRequests возвращает заявки на подписку, новые первыми. Пустой status означает все статусы.
func (s *Storage) ListRequests(ctx context.Context, status string) ([]models.Request, error) {
	const op = "storage.ListRequests"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + requestColumns + ` ` + requestJoins + `
			  WHERE ($1::text = '' OR r.status = $1::text)
			  ORDER BY r.created_at DESC, r.id DESC`
	rows, err := s.DB.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ApproveSubscriptionRequest одобряет заявку на подписку в одной транзакции: создает
// активную подписку, отмечает заявку одобренной и активирует реферала. При первой
// активации реферала пригласившему создается заявка на бонус размером referralBonus.
func (s *Storage) ApproveSubscriptionRequest(ctx context.Context, requestID, adminID int, groupID *int,
	referralBonus int, now time.Time) (*models.ApprovedSubscription, error) {
	const op = "storage.ApproveSubscriptionRequest"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res := &models.ApprovedSubscription{RequestID: requestID}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var (
			userID, tariffID, durationID, months int
			status, subscriptionType             string
			storedGroup                          sql.NullInt64
		)
		err := tx.QueryRowContext(ctx, `SELECT r.user_id, r.tariff_id, r.duration_id, d.months, r.status,
					r.subscription_type, r.group_id, t.name, u.tg_id
				FROM requests r
				JOIN durations d ON d.id = r.duration_id
				JOIN tariffs t ON t.id = r.tariff_id
				JOIN users u ON u.id = r.user_id
				WHERE r.id = $1
				FOR UPDATE OF r`, requestID).
			Scan(&userID, &tariffID, &durationID, &months, &status, &subscriptionType, &storedGroup,
				&res.TariffName, &res.UserTgID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrNotFound, "Заявка не найдена")
		}
		if err != nil {
			return err
		}
		if status != models.StatusPending {
			return apperr.New(apperr.ErrAlreadyProcessed, "Заявка уже обработана")
		}

		// Индивидуальной подписке группа не назначается, даже если ее передали.
		var group *int
		if subscriptionType == models.SubscriptionTypeGroup {
			group = groupID
			if group == nil {
				group = intPtr(storedGroup)
			}
			if group == nil {
				return apperr.New(apperr.ErrInvalidArgument, "Для групповой подписки необходимо выбрать группу")
			}
			if err := ensureGroupExists(ctx, tx, *group); err != nil {
				return err
			}
		}
		res.GroupID = group
		res.EndDate = now.AddDate(0, 0, models.DaysPerMonth*months)

		err = tx.QueryRowContext(ctx, `INSERT INTO subscriptions
				(user_id, tariff_id, duration_id, request_id, status, group_id, start_date, end_date)
				VALUES ($1, $2, $3, $4, 'active', $5, $6, $7)
				RETURNING id`,
			userID, tariffID, durationID, requestID, group, now, res.EndDate).Scan(&res.SubscriptionID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE requests
				SET status = 'approved', group_id = $2, processed_by = $3, processed_at = $4
				WHERE id = $1`, requestID, group, nullableID(adminID), now)
		if err != nil {
			return err
		}

		var referralID, referrerID int
		err = tx.QueryRowContext(ctx, `UPDATE referrals
				SET activated = TRUE, activated_at = $2
				WHERE referred_id = $1 AND activated = FALSE
				RETURNING id, referrer_id`, userID, now).Scan(&referralID, &referrerID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		var bonusID int
		err = tx.QueryRowContext(ctx, `INSERT INTO pending_bonuses
				(user_id, referral_id, referred_id, request_id, bonus_amount)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`, referrerID, referralID, userID, requestID, referralBonus).Scan(&bonusID)
		if err != nil {
			return err
		}
		res.PendingBonusID = &bonusID
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// RejectSubscriptionRequest отклоняет заявку на подписку.
func (s *Storage) RejectSubscriptionRequest(ctx context.Context, requestID, adminID int) (*models.RejectedRequest, error) {
	const op = "storage.RejectSubscriptionRequest"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res := &models.RejectedRequest{RequestID: requestID}
	err := s.DB.QueryRowContext(ctx, `UPDATE requests r
			SET status = 'rejected', processed_by = $2, processed_at = NOW()
			FROM users u, tariffs t
			WHERE r.id = $1 AND r.status = 'pending' AND u.id = r.user_id AND t.id = r.tariff_id
			RETURNING u.tg_id, t.name`, requestID, nullableID(adminID)).Scan(&res.UserTgID, &res.TariffName)
	if errors.Is(err, sql.ErrNoRows) {
		err = missingOrProcessed(ctx, s.DB, "requests", requestID)
		if errors.Is(err, apperr.ErrNotFound) {
			err = apperr.New(apperr.ErrNotFound, "Заявка не найдена")
		} else if errors.Is(err, apperr.ErrAlreadyProcessed) {
			err = apperr.New(apperr.ErrAlreadyProcessed, "Заявка уже обработана")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

const subscriptionColumns = `s.id, s.user_id, u.tg_id, COALESCE(u.username, ''), t.code, t.name, d.months,
	s.request_id, s.status, s.group_id, s.start_date, s.end_date, s.created_at`

const subscriptionJoins = `FROM subscriptions s
	JOIN users u ON u.id = s.user_id
	JOIN tariffs t ON t.id = s.tariff_id
	JOIN durations d ON d.id = s.duration_id`

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub       models.Subscription
		requestID sql.NullInt64
		groupID   sql.NullInt64
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.UserTgID, &sub.Username, &sub.TariffCode, &sub.TariffName,
		&sub.Months, &requestID, &sub.Status, &groupID, &sub.StartDate, &sub.EndDate, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	sub.RequestID = intPtr(requestID)
	sub.GroupID = intPtr(groupID)
	return &sub, nil
}

// ListSubscriptions возвращает все подписки, новые первыми.
func (s *Storage) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+subscriptionColumns+` `+subscriptionJoins+`
			ORDER BY s.created_at DESC, s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ExtendSubscription продлевает подписку на days дней. Истекшая подписка продлевается
// от now, действующая от даты окончания. Подписка становится активной.
func (s *Storage) ExtendSubscription(ctx context.Context, id, days int, now time.Time) (*models.Subscription, error) {
	const op = "storage.ExtendSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	interval := fmt.Sprintf("%d days", days)
	result, err := s.DB.ExecContext(ctx, `UPDATE subscriptions
			SET end_date = CASE
			        WHEN end_date < $2 OR status = 'expired' THEN $2::timestamptz + $3::interval
			        ELSE end_date + $3::interval
			    END,
			    status = 'active'
			WHERE id = $1`, id, now, interval)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOneRow(result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.getSubscription(ctx, op, id)
}

// RevokeSubscription досрочно завершает подписку.
func (s *Storage) RevokeSubscription(ctx context.Context, id int, now time.Time) (*models.Subscription, error) {
	const op = "storage.RevokeSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET status = 'expired', end_date = $2 WHERE id = $1`, id, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOneRow(result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.getSubscription(ctx, op, id)
}

func (s *Storage) getSubscription(ctx context.Context, op string, id int) (*models.Subscription, error) {
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` `+subscriptionJoins+` WHERE s.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ActiveSubscription возвращает первую неистекшую подписку пользователя.
func (s *Storage) ActiveSubscription(ctx context.Context, tgID int64, now time.Time) (*models.Subscription, error) {
	const op = "storage.ActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` `+subscriptionJoins+`
			WHERE u.tg_id = $1 AND s.status = 'active' AND s.end_date > $2
			ORDER BY s.id
			LIMIT 1`, tgID, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// ExpireSubscriptions переводит в истекшие активные подписки с прошедшей датой окончания.
func (s *Storage) ExpireSubscriptions(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.ExpireSubscriptions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE subscriptions SET status = 'expired' WHERE status = 'active' AND end_date < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// FindExpiringSubscriptions возвращает активные подписки, заканчивающиеся в интервале (from, to].
func (s *Storage) FindExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]models.ExpiringSubscription, error) {
	const op = "storage.FindExpiringSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT s.id, u.tg_id, t.name, s.end_date
			FROM subscriptions s
			JOIN users u ON u.id = s.user_id
			JOIN tariffs t ON t.id = s.tariff_id
			WHERE s.status = 'active' AND s.end_date > $1 AND s.end_date <= $2
			ORDER BY s.end_date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []models.ExpiringSubscription
	for rows.Next() {
		var e models.ExpiringSubscription
		if err := rows.Scan(&e.SubscriptionID, &e.UserTgID, &e.TariffName, &e.EndDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func ensureGroupExists(ctx context.Context, tx *sql.Tx, groupID int) error {
	var exists bool
	err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM access_groups WHERE id = $1)`, groupID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.New(apperr.ErrNotFound, "Группа не найдена")
	}
	return nil
}
