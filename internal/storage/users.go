package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

const userColumns = `id, tg_id, COALESCE(username, ''), COALESCE(full_name, ''), COALESCE(email, ''),
	bonus_balance, is_banned, channel_bonus_given, channel_message_shown, referrer_id, created_at`

var errUserBanned = apperr.New(apperr.ErrForbidden, "Пользователь заблокирован")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		referrerID sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.TgID, &u.Username, &u.FullName, &u.Email,
		&u.BonusBalance, &u.IsBanned, &u.ChannelBonusGiven, &u.ChannelMessageShown, &referrerID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.ReferrerID = intPtr(referrerID)
	return &u, nil
}

// UpsertUser регистрирует пользователя или обновляет его имя при повторном обращении.
func (s *Storage) UpsertUser(ctx context.Context, in models.UpsertUser) (*models.User, error) {
	const op = "storage.UpsertUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (tg_id, username, full_name)
			  VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
			  ON CONFLICT (tg_id) DO UPDATE
			  SET username = COALESCE(EXCLUDED.username, users.username),
			      full_name = COALESCE(EXCLUDED.full_name, users.full_name)
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, in.TgID, in.Username, in.FullName))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByTgID возвращает пользователя по идентификатору Telegram.
func (s *Storage) GetUserByTgID(ctx context.Context, tgID int64) (*models.User, error) {
	const op = "storage.GetUserByTgID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE tg_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, tgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по внутреннему идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	const op = "storage.GetUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// MarkChannelMessageShown отмечает, что пользователю показано сообщение о канале.
func (s *Storage) MarkChannelMessageShown(ctx context.Context, tgID int64) error {
	const op = "storage.MarkChannelMessageShown"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE users SET channel_message_shown = TRUE WHERE tg_id = $1`, tgID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return nil
}

// ListAudience возвращает идентификаторы Telegram получателей рассылки.
func (s *Storage) ListAudience(ctx context.Context, audience string) ([]int64, error) {
	const op = "storage.ListAudience"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	hasActive := `EXISTS (SELECT 1 FROM subscriptions s WHERE s.user_id = u.id AND s.status = 'active' AND s.end_date > NOW())`
	var where string
	switch audience {
	case models.AudienceAll:
		where = "TRUE"
	case models.AudienceActive:
		where = hasActive
	case models.AudienceInactive:
		where = "NOT " + hasActive
	case models.AudienceWithReferrals:
		where = `EXISTS (SELECT 1 FROM referrals r WHERE r.referrer_id = u.id)`
	default:
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidArgument)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT u.tg_id FROM users u WHERE NOT u.is_banned AND `+where+` ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []int64
	for rows.Next() {
		var tgID int64
		if err := rows.Scan(&tgID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, tgID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ListUsers возвращает страницу пользователей, новые первыми.
// Поиск идет по логину и имени без учета регистра.
func (s *Storage) ListUsers(ctx context.Context, f models.UserFilter) (*models.UserPage, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	where := `($1::text = '' OR username ILIKE '%' || $1 || '%' OR full_name ILIKE '%' || $1 || '%')`
	page := &models.UserPage{Items: []*models.User{}}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+where, f.Search).
		Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+`
			ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, f.Search, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		page.Items = append(page.Items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return page, nil
}

// UserStats считает сводку по пользователям.
func (s *Storage) UserStats(ctx context.Context) (*models.UserStats, error) {
	const op = "storage.UserStats"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var st models.UserStats
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_banned),
			(SELECT COUNT(DISTINCT referrer_id) FROM referrals),
			COALESCE(SUM(bonus_balance), 0)
		FROM users`).Scan(&st.TotalUsers, &st.BannedUsers, &st.UsersWithReferrals, &st.TotalBonusDistributed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &st, nil
}

// SetUserBanned блокирует или разблокирует пользователя.
func (s *Storage) SetUserBanned(ctx context.Context, id int, banned bool) (*models.User, error) {
	const op = "storage.SetUserBanned"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx,
		`UPDATE users SET is_banned = $2 WHERE id = $1 RETURNING `+userColumns, id, banned))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// DeleteUser удаляет пользователя вместе с заявками, подписками и журналом токенов.
func (s *Storage) DeleteUser(ctx context.Context, id int) error {
	const op = "storage.DeleteUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOneRow(result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
