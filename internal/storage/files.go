package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// ListGroups возвращает все группы доступа.
func (s *Storage) ListGroups(ctx context.Context) ([]models.AccessGroup, error) {
	const op = "storage.ListGroups"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, created_at FROM access_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []models.AccessGroup
	for rows.Next() {
		var g models.AccessGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// CreateGroup создает группу доступа с уникальным названием.
func (s *Storage) CreateGroup(ctx context.Context, name string) (*models.AccessGroup, error) {
	const op = "storage.CreateGroup"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var g models.AccessGroup
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO access_groups (name) VALUES ($1) RETURNING id, name, created_at`, name).
		Scan(&g.ID, &g.Name, &g.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrInvalidArgument, "Группа с таким названием уже существует"))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &g, nil
}

// RenameGroup меняет название группы.
func (s *Storage) RenameGroup(ctx context.Context, id int, name string) (*models.AccessGroup, error) {
	const op = "storage.RenameGroup"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var g models.AccessGroup
	err := s.DB.QueryRowContext(ctx,
		`UPDATE access_groups SET name = $2 WHERE id = $1 RETURNING id, name, created_at`, id, name).
		Scan(&g.ID, &g.Name, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrNotFound, "Группа не найдена"))
	}
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrInvalidArgument, "Группа с таким названием уже существует"))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &g, nil
}

// DeleteGroup удаляет группу вместе с ее файлами. Группу с подписками удалить нельзя.
func (s *Storage) DeleteGroup(ctx context.Context, id int) error {
	const op = "storage.DeleteGroup"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var locked int
		err := tx.QueryRowContext(ctx, `SELECT id FROM access_groups WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.ErrNotFound, "Группа не найдена")
		}
		if err != nil {
			return err
		}

		var subscriptions int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions WHERE group_id = $1`, id).Scan(&subscriptions)
		if err != nil {
			return err
		}
		if subscriptions > 0 {
			return apperr.New(apperr.ErrInvalidArgument,
				fmt.Sprintf("Нельзя удалить группу: к ней привязано подписок: %d", subscriptions))
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM access_groups WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

const fileColumns = `id, group_id, login, password, path, last_updated, locked_until, created_at`

func scanFile(row rowScanner) (*models.AccessFile, error) {
	var (
		f           models.AccessFile
		lastUpdated sql.NullTime
		lockedUntil sql.NullTime
	)
	err := row.Scan(&f.ID, &f.GroupID, &f.Login, &f.Password, &f.Path, &lastUpdated, &lockedUntil, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.LastUpdated = timePtr(lastUpdated)
	f.LockedUntil = timePtr(lockedUntil)
	return &f, nil
}

// CreateFile добавляет файл доступа. Если groupID не задан, файл попадает в группу
// groupName, которая создается при отсутствии.
func (s *Storage) CreateFile(ctx context.Context, groupID *int, groupName, login, password, path string) (*models.AccessFile, error) {
	const op = "storage.CreateFile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var f *models.AccessFile
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var gid int
		if groupID != nil {
			if err := ensureGroupExists(ctx, tx, *groupID); err != nil {
				return err
			}
			gid = *groupID
		} else {
			err := tx.QueryRowContext(ctx, `INSERT INTO access_groups (name) VALUES ($1)
					ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
					RETURNING id`, groupName).Scan(&gid)
			if err != nil {
				return err
			}
		}

		var err error
		f, err = scanFile(tx.QueryRowContext(ctx, `INSERT INTO access_files (group_id, login, password, path)
				VALUES ($1, $2, $3, $4)
				RETURNING `+fileColumns, gid, login, password, path))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// GetFile возвращает файл доступа по ID.
func (s *Storage) GetFile(ctx context.Context, id int) (*models.AccessFile, error) {
	const op = "storage.GetFile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	f, err := scanFile(s.DB.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM access_files WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrNotFound, "Файл не найден"))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// ListFilesByGroup возвращает файлы группы, начиная с давно не обновлявшихся.
func (s *Storage) ListFilesByGroup(ctx context.Context, groupID int) ([]models.AccessFile, error) {
	const op = "storage.ListFilesByGroup"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+fileColumns+` FROM access_files
			WHERE group_id = $1
			ORDER BY last_updated ASC NULLS FIRST, id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []models.AccessFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// LockFile продлевает рекомендательную аренду файла до until.
func (s *Storage) LockFile(ctx context.Context, id int, until time.Time) error {
	const op = "storage.LockFile"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE access_files SET locked_until = $2 WHERE id = $1`, id, until)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOneRow(result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkFileRefreshed фиксирует обновление файла по пути path и выставляет аренду до lockedUntil.
func (s *Storage) MarkFileRefreshed(ctx context.Context, id int, path string, updated, lockedUntil time.Time) error {
	const op = "storage.MarkFileRefreshed"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE access_files SET path = $2, last_updated = $3, locked_until = $4 WHERE id = $1`,
		id, path, updated, lockedUntil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOneRow(result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ActiveGroupForUser возвращает группу первой неистекшей подписки пользователя, у которой есть группа.
func (s *Storage) ActiveGroupForUser(ctx context.Context, tgID int64, now time.Time) (int, error) {
	const op = "storage.ActiveGroupForUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var groupID int
	err := s.DB.QueryRowContext(ctx, `SELECT s.group_id
			FROM subscriptions s
			JOIN users u ON u.id = s.user_id
			WHERE u.tg_id = $1 AND s.status = 'active' AND s.end_date > $2 AND s.group_id IS NOT NULL
			ORDER BY s.id
			LIMIT 1`, tgID, now).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrNotFound, "Активная подписка с группой не найдена"))
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return groupID, nil
}

// GroupSubscribers возвращает идентификаторы Telegram пользователей с активной подпиской на группу.
func (s *Storage) GroupSubscribers(ctx context.Context, groupID int, now time.Time) ([]int64, error) {
	const op = "storage.GroupSubscribers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT DISTINCT u.tg_id
			FROM subscriptions s
			JOIN users u ON u.id = s.user_id
			WHERE s.group_id = $1 AND s.status = 'active' AND s.end_date > $2`, groupID, now)
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
