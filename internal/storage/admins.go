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

const adminColumns = `id, username, password_hash, COALESCE(full_name, ''), COALESCE(email, ''),
	is_active, is_super_admin, created_at, last_login`

func scanAdmin(row rowScanner) (*models.Admin, error) {
	var (
		a         models.Admin
		lastLogin sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.FullName, &a.Email, &a.IsActive, &a.IsSuperAdmin,
		&a.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	a.LastLogin = timePtr(lastLogin)
	return &a, nil
}

// GetAdminByUsername возвращает администратора по логину.
func (s *Storage) GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error) {
	const op = "storage.GetAdminByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	a, err := scanAdmin(s.DB.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE username = $1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// CreateAdmin создает администратора, если логин свободен. Возвращает false, если логин занят.
func (s *Storage) CreateAdmin(ctx context.Context, username, passwordHash string, superAdmin bool) (bool, error) {
	const op = "storage.CreateAdmin"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `INSERT INTO admins (username, password_hash, is_super_admin)
			VALUES ($1, $2, $3)
			ON CONFLICT (username) DO NOTHING`, username, passwordHash, superAdmin)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// UpdateLastLogin фиксирует время входа администратора.
func (s *Storage) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	const op = "storage.UpdateLastLogin"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	if _, err := s.DB.ExecContext(ctx, `UPDATE admins SET last_login = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAdminByID возвращает администратора по идентификатору.
func (s *Storage) GetAdminByID(ctx context.Context, id int) (*models.Admin, error) {
	const op = "storage.GetAdminByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	a, err := scanAdmin(s.DB.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// ListAdmins возвращает всех администраторов в порядке создания.
func (s *Storage) ListAdmins(ctx context.Context) ([]*models.Admin, error) {
	const op = "storage.ListAdmins"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+adminColumns+` FROM admins ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	res := []*models.Admin{}
	for rows.Next() {
		a, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// InsertAdmin регистрирует администратора. Занятый логин дает ErrConflict.
func (s *Storage) InsertAdmin(ctx context.Context, in models.NewAdmin, passwordHash string) (*models.Admin, error) {
	const op = "storage.InsertAdmin"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	a, err := scanAdmin(s.DB.QueryRowContext(ctx, `INSERT INTO admins (username, password_hash, full_name, email, is_super_admin)
			VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
			ON CONFLICT (username) DO NOTHING
			RETURNING `+adminColumns, in.Username, passwordHash, in.FullName, in.Email, in.IsSuperAdmin))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrConflict, "Логин уже занят"))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// UpdateAdmin меняет переданные поля учетной записи. Пароль сохраняется только в виде хеша.
func (s *Storage) UpdateAdmin(ctx context.Context, id int, in models.AdminUpdate) (*models.Admin, error) {
	const op = "storage.UpdateAdmin"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	a, err := scanAdmin(s.DB.QueryRowContext(ctx, `UPDATE admins SET
			full_name = COALESCE($2, full_name),
			email = COALESCE($3, email),
			password_hash = COALESCE($4, password_hash),
			is_active = COALESCE($5, is_active)
		WHERE id = $1
		RETURNING `+adminColumns, id, in.FullName, in.Email, in.PasswordHash, in.IsActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// DeleteAdmin удаляет учетную запись. Обработанные ею заявки сохраняются без автора.
func (s *Storage) DeleteAdmin(ctx context.Context, id int) error {
	const op = "storage.DeleteAdmin"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM admins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOneRow(result); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
