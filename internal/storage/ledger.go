package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Charge списывает cost токенов с баланса пользователя и возвращает новый баланс.
// Строка пользователя блокируется на время транзакции, поэтому баланс не уходит в минус
// при параллельных списаниях. Заблокированному пользователю списание запрещено.
// При нулевой стоимости возвращается текущий баланс без записи.
func (s *Storage) Charge(ctx context.Context, tgID int64, cost int, reason string) (int, error) {
	const op = "storage.Charge"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var balance int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var (
			userID, current int
			banned          bool
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, bonus_balance, is_banned FROM users WHERE tg_id = $1 FOR UPDATE`, tgID).
			Scan(&userID, &current, &banned)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}
		if banned {
			return errUserBanned
		}
		if cost == 0 {
			balance = current
			return nil
		}
		if current < cost {
			return apperr.ErrInsufficientFunds
		}

		balance, err = applyDelta(ctx, tx, userID, -cost, reason)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// Credit начисляет amount токенов пользователю и возвращает новый баланс.
func (s *Storage) Credit(ctx context.Context, userID, amount int, reason string) (int, error) {
	const op = "storage.Credit"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var balance int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		balance, err = applyDelta(ctx, tx, userID, amount, reason)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// SetBalance устанавливает баланс пользователя администратором.
func (s *Storage) SetBalance(ctx context.Context, userID, balance int) (int, error) {
	const op = "storage.SetBalance"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var current int
		err := tx.QueryRowContext(ctx,
			`SELECT bonus_balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = applyDelta(ctx, tx, userID, balance-current, models.ReasonAdminSet)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// Balance возвращает текущий баланс пользователя.
func (s *Storage) Balance(ctx context.Context, tgID int64) (int, error) {
	const op = "storage.Balance"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var balance int
	err := s.DB.QueryRowContext(ctx, `SELECT bonus_balance FROM users WHERE tg_id = $1`, tgID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// History возвращает последние записи журнала баланса пользователя.
func (s *Storage) History(ctx context.Context, tgID int64, limit int) ([]models.LedgerEntry, error) {
	const op = "storage.History"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT l.id, l.user_id, l.delta, l.balance_after, l.reason, l.created_at
			  FROM ledger_entries l
			  JOIN users u ON u.id = l.user_id
			  WHERE u.tg_id = $1
			  ORDER BY l.id DESC
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, tgID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.BalanceAfter, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// applyDelta меняет баланс внутри транзакции и пишет запись в журнал.
// UPDATE берет блокировку строки пользователя до конца транзакции.
func applyDelta(ctx context.Context, tx *sql.Tx, userID, delta int, reason string) (int, error) {
	var balance int
	err := tx.QueryRowContext(ctx,
		`UPDATE users SET bonus_balance = bonus_balance + $2 WHERE id = $1 RETURNING bonus_balance`,
		userID, delta).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if delta == 0 {
		return balance, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (user_id, delta, balance_after, reason) VALUES ($1, $2, $3, $4)`,
		userID, delta, balance, reason)
	if err != nil {
		return 0, err
	}
	return balance, nil
}
