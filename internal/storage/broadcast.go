package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Uz11ps/markethelper/internal/models"
)

// CreateBroadcast сохраняет рассылку в статусе queued.
func (s *Storage) CreateBroadcast(ctx context.Context, message, audience string, total int) (int, error) {
	const op = "storage.CreateBroadcast"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var id int
	err := s.DB.QueryRowContext(ctx, `INSERT INTO broadcast_messages (message, audience, total_count, status)
			VALUES ($1, $2, $3, $4)
			RETURNING id`, message, audience, total, models.BroadcastQueued).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// FinishBroadcast записывает итоги рассылки.
func (s *Storage) FinishBroadcast(ctx context.Context, id int, result models.BroadcastResult) error {
	const op = "storage.FinishBroadcast"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE broadcast_messages
			SET sent_count = $2, failed_count = $3, status = $4, finished_at = NOW()
			WHERE id = $1`, id, result.SuccessCount, result.FailedCount, models.BroadcastFinished)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// BroadcastStats возвращает сводную статистику и последние limit рассылок.
func (s *Storage) BroadcastStats(ctx context.Context, limit int) (*models.BroadcastStats, error) {
	const op = "storage.BroadcastStats"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	stats := &models.BroadcastStats{}
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(sent_count), 0), COALESCE(SUM(failed_count), 0)
			FROM broadcast_messages`).Scan(&stats.TotalBroadcasts, &stats.TotalSent, &stats.TotalFailed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	recent, err := s.listBroadcasts(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	stats.Recent = recent
	return stats, nil
}

// BroadcastHistory возвращает рассылки от новых к старым.
func (s *Storage) BroadcastHistory(ctx context.Context, limit, offset int) ([]models.BroadcastMessage, error) {
	const op = "storage.BroadcastHistory"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.listBroadcasts(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (s *Storage) listBroadcasts(ctx context.Context, limit, offset int) ([]models.BroadcastMessage, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, message, audience, total_count, sent_count, failed_count,
				status, created_at, finished_at
			FROM broadcast_messages
			ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.BroadcastMessage{}
	for rows.Next() {
		var (
			m          models.BroadcastMessage
			finishedAt sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.Message, &m.Audience, &m.TotalCount, &m.SentCount, &m.FailedCount,
			&m.Status, &m.CreatedAt, &finishedAt); err != nil {
			return nil, err
		}
		m.FinishedAt = timePtr(finishedAt)
		res = append(res, m)
	}
	return res, rows.Err()
}
