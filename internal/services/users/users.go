// Package users регистрирует пользователей бота и дает администраторам
// просматривать, блокировать и удалять их.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Repository определяет методы хранилища пользователей.
type Repository interface {
	UpsertUser(ctx context.Context, in models.UpsertUser) (*models.User, error)
	GetUserByTgID(ctx context.Context, tgID int64) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	ListUsers(ctx context.Context, f models.UserFilter) (*models.UserPage, error)
	UserStats(ctx context.Context) (*models.UserStats, error)
	SetUserBanned(ctx context.Context, id int, banned bool) (*models.User, error)
	DeleteUser(ctx context.Context, id int) error
}

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

// Service реализует регистрацию пользователей.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Register создает пользователя при первом обращении к боту или обновляет его имя.
func (s *Service) Register(ctx context.Context, in models.UpsertUser) (*models.User, error) {
	const op = "services.users.Register"
	if in.TgID == 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrInvalidArgument, "Не указан идентификатор Telegram"))
	}
	u, err := s.repo.UpsertUser(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Debug("user registered", slog.String("op", op), slog.Int64("tg_id", u.TgID), slog.Int("user_id", u.ID))
	return u, nil
}

// Get возвращает пользователя по идентификатору Telegram.
func (s *Service) Get(ctx context.Context, tgID int64) (*models.User, error) {
	const op = "services.users.Get"
	u, err := s.repo.GetUserByTgID(ctx, tgID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Пользователь не найден"))
	}
	return u, nil
}

// List возвращает страницу пользователей. Нулевой лимит заменяется значением по умолчанию.
func (s *Service) List(ctx context.Context, f models.UserFilter) (*models.UserPage, error) {
	const op = "services.users.List"
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit < 0 || f.Limit > maxPageSize || f.Offset < 0 {
		return nil, fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, fmt.Sprintf("Лимит должен быть от 1 до %d, смещение неотрицательным", maxPageSize)))
	}
	f.Search = strings.TrimSpace(f.Search)
	page, err := s.repo.ListUsers(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return page, nil
}

// Stats возвращает сводку по пользователям.
func (s *Service) Stats(ctx context.Context) (*models.UserStats, error) {
	const op = "services.users.Stats"
	st, err := s.repo.UserStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return st, nil
}

// Details возвращает пользователя по внутреннему идентификатору.
func (s *Service) Details(ctx context.Context, id int) (*models.User, error) {
	const op = "services.users.Details"
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Пользователь не найден"))
	}
	return u, nil
}

// SetBanned блокирует или разблокирует пользователя. Заблокированный пользователь
// не тратит токены, не подает заявки и не получает рассылки.
func (s *Service) SetBanned(ctx context.Context, id int, banned bool) (*models.User, error) {
	const op = "services.users.SetBanned"
	u, err := s.repo.SetUserBanned(ctx, id, banned)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Пользователь не найден"))
	}
	s.log.Info("user ban changed", slog.String("op", op), slog.Int("user_id", id), slog.Bool("banned", banned))
	return u, nil
}

// Delete удаляет пользователя со всеми его данными.
func (s *Service) Delete(ctx context.Context, id int) error {
	const op = "services.users.Delete"
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Пользователь не найден"))
	}
	s.log.Info("user deleted", slog.String("op", op), slog.Int("user_id", id))
	return nil
}
