// Package admin отвечает за вход администраторов панели, создание первой учетной записи
// и управление учетными записями администраторов.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/lib/jwt"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/models"
)

// Repository описывает контракт для работы с администраторами в базе данных.
type Repository interface {
	// GetAdminByUsername возвращает администратора по логину или ErrNotFound.
	GetAdminByUsername(ctx context.Context, username string) (*models.Admin, error)
	// CreateAdmin создает администратора, если логин свободен.
	CreateAdmin(ctx context.Context, username, passwordHash string, superAdmin bool) (bool, error)
	UpdateLastLogin(ctx context.Context, id int, at time.Time) error
	GetAdminByID(ctx context.Context, id int) (*models.Admin, error)
	ListAdmins(ctx context.Context) ([]*models.Admin, error)
	// InsertAdmin возвращает ErrConflict, если логин занят.
	InsertAdmin(ctx context.Context, in models.NewAdmin, passwordHash string) (*models.Admin, error)
	UpdateAdmin(ctx context.Context, id int, in models.AdminUpdate) (*models.Admin, error)
	DeleteAdmin(ctx context.Context, id int) error
}

// LoginResult токен доступа и данные администратора.
type LoginResult struct {
	Token string        `json:"access_token"`
	Admin *models.Admin `json:"admin"`
}

// Service проверяет учетные данные и выпускает JWT.
type Service struct {
	repo     Repository
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, jwtMaker jwt.Maker, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

var errInvalidCredentials = apperr.New(apperr.ErrUnauthenticated, "Неверный логин или пароль")

// Login проверяет пароль активного администратора и выпускает токен.
// Неизвестный логин и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, username, rawPassword string) (*LoginResult, error) {
	const op = "services.admin.Login"
	log := s.log.With(slog.String("op", op), slog.String("username", username))

	a, err := s.repo.GetAdminByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Warn("unknown admin")
		return nil, fmt.Errorf("%s: %w", op, errInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := checkPassword(a.PasswordHash, rawPassword); err != nil {
		log.Warn("wrong password")
		return nil, fmt.Errorf("%s: %w", op, errInvalidCredentials)
	}
	if !a.IsActive {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrUnauthenticated, "Учетная запись отключена"))
	}

	token, err := s.jwtMaker.GenerateToken(a.ID, a.Username, a.IsSuperAdmin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now()
	if err := s.repo.UpdateLastLogin(ctx, a.ID, now); err != nil {
		log.Error("failed to update last login", sl.Err(err))
	} else {
		a.LastLogin = &now
	}
	log.Info("admin logged in", slog.Int("admin_id", a.ID))
	return &LoginResult{Token: token, Admin: a}, nil
}

// EnsureBootstrapAdmin создает суперадминистратора из конфигурации, если его еще нет.
// Пустой логин или пароль отключают создание.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, username, rawPassword string) error {
	const op = "services.admin.EnsureBootstrapAdmin"
	if username == "" || rawPassword == "" {
		return nil
	}

	hash, err := hashPassword(rawPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	created, err := s.repo.CreateAdmin(ctx, username, hash, true)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if created {
		s.log.Info("bootstrap admin created", slog.String("op", op), slog.String("username", username))
	}
	return nil
}
