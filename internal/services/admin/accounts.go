package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
)

var errNotSuperAdmin = apperr.New(apperr.ErrForbidden, "Действие доступно только суперадминистратору")

// actor загружает администратора, от имени которого выполняется запрос.
// Права и активность берутся из базы, а не из токена.
func (s *Service) actor(ctx context.Context, actorID int) (*models.Admin, error) {
	a, err := s.repo.GetAdminByID(ctx, actorID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.ErrUnauthenticated, "Учетная запись не найдена")
	}
	if err != nil {
		return nil, err
	}
	if !a.IsActive {
		return nil, apperr.New(apperr.ErrUnauthenticated, "Учетная запись отключена")
	}
	return a, nil
}

func (s *Service) superActor(ctx context.Context, actorID int) (*models.Admin, error) {
	a, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !a.IsSuperAdmin {
		return nil, errNotSuperAdmin
	}
	return a, nil
}

// Me возвращает учетную запись текущего администратора.
func (s *Service) Me(ctx context.Context, actorID int) (*models.Admin, error) {
	const op = "services.admin.Me"
	a, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return a, nil
}

// Register создает администратора. Доступно только суперадминистратору.
func (s *Service) Register(ctx context.Context, actorID int, in models.NewAdmin) (*models.Admin, error) {
	const op = "services.admin.Register"
	if _, err := s.superActor(ctx, actorID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a, err := s.repo.InsertAdmin(ctx, in, hash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("admin registered", slog.String("op", op),
		slog.Int("actor_id", actorID), slog.Int("admin_id", a.ID), slog.Bool("super", a.IsSuperAdmin))
	return a, nil
}

// List возвращает всех администраторов. Доступно только суперадминистратору.
func (s *Service) List(ctx context.Context, actorID int) ([]*models.Admin, error) {
	const op = "services.admin.List"
	if _, err := s.superActor(ctx, actorID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	admins, err := s.repo.ListAdmins(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return admins, nil
}

// Get возвращает учетную запись. Обычный администратор видит только свою.
func (s *Service) Get(ctx context.Context, actorID, id int) (*models.Admin, error) {
	const op = "services.admin.Get"
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if actor.ID == id {
		return actor, nil
	}
	if !actor.IsSuperAdmin {
		return nil, fmt.Errorf("%s: %w", op, errNotSuperAdmin)
	}
	a, err := s.repo.GetAdminByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Администратор не найден"))
	}
	return a, nil
}

// Update меняет учетную запись. Свою запись может менять любой администратор,
// чужую только суперадминистратор. Флаг активности меняет только суперадминистратор,
// и отключить самого себя нельзя.
func (s *Service) Update(ctx context.Context, actorID, id int, in models.AdminUpdate) (*models.Admin, error) {
	const op = "services.admin.Update"
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if actor.ID != id && !actor.IsSuperAdmin {
		return nil, fmt.Errorf("%s: %w", op, errNotSuperAdmin)
	}
	if in.IsActive != nil {
		if !actor.IsSuperAdmin {
			return nil, fmt.Errorf("%s: %w", op, errNotSuperAdmin)
		}
		if actor.ID == id && !*in.IsActive {
			return nil, fmt.Errorf("%s: %w", op,
				apperr.New(apperr.ErrInvalidArgument, "Нельзя отключить собственную учетную запись"))
		}
	}

	in.PasswordHash = nil
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		in.PasswordHash = &hash
		in.Password = nil
	}

	a, err := s.repo.UpdateAdmin(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Администратор не найден"))
	}
	s.log.Info("admin updated", slog.String("op", op), slog.Int("actor_id", actorID), slog.Int("admin_id", id),
		slog.Bool("password_changed", in.PasswordHash != nil))
	return a, nil
}

// Delete удаляет администратора. Доступно только суперадминистратору, себя удалить нельзя.
func (s *Service) Delete(ctx context.Context, actorID, id int) error {
	const op = "services.admin.Delete"
	if _, err := s.superActor(ctx, actorID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if actorID == id {
		return fmt.Errorf("%s: %w", op,
			apperr.New(apperr.ErrInvalidArgument, "Нельзя удалить собственную учетную запись"))
	}
	if err := s.repo.DeleteAdmin(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Администратор не найден"))
	}
	s.log.Info("admin deleted", slog.String("op", op), slog.Int("actor_id", actorID), slog.Int("admin_id", id))
	return nil
}
