// Package cookies выдает пользователям файлы куков внешнего сервиса и обновляет их.
//
// Файлы сгруппированы по группам доступа. Выборка предпочитает файлы без действующей
// аренды locked_until, начиная с давно не обновлявшихся. Аренда рекомендательная:
// она снижает вероятность одновременного обновления одного файла, но не исключает его.
package cookies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Uz11ps/markethelper/internal/config"
	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/lib/metrics"
	"github.com/Uz11ps/markethelper/internal/lib/netscape"
	"github.com/Uz11ps/markethelper/internal/lib/sl"
	"github.com/Uz11ps/markethelper/internal/models"
)

// userRegenLease аренда файла на время обновления по запросу пользователя.
const userRegenLease = 5 * time.Minute

const refreshedMessage = "🔄 Файл доступа вашей группы обновлен. Получите актуальные куки в профиле бота."

// Repository определяет методы хранилища для групп и файлов доступа.
type Repository interface {
	ListFilesByGroup(ctx context.Context, groupID int) ([]models.AccessFile, error)
	GetFile(ctx context.Context, id int) (*models.AccessFile, error)
	CreateFile(ctx context.Context, groupID *int, groupName, login, password, path string) (*models.AccessFile, error)
	LockFile(ctx context.Context, id int, until time.Time) error
	MarkFileRefreshed(ctx context.Context, id int, path string, updated, lockedUntil time.Time) error
	ActiveGroupForUser(ctx context.Context, tgID int64, now time.Time) (int, error)
	GroupSubscribers(ctx context.Context, groupID int, now time.Time) ([]int64, error)
	ListGroups(ctx context.Context) ([]models.AccessGroup, error)
	CreateGroup(ctx context.Context, name string) (*models.AccessGroup, error)
	RenameGroup(ctx context.Context, id int, name string) (*models.AccessGroup, error)
	DeleteGroup(ctx context.Context, id int) error
}

// Authenticator внешний сервис, выдающий куки.
type Authenticator interface {
	Login(ctx context.Context, login, password string) ([]*http.Cookie, error)
	Check(ctx context.Context, cookies []*http.Cookie) (bool, string)
}

// Notifier отправляет уведомление пользователю без ожидания доставки.
type Notifier interface {
	Notify(ctx context.Context, tgID int64, message string)
}

// Service брокер файлов куков.
type Service struct {
	repo     Repository
	auth     Authenticator
	notifier Notifier
	dir      string
	domain   string
	leaseTTL time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, auth Authenticator, notifier Notifier, cfg config.CookieBroker,
	log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		auth:     auth,
		notifier: notifier,
		dir:      cfg.CookieDir,
		domain:   cfg.CookieDomain,
		leaseTTL: cfg.LeaseTTL,
		log:      log,
		now:      time.Now,
	}
}

// FileForGroup выбирает файл группы: первый без действующей аренды,
// иначе давно не обновлявшийся.
func (s *Service) FileForGroup(ctx context.Context, groupID int) (*models.AccessFile, error) {
	const op = "services.cookies.FileForGroup"
	files, err := s.repo.ListFilesByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrNotFound, "Нет файлов для этой группы"))
	}

	now := s.now()
	for i := range files {
		if !files[i].Locked(now) {
			return &files[i], nil
		}
	}
	return &files[0], nil
}

// FileForUser выбирает файл группы первой действующей подписки пользователя.
func (s *Service) FileForUser(ctx context.Context, tgID int64) (*models.AccessFile, error) {
	const op = "services.cookies.FileForUser"
	groupID, err := s.repo.ActiveGroupForUser(ctx, tgID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Активная подписка не найдена"))
	}
	f, err := s.FileForGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}

// ReadContent читает файл куков.
func (s *Service) ReadContent(f *models.AccessFile) (*models.FileContent, error) {
	const op = "services.cookies.ReadContent"
	empty := apperr.New(apperr.ErrNotFound, "Файл отсутствует или пуст")
	if f.Path == "" {
		return nil, fmt.Errorf("%s: %w", op, empty)
	}
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil, fmt.Errorf("%s: %w", op, empty)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.FileContent{
		FileID:    f.ID,
		GroupID:   f.GroupID,
		Path:      f.Path,
		Content:   string(data),
		UpdatedAt: f.LastUpdated,
	}, nil
}

// GroupContent выбирает файл группы и возвращает его содержимое.
func (s *Service) GroupContent(ctx context.Context, groupID int) (*models.FileContent, error) {
	f, err := s.FileForGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.ReadContent(f)
}

// UserContent выбирает файл пользователя и возвращает его содержимое.
func (s *Service) UserContent(ctx context.Context, tgID int64) (*models.FileContent, error) {
	f, err := s.FileForUser(ctx, tgID)
	if err != nil {
		return nil, err
	}
	return s.ReadContent(f)
}

// Validate проверяет файл группы: в нем есть connect.sid и внешний сервис принимает куки.
func (s *Service) Validate(ctx context.Context, groupID int) (*models.FileStatus, error) {
	const op = "services.cookies.Validate"
	f, err := s.FileForGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status := &models.FileStatus{
		GroupID:     groupID,
		FileID:      f.ID,
		LastUpdated: f.LastUpdated,
		LockedUntil: f.LockedUntil,
	}
	status.Valid, status.Message = s.checkFile(ctx, f.Path)
	return status, nil
}

func (s *Service) checkFile(ctx context.Context, path string) (bool, string) {
	fh, err := os.Open(path)
	if err != nil {
		return false, "Файл куков отсутствует"
	}
	defer fh.Close()

	jar, err := netscape.Read(fh)
	if err != nil {
		return false, fmt.Sprintf("Не удалось загрузить куки: %v", err)
	}
	if !netscape.Has(jar, SessionCookie) {
		return false, SessionCookie + " отсутствует"
	}
	return s.auth.Check(ctx, jar)
}

// Regenerate обновляет куки файла. Пустой filename сохраняет прежнее имя файла.
func (s *Service) Regenerate(ctx context.Context, fileID int, filename string) (*models.AccessFile, error) {
	const op = "services.cookies.Regenerate"
	f, err := s.repo.GetFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Файл не найден"))
	}
	return s.regenerate(ctx, f, filename)
}

// RegenerateForGroup обновляет куки файла, выбранного для группы.
func (s *Service) RegenerateForGroup(ctx context.Context, groupID int) (*models.AccessFile, error) {
	f, err := s.FileForGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.regenerate(ctx, f, "")
}

// RegenerateForUser обновляет куки файла пользователя. На время входа файл
// арендуется, чтобы другие запросы выбирали соседние файлы группы.
func (s *Service) RegenerateForUser(ctx context.Context, tgID int64, filename string) (*models.AccessFile, error) {
	const op = "services.cookies.RegenerateForUser"
	f, err := s.FileForUser(ctx, tgID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.LockFile(ctx, f.ID, s.now().Add(userRegenLease)); err != nil {
		s.log.Warn("failed to lease file", slog.String("op", op), slog.Int("file_id", f.ID), sl.Err(err))
	}
	return s.regenerate(ctx, f, filename)
}

func (s *Service) regenerate(ctx context.Context, f *models.AccessFile, filename string) (*models.AccessFile, error) {
	const op = "services.cookies.regenerate"
	log := s.log.With(slog.String("op", op), slog.Int("file_id", f.ID), slog.Int("group_id", f.GroupID))

	if f.Login == "" || f.Password == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrInvalidArgument, "У файла нет логина или пароля"))
	}

	cookies, err := s.auth.Login(ctx, f.Login, f.Password)
	if err != nil {
		metrics.CookieRegenerations.WithLabelValues(metrics.ResultFailure).Inc()
		log.Error("login to cookie provider failed", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	path := filepath.Join(s.dir, s.fileName(f, filename))
	if err := s.writeFile(path, cookies); err != nil {
		metrics.CookieRegenerations.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	lockedUntil := now.Add(s.leaseTTL)
	if err := s.repo.MarkFileRefreshed(ctx, f.ID, path, now, lockedUntil); err != nil {
		metrics.CookieRegenerations.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Файл не найден"))
	}
	metrics.CookieRegenerations.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Info("cookies regenerated", slog.String("path", path), slog.Int("cookies", len(cookies)))

	refreshed := *f
	refreshed.Path = path
	refreshed.LastUpdated = &now
	refreshed.LockedUntil = &lockedUntil

	s.notifySubscribers(ctx, f.GroupID)
	return &refreshed, nil
}

func (s *Service) notifySubscribers(ctx context.Context, groupID int) {
	const op = "services.cookies.notifySubscribers"
	subscribers, err := s.repo.GroupSubscribers(ctx, groupID, s.now())
	if err != nil {
		s.log.Error("failed to load group subscribers", slog.String("op", op), slog.Int("group_id", groupID), sl.Err(err))
		return
	}
	for _, tgID := range subscribers {
		s.notifier.Notify(ctx, tgID, refreshedMessage)
	}
}

// fileName выбирает имя файла: переданное, прежнее или по идентификатору файла.
func (s *Service) fileName(f *models.AccessFile, filename string) string {
	if name := cleanName(filename); name != "" {
		return name
	}
	if name := cleanName(f.Path); name != "" {
		return name
	}
	return fmt.Sprintf("%d.txt", f.ID)
}

// cleanName оставляет от имени только последний элемент пути. Имена, которые
// указывают на сам каталог или выше него, отбрасываются.
func cleanName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	switch name {
	case ".", "..", string(filepath.Separator):
		return ""
	}
	return name
}

// writeFile записывает куки через временный файл, чтобы читатели не увидели
// частично записанный файл.
func (s *Service) writeFile(path string, cookies []*http.Cookie) error {
	const op = "services.cookies.writeFile"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cookies-*")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer os.Remove(tmp.Name())

	if err := netscape.Write(tmp, cookies, s.domain); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AddFile добавляет файл с учетными данными и сразу получает для него куки.
// Без группы файл попадает в новую группу. Если вход не удался, файл остается
// в хранилище и его можно обновить позже.
func (s *Service) AddFile(ctx context.Context, in models.NewAccessFile) (*models.AccessFile, error) {
	const op = "services.cookies.AddFile"

	name := cleanName(in.Filename)
	if name == "" {
		name = uuid.NewString() + ".txt"
	}
	groupName := fmt.Sprintf("Group_%d", s.now().Unix())

	f, err := s.repo.CreateFile(ctx, in.GroupID, groupName, in.Login, in.Password, filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.Describe(err, apperr.ErrNotFound, "Группа не найдена"))
	}
	s.log.Info("access file added", slog.String("op", op), slog.Int("file_id", f.ID), slog.Int("group_id", f.GroupID))

	refreshed, err := s.regenerate(ctx, f, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return refreshed, nil
}

// ListGroups возвращает группы доступа.
func (s *Service) ListGroups(ctx context.Context) ([]models.AccessGroup, error) {
	const op = "services.cookies.ListGroups"
	groups, err := s.repo.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if groups == nil {
		groups = []models.AccessGroup{}
	}
	return groups, nil
}

// CreateGroup создает группу доступа.
func (s *Service) CreateGroup(ctx context.Context, name string) (*models.AccessGroup, error) {
	const op = "services.cookies.CreateGroup"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrInvalidArgument, "Название группы не может быть пустым"))
	}
	g, err := s.repo.CreateGroup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return g, nil
}

// RenameGroup меняет название группы.
func (s *Service) RenameGroup(ctx context.Context, id int, name string) (*models.AccessGroup, error) {
	const op = "services.cookies.RenameGroup"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.New(apperr.ErrInvalidArgument, "Название группы не может быть пустым"))
	}
	g, err := s.repo.RenameGroup(ctx, id, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return g, nil
}

// DeleteGroup удаляет группу без подписок.
func (s *Service) DeleteGroup(ctx context.Context, id int) error {
	const op = "services.cookies.DeleteGroup"
	if err := s.repo.DeleteGroup(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("access group deleted", slog.String("op", op), slog.Int("group_id", id))
	return nil
}
