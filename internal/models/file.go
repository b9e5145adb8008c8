package models

import "time"

// AccessGroup группа пользователей, разделяющих один файл доступа.
type AccessGroup struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AccessFile файл с куками внешнего сервиса и учетными данными для его обновления.
type AccessFile struct {
	ID          int        `json:"id"`
	GroupID     int        `json:"group_id"`
	Login       string     `json:"login"`
	Password    string     `json:"-"`
	Path        string     `json:"path"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	// LockedUntil рекомендательная аренда: выборка избегает файла до этого момента.
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Locked сообщает, действует ли аренда файла на момент now.
func (f AccessFile) Locked(now time.Time) bool {
	return f.LockedUntil != nil && f.LockedUntil.After(now)
}

// NewAccessFile данные для добавления файла администратором.
type NewAccessFile struct {
	GroupID  *int   `json:"group_id,omitempty"`
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
	Filename string `json:"filename,omitempty"`
}

// FileStatus состояние файла группы.
type FileStatus struct {
	GroupID     int        `json:"group_id"`
	FileID      int        `json:"file_id"`
	Valid       bool       `json:"valid"`
	Message     string     `json:"message"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// FileContent содержимое файла для выдачи боту.
type FileContent struct {
	FileID    int        `json:"file_id"`
	GroupID   int        `json:"group_id"`
	Path      string     `json:"file"`
	Content   string     `json:"cookies"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}
