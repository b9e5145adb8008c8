package models

import "time"

// Аудитории рассылки.
const (
	AudienceAll           = "all"
	AudienceActive        = "active"
	AudienceInactive      = "inactive"
	AudienceWithReferrals = "with_referrals"
)

// Статусы рассылки.
const (
	BroadcastQueued   = "queued"
	BroadcastFinished = "finished"
)

// MaxBroadcastErrors ограничение на количество ошибок в результате рассылки.
const MaxBroadcastErrors = 10

// NotifyMessage сообщение одному пользователю.
type NotifyMessage struct {
	ID      string `json:"id"`
	TgID    int64  `json:"tg_id"`
	Message string `json:"message"`
}

// BroadcastJob задание на рассылку для сервиса уведомлений.
type BroadcastJob struct {
	ID          string  `json:"id"`
	BroadcastID int     `json:"broadcast_id"`
	UserIDs     []int64 `json:"user_ids"`
	Message     string  `json:"message"`
}

// BroadcastRequest запрос администратора на рассылку.
type BroadcastRequest struct {
	Message string `json:"message" validate:"required"`
	Target  string `json:"target" validate:"required,oneof=all active inactive with_referrals"`
}

// BroadcastError ошибка доставки одному получателю.
type BroadcastError struct {
	TgID  int64  `json:"tg_id"`
	Error string `json:"error"`
}

// BroadcastResult итог рассылки.
type BroadcastResult struct {
	SuccessCount int              `json:"success_count"`
	FailedCount  int              `json:"failed_count"`
	Errors       []BroadcastError `json:"errors"`
}

// BroadcastMessage сохраненная рассылка.
type BroadcastMessage struct {
	ID          int        `json:"id"`
	Message     string     `json:"message"`
	Audience    string     `json:"audience"`
	TotalCount  int        `json:"total_count"`
	SentCount   int        `json:"sent_count"`
	FailedCount int        `json:"failed_count"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// BroadcastStats сводная статистика рассылок.
type BroadcastStats struct {
	TotalBroadcasts int                `json:"total_broadcasts"`
	TotalSent       int                `json:"total_sent"`
	TotalFailed     int                `json:"total_failed"`
	Recent          []BroadcastMessage `json:"recent"`
}

// BroadcastTicket ответ на постановку рассылки в очередь.
type BroadcastTicket struct {
	BroadcastID int    `json:"broadcast_id,omitempty"`
	TotalUsers  int    `json:"total_users"`
	Status      string `json:"status"`
}
