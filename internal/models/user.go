// Package models содержит доменные структуры бота: пользователей, баланс токенов,
// заявки на одобрение, подписки, файлы доступа и уведомления.
// Структуры используются в бизнес‑логике, хранилище и HTTP-обработчиках.
package models

import "time"

// User представляет пользователя Telegram-бота.
type User struct {
	ID                  int       `json:"id"`                    // Внутренний идентификатор
	TgID                int64     `json:"tg_id"`                 // Идентификатор в Telegram
	Username            string    `json:"username"`              // Имя пользователя в Telegram
	FullName            string    `json:"full_name"`             // Отображаемое имя
	Email               string    `json:"email,omitempty"`       // Электронная почта
	BonusBalance        int       `json:"bonus_balance"`         // Баланс токенов
	IsBanned            bool      `json:"is_banned"`             // Заблокирован ли пользователь
	ChannelBonusGiven   bool      `json:"channel_bonus_given"`   // Выдан ли бонус за подписку на канал
	ChannelMessageShown bool      `json:"channel_message_shown"` // Показано ли сообщение о канале
	ReferrerID          *int      `json:"referrer_id,omitempty"` // Пригласивший пользователь
	CreatedAt           time.Time `json:"created_at"`
}

// UpsertUser данные для регистрации пользователя при первом обращении к боту.
type UpsertUser struct {
	TgID     int64  `json:"tg_id" validate:"required"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// Admin учетная запись администратора панели управления.
type Admin struct {
	ID           int        `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name,omitempty"`
	Email        string     `json:"email,omitempty"`
	IsActive     bool       `json:"is_active"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// UserFilter параметры выборки пользователей в панели управления.
type UserFilter struct {
	Search string // Подстрока логина или имени, без учета регистра
	Limit  int
	Offset int
}

// UserPage страница списка пользователей.
type UserPage struct {
	Total int     `json:"total"`
	Items []*User `json:"items"`
}

// UserStats сводка по пользователям для панели управления.
type UserStats struct {
	TotalUsers            int `json:"total_users"`
	BannedUsers           int `json:"banned_users"`
	UsersWithReferrals    int `json:"users_with_referrals"`
	TotalBonusDistributed int `json:"total_bonus_distributed"` // Сумма токенов на балансах
}

// BanUser запрос на блокировку или разблокировку пользователя.
type BanUser struct {
	Banned bool `json:"banned"`
}

// NewAdmin данные для регистрации администратора.
type NewAdmin struct {
	Username     string `json:"username" validate:"required,min=3,max=64"`
	Password     string `json:"password" validate:"required,min=8"`
	FullName     string `json:"full_name"`
	Email        string `json:"email" validate:"omitempty,email"`
	IsSuperAdmin bool   `json:"is_super_admin"`
}

// AdminUpdate изменяемые поля учетной записи. Пустые поля не меняются.
type AdminUpdate struct {
	FullName     *string `json:"full_name"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Password     *string `json:"password" validate:"omitempty,min=8"`
	IsActive     *bool   `json:"is_active"`
	PasswordHash *string `json:"-"`
}
