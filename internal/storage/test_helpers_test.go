package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Uz11ps/markethelper/internal/migrations"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя с балансом balance
func (f *TestDataFactory) CreateUser(t *testing.T, tgID int64, username string, balance int) int {
	t.Helper()
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO users (tg_id, username, bonus_balance)
		VALUES ($1, $2, $3) RETURNING id`, tgID, username, balance).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateGroup создает тестовую группу доступа
func (f *TestDataFactory) CreateGroup(t *testing.T, name string) int {
	t.Helper()
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO access_groups (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateRequest создает заявку на подписку в статусе pending
func (f *TestDataFactory) CreateRequest(t *testing.T, userID int, tariffCode string, months int,
	subscriptionType string, groupID *int) int {
	t.Helper()
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO requests (user_id, tariff_id, duration_id, subscription_type, group_id)
		VALUES ($1, (SELECT id FROM tariffs WHERE code = $2), (SELECT id FROM durations WHERE months = $3), $4, $5)
		RETURNING id`, userID, tariffCode, months, subscriptionType, groupID).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateSubscription создает подписку с указанными статусом и датой окончания
func (f *TestDataFactory) CreateSubscription(t *testing.T, userID int, groupID *int, status string, endDate time.Time) int {
	t.Helper()
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions
		(user_id, tariff_id, duration_id, status, group_id, start_date, end_date)
		VALUES ($1, (SELECT id FROM tariffs WHERE code = 'GROUP'), (SELECT id FROM durations WHERE months = 1),
		$2, $3, NOW(), $4)
		RETURNING id`, userID, status, groupID, endDate).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateReferral привязывает referred к referrer
func (f *TestDataFactory) CreateReferral(t *testing.T, referrerID, referredID int) int {
	t.Helper()
	_, err := f.storage.DB.Exec(`UPDATE users SET referrer_id = $1 WHERE id = $2`, referrerID, referredID)
	require.NoError(t, err)

	var id int
	err = f.storage.DB.QueryRow(`INSERT INTO referrals (referrer_id, referred_id) VALUES ($1, $2) RETURNING id`,
		referrerID, referredID).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateTokenPurchase создает заявку на покупку токенов в статусе pending
func (f *TestDataFactory) CreateTokenPurchase(t *testing.T, userID, amount int) int {
	t.Helper()
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO token_purchase_requests (user_id, amount, cost)
		VALUES ($1, $2, $2) RETURNING id`, userID, amount).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreatePendingBonus создает заявку на реферальный бонус в статусе pending
func (f *TestDataFactory) CreatePendingBonus(t *testing.T, referrerID, referredID, referralID, amount int) int {
	t.Helper()
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO pending_bonuses (user_id, referral_id, referred_id, bonus_amount)
		VALUES ($1, $2, $3, $4) RETURNING id`, referrerID, referralID, referredID, amount).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateFile создает файл доступа группы
func (f *TestDataFactory) CreateFile(t *testing.T, groupID int, path string, lastUpdated, lockedUntil *time.Time) int {
	t.Helper()
	var id int
	err := f.storage.DB.QueryRow(`INSERT INTO access_files (group_id, login, password, path, last_updated, locked_until)
		VALUES ($1, 'login@example.com', 'secret', $2, $3, $4) RETURNING id`,
		groupID, path, lastUpdated, lockedUntil).Scan(&id)
	require.NoError(t, err)
	return id
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// VerifyBalance проверяет баланс пользователя
func (v *TestVerification) VerifyBalance(t *testing.T, userID, expected int) {
	t.Helper()
	var balance int
	err := v.storage.DB.QueryRow("SELECT bonus_balance FROM users WHERE id = $1", userID).Scan(&balance)
	require.NoError(t, err)
	require.Equal(t, expected, balance)
}

// VerifyLedgerEntries проверяет количество записей журнала пользователя
func (v *TestVerification) VerifyLedgerEntries(t *testing.T, userID, expected int) {
	t.Helper()
	var count int
	err := v.storage.DB.QueryRow("SELECT COUNT(*) FROM ledger_entries WHERE user_id = $1", userID).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, expected, count)
}

// VerifyStatus проверяет статус строки таблицы
func (v *TestVerification) VerifyStatus(t *testing.T, table string, id int, expected string) {
	t.Helper()
	var status string
	err := v.storage.DB.QueryRow("SELECT status FROM "+table+" WHERE id = $1", id).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, expected, status)
}

// VerifyCount проверяет количество строк таблицы по условию
func (v *TestVerification) VerifyCount(t *testing.T, query string, expected int, args ...any) {
	t.Helper()
	var count int
	err := v.storage.DB.QueryRow(query, args...).Scan(&count)
	require.NoError(t, err)
	require.Equal(t, expected, count)
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "Failed to create storage after retries")

	err = migrations.Run(storage.DB, "../../migrations")
	require.NoError(t, err, "Failed to apply migrations")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return storage, cleanup
}
