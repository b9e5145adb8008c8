package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Uz11ps/markethelper/internal/lib/apperr"
	"github.com/Uz11ps/markethelper/internal/models"
	"github.com/shopspring/decimal"
)

// approvalTable описывает таблицу заявок одного вида.
// Все таблицы заявок имеют общие столбцы id, user_id, status, admin_comment,
// processed_by, created_at, processed_at.
type approvalTable struct {
	table string
	// amount столбец с размером заявки.
	amount string
	// credits начисляет amount токенов при одобрении. Выплаты рефералам
	// проводятся вне системы и баланс не меняют.
	credits       bool
	reason        string
	paymentMethod bool
	join          string
	details       detailColumns
	onApprove     func(ctx context.Context, tx *sql.Tx, id int, res *models.ApproveResult) error
}

// detailColumns выражения для полей models.ApprovalDetails. Пустое выражение означает NULL.
type detailColumns struct {
	referredID       string
	referredTgID     string
	referredUsername string
	requestID        string
	cost             string
	paymentMethod    string
	referralCount    string
	amountRub        string
}

func orNull(expr, typ string) string {
	if expr == "" {
		return "NULL::" + typ
	}
	return expr
}

func (d detailColumns) columns() string {
	return orNull(d.referredID, "int") + ", " +
		orNull(d.referredTgID, "bigint") + ", " +
		orNull(d.referredUsername, "text") + ", " +
		orNull(d.requestID, "int") + ", " +
		orNull(d.cost, "numeric") + ", " +
		orNull(d.paymentMethod, "text") + ", " +
		orNull(d.referralCount, "int") + ", " +
		orNull(d.amountRub, "numeric")
}

var approvalTables = map[models.RequestKind]approvalTable{
	models.KindReferralBonus: {
		table:   "pending_bonuses",
		amount:  "bonus_amount",
		credits: true,
		reason:  models.ReasonReferralBonus,
		join:    "LEFT JOIN users ru ON ru.id = t.referred_id",
		details: detailColumns{
			referredID:       "t.referred_id",
			referredTgID:     "ru.tg_id",
			referredUsername: "ru.username",
			requestID:        "t.request_id",
		},
		onApprove: func(ctx context.Context, tx *sql.Tx, id int, res *models.ApproveResult) error {
			err := tx.QueryRowContext(ctx, `
				WITH bonus AS (SELECT referral_id, referred_id FROM pending_bonuses WHERE id = $1),
				     marked AS (
				         UPDATE referrals SET reward_given = TRUE
				         WHERE id = (SELECT referral_id FROM bonus)
				     )
				SELECT COALESCE((SELECT u.username FROM users u WHERE u.id = (SELECT referred_id FROM bonus)), '')`,
				id).Scan(&res.ReferredUsername)
			return err
		},
	},
	models.KindChannelBonus: {
		table:   "channel_bonus_requests",
		amount:  "bonus_amount",
		credits: true,
		reason:  models.ReasonChannelBonus,
		onApprove: func(ctx context.Context, tx *sql.Tx, _ int, res *models.ApproveResult) error {
			_, err := tx.ExecContext(ctx, `UPDATE users SET channel_bonus_given = TRUE WHERE id = $1`, res.UserID)
			return err
		},
	},
	models.KindTokenPurchase: {
		table:         "token_purchase_requests",
		amount:        "amount",
		credits:       true,
		reason:        models.ReasonTokenPurchase,
		paymentMethod: true,
		details: detailColumns{
			cost:          "t.cost",
			paymentMethod: "t.payment_method",
		},
	},
	models.KindReferralPayout: {
		table:  "referral_payouts",
		amount: "referral_count",
		details: detailColumns{
			referralCount: "t.referral_count",
			amountRub:     "t.amount_rub",
		},
	},
}

func lookupApprovalTable(kind models.RequestKind) (approvalTable, error) {
	t, ok := approvalTables[kind]
	if !ok {
		return approvalTable{}, apperr.New(apperr.ErrInvalidArgument, "Неизвестный тип заявки")
	}
	return t, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// missingOrProcessed различает отсутствующую заявку и уже обработанную,
// когда условное обновление не затронуло ни одной строки.
func missingOrProcessed(ctx context.Context, q queryRower, table string, id int) error {
	var status string
	err := q.QueryRowContext(ctx, `SELECT status FROM `+table+` WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return err
	}
	return apperr.ErrAlreadyProcessed
}

// ApproveRequest одобряет заявку вида kind. Переход из pending выполняется условным
// обновлением, поэтому заявка одобряется не более одного раза. Начисление токенов
// проходит в той же транзакции.
func (s *Storage) ApproveRequest(ctx context.Context, kind models.RequestKind, id, adminID int,
	in models.ApproveInput) (*models.ApproveResult, error) {
	const op = "storage.ApproveRequest"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	t, err := lookupApprovalTable(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	set := `status = 'approved', processed_by = $2, processed_at = NOW(), admin_comment = COALESCE($3, admin_comment)`
	args := []any{id, nullableID(adminID), nullableString(in.Comment)}
	if t.paymentMethod {
		set += `, payment_method = COALESCE($4, payment_method)`
		args = append(args, nullableString(in.PaymentMethod))
	}
	query := fmt.Sprintf(`UPDATE %s AS t SET %s WHERE t.id = $1 AND t.status = 'pending' RETURNING t.user_id, t.%s`,
		t.table, set, t.amount)

	res := &models.ApproveResult{ID: id, Kind: kind}
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var amount int
		err := tx.QueryRowContext(ctx, query, args...).Scan(&res.UserID, &amount)
		if errors.Is(err, sql.ErrNoRows) {
			return missingOrProcessed(ctx, tx, t.table, id)
		}
		if err != nil {
			return err
		}

		if t.credits && amount > 0 {
			if _, err := applyDelta(ctx, tx, res.UserID, amount, t.reason); err != nil {
				return err
			}
			res.Credited = amount
		}
		if t.onApprove != nil {
			if err := t.onApprove(ctx, tx, id, res); err != nil {
				return err
			}
		}

		return tx.QueryRowContext(ctx, `SELECT tg_id, bonus_balance FROM users WHERE id = $1`, res.UserID).
			Scan(&res.UserTgID, &res.NewBalance)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// RejectRequest отклоняет заявку вида kind без изменения баланса.
func (s *Storage) RejectRequest(ctx context.Context, kind models.RequestKind, id, adminID int,
	comment *string) (*models.RejectResult, error) {
	const op = "storage.RejectRequest"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	t, err := lookupApprovalTable(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf(`UPDATE %s AS t
			  SET status = 'rejected', processed_by = $2, processed_at = NOW(),
			      admin_comment = COALESCE($3, admin_comment)
			  FROM users u
			  WHERE t.id = $1 AND t.status = 'pending' AND u.id = t.user_id
			  RETURNING u.tg_id`, t.table)

	res := &models.RejectResult{ID: id, Kind: kind}
	err = s.DB.QueryRowContext(ctx, query, id, nullableID(adminID), nullableString(comment)).Scan(&res.UserTgID)
	if errors.Is(err, sql.ErrNoRows) {
		err = missingOrProcessed(ctx, s.DB, t.table, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// ListApprovals возвращает заявки вида kind, новые первыми. Пустой status означает все статусы.
func (s *Storage) ListApprovals(ctx context.Context, kind models.RequestKind, status string) ([]models.ApprovalRequest, error) {
	const op = "storage.ListApprovals"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	t, err := lookupApprovalTable(kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := fmt.Sprintf(`SELECT t.id, t.user_id, u.tg_id, COALESCE(u.username, ''), COALESCE(u.full_name, ''),
				t.%s, t.status, COALESCE(t.admin_comment, ''), t.processed_by, t.created_at, t.processed_at, %s
			  FROM %s t
			  JOIN users u ON u.id = t.user_id
			  %s
			  WHERE ($1::text = '' OR t.status = $1::text)
			  ORDER BY t.created_at DESC, t.id DESC`, t.amount, t.details.columns(), t.table, t.join)

	rows, err := s.DB.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var res []models.ApprovalRequest
	for rows.Next() {
		var (
			r                = models.ApprovalRequest{Kind: kind}
			processedBy      sql.NullInt64
			processedAt      sql.NullTime
			referredID       sql.NullInt64
			referredTgID     sql.NullInt64
			referredUsername sql.NullString
			requestID        sql.NullInt64
			cost             decimal.NullDecimal
			paymentMethod    sql.NullString
			referralCount    sql.NullInt64
			amountRub        decimal.NullDecimal
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.UserTgID, &r.Username, &r.FullName,
			&r.Amount, &r.Status, &r.AdminComment, &processedBy, &r.CreatedAt, &processedAt,
			&referredID, &referredTgID, &referredUsername, &requestID, &cost, &paymentMethod,
			&referralCount, &amountRub); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r.ProcessedBy = intPtr(processedBy)
		r.ProcessedAt = timePtr(processedAt)
		r.Details = models.ApprovalDetails{
			ReferredID:       intPtr(referredID),
			ReferredUsername: referredUsername.String,
			RequestID:        intPtr(requestID),
			PaymentMethod:    paymentMethod.String,
			ReferralCount:    intPtr(referralCount),
		}
		if referredTgID.Valid {
			r.Details.ReferredTgID = &referredTgID.Int64
		}
		if cost.Valid {
			r.Details.Cost = &cost.Decimal
		}
		if amountRub.Valid {
			r.Details.AmountRub = &amountRub.Decimal
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// CreateChannelBonusRequest создает заявку на бонус за подписку на канал и возвращает исход проверки.
// Строка пользователя блокируется, поэтому у пользователя не появится двух заявок в ожидании.
func (s *Storage) CreateChannelBonusRequest(ctx context.Context, tgID int64, amount int) (string, error) {
	const op = "storage.CreateChannelBonusRequest"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var outcome string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var (
			userID int
			given  bool
		)
		err := tx.QueryRowContext(ctx,
			`SELECT id, channel_bonus_given FROM users WHERE tg_id = $1 FOR UPDATE`, tgID).Scan(&userID, &given)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}
		if given {
			outcome = models.ChannelBonusAlreadyGiven
			return nil
		}

		var pending bool
		err = tx.QueryRowContext(ctx, `SELECT EXISTS (
				SELECT 1 FROM channel_bonus_requests WHERE user_id = $1 AND status = 'pending'
			)`, userID).Scan(&pending)
		if err != nil {
			return err
		}
		if pending {
			outcome = models.ChannelRequestAlreadyExist
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO channel_bonus_requests (user_id, bonus_amount) VALUES ($1, $2)`, userID, amount)
		if err != nil {
			return err
		}
		outcome = models.ChannelRequestCreated
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return outcome, nil
}

// HasPendingChannelBonus сообщает, ждет ли заявка пользователя на бонус за канал одобрения.
func (s *Storage) HasPendingChannelBonus(ctx context.Context, tgID int64) (bool, error) {
	const op = "storage.HasPendingChannelBonus"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var pending bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM channel_bonus_requests c
			JOIN users u ON u.id = c.user_id
			WHERE u.tg_id = $1 AND c.status = 'pending'
		)`, tgID).Scan(&pending)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return pending, nil
}

// CreateTokenPurchase создает заявку на покупку amount токенов стоимостью cost.
func (s *Storage) CreateTokenPurchase(ctx context.Context, tgID int64, amount int,
	cost decimal.Decimal) (*models.TokenPurchase, error) {
	const op = "storage.CreateTokenPurchase"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO token_purchase_requests (user_id, amount, cost)
			  SELECT id, $2, $3 FROM users WHERE tg_id = $1
			  RETURNING id, amount, cost, status`
	var p models.TokenPurchase
	err := s.DB.QueryRowContext(ctx, query, tgID, amount, cost).Scan(&p.ID, &p.Amount, &p.Cost, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// CreatePayout создает заявку на выплату за count рефералов по ставке rubPerReferral.
func (s *Storage) CreatePayout(ctx context.Context, tgID int64, count int,
	rubPerReferral decimal.Decimal) (*models.Payout, error) {
	const op = "storage.CreatePayout"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var p models.Payout
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var userID int
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE tg_id = $1 FOR UPDATE`, tgID).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}

		var total int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`, userID).Scan(&total); err != nil {
			return err
		}
		if count > total {
			return apperr.New(apperr.ErrInvalidArgument, "Недостаточно рефералов для выплаты")
		}

		var pending bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (
				SELECT 1 FROM referral_payouts WHERE user_id = $1 AND status = 'pending'
			)`, userID).Scan(&pending); err != nil {
			return err
		}
		if pending {
			return apperr.New(apperr.ErrInvalidArgument, "У вас уже есть заявка на выплату в обработке")
		}

		amount := rubPerReferral.Mul(decimal.NewFromInt(int64(count)))
		return tx.QueryRowContext(ctx, `INSERT INTO referral_payouts (user_id, referral_count, amount_rub)
				VALUES ($1, $2, $3)
				RETURNING id, referral_count, amount_rub, status`, userID, count, amount).
			Scan(&p.ID, &p.ReferralCount, &p.AmountRub, &p.Status)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}
