package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/lottery-ledger/internal/model"
)

// CreateUser создаёт пользователя вместе с пустым кошельком. Если задан referralCode,
// владелец кода записывается в referred_by. Заполняет u.ID, u.ReferredBy и u.CreatedAt.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User, referralCode, depositAddress string) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		u.ReferredBy = nil
		if referralCode != "" {
			var referrerID int64
			err := tx.QueryRow(ctx,
				`SELECT id FROM users WHERE referral_code = $1`, referralCode,
			).Scan(&referrerID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("%w: %s", ErrReferralCodeNotFound, referralCode)
				}
				return fmt.Errorf("resolve referral code: %w", err)
			}
			u.ReferredBy = &referrerID
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO users (username, password_hash, location, role, referral_code, referred_by)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			u.Username, u.PasswordHash, u.Location, string(u.Role), u.ReferralCode, u.ReferredBy,
		).Scan(&u.ID, &u.CreatedAt)
		if err != nil {
			if isPgCode(err, pgerrcode.UniqueViolation) {
				return fmt.Errorf("%w: %s", ErrUserExists, u.Username)
			}
			return fmt.Errorf("create user: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO wallets (user_id, deposit_address) VALUES ($1, $2)`,
			u.ID, depositAddress,
		); err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetUserByUsername возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListUsers возвращает пользователей с балансами, новые первыми.
func (r *PostgresRepository) ListUsers(ctx context.Context, filters []Filter, limit, offset int) ([]model.UserSummary, error) {
	where, args, err := buildWhere(filters, userFilters)
	if err != nil {
		return nil, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT u.id, u.username, u.location, u.role, u.referral_code, u.deposit_count,
		        u.surprise_activated, COALESCE(w.balance, 0), u.created_at
		 FROM users u
		 LEFT JOIN wallets w ON w.user_id = u.id%s
		 ORDER BY u.created_at DESC, u.id DESC
		 LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var res []model.UserSummary
	for rows.Next() {
		var (
			u    model.UserSummary
			role string
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Location, &role, &u.ReferralCode, &u.DepositCount,
			&u.SurpriseActivated, &u.Balance, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.Role = model.Role(role)
		res = append(res, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}
