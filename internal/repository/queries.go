package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/lottery-ledger/internal/model"
)

// GetWalletView возвращает кошелёк пользователя вместе со счётчиком пополнений.
// MaxWithdrawal не заполняется.
func (r *PostgresRepository) GetWalletView(ctx context.Context, userID int64) (*model.WalletView, error) {
	var v model.WalletView
	err := r.pool.QueryRow(ctx,
		`SELECT w.user_id, w.balance, w.total_deposited, w.total_withdrawn, w.referral_earnings,
		        w.deposit_address, u.deposit_count, u.surprise_activated
		 FROM wallets w
		 JOIN users u ON u.id = w.user_id
		 WHERE w.user_id = $1`,
		userID,
	).Scan(&v.UserID, &v.Balance, &v.TotalDeposited, &v.TotalWithdrawn, &v.ReferralEarnings,
		&v.DepositAddress, &v.DepositCount, &v.SurpriseActivated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &v, nil
}

// GetDepositsByUser возвращает историю пополнений пользователя, новые первыми.
func (r *PostgresRepository) GetDepositsByUser(ctx context.Context, userID int64) ([]model.Deposit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, transaction_id, status, created_at
		 FROM deposits
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select deposits: %w", err)
	}
	defer rows.Close()

	var res []model.Deposit
	for rows.Next() {
		var (
			d      model.Deposit
			status string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.Amount, &d.TransactionID, &status, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		d.Status = model.DepositStatus(status)
		res = append(res, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetWithdrawalsByUser возвращает заявки на вывод пользователя, новые первыми.
func (r *PostgresRepository) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	return r.ListWithdrawals(ctx, []Filter{{Field: FilterWithdrawalUser, Value: strconv.FormatInt(userID, 10)}}, 1000, 0)
}

// ListWithdrawals возвращает заявки на вывод по фильтрам, новые первыми.
func (r *PostgresRepository) ListWithdrawals(ctx context.Context, filters []Filter, limit, offset int) ([]model.Withdrawal, error) {
	where, args, err := buildWhere(filters, withdrawalFilters)
	if err != nil {
		return nil, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT w.id, w.user_id, w.amount, w.wallet_address, w.status, w.requested_at, w.processed_at
		 FROM withdrawals w%s
		 ORDER BY w.requested_at DESC, w.id DESC
		 LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)
	return r.queryWithdrawals(ctx, query, args...)
}

// GetPendingWithdrawals возвращает необработанные заявки, старые первыми.
func (r *PostgresRepository) GetPendingWithdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	return r.queryWithdrawals(ctx,
		`SELECT `+withdrawalColumns+`
		 FROM withdrawals
		 WHERE status = 'pending'
		 ORDER BY requested_at, id`,
	)
}

func (r *PostgresRepository) queryWithdrawals(ctx context.Context, query string, args ...any) ([]model.Withdrawal, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var res []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		res = append(res, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

const ticketWithDrawQuery = `SELECT t.id, t.user_id, t.draw_id, t.ticket_type_id, t.ticket_number, t.purchase_price,
        t.status, t.purchased_at, tt.name, d.status, d.end_date
 FROM tickets t
 JOIN ticket_types tt ON tt.id = t.ticket_type_id
 JOIN draws d ON d.id = t.draw_id`

func scanTicketWithDraw(row pgx.Row) (*model.TicketWithDraw, error) {
	var (
		t                        model.TicketWithDraw
		ticketStatus, drawStatus string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.DrawID, &t.TicketTypeID, &t.TicketNumber, &t.PurchasePrice,
		&ticketStatus, &t.PurchasedAt, &t.TicketTypeName, &drawStatus, &t.DrawEndDate)
	if err != nil {
		return nil, err
	}
	t.Status = model.TicketStatus(ticketStatus)
	t.DrawStatus = model.DrawStatus(drawStatus)
	return &t, nil
}

// GetTicketsByUser возвращает билеты пользователя, новые первыми.
func (r *PostgresRepository) GetTicketsByUser(ctx context.Context, userID int64) ([]model.TicketWithDraw, error) {
	rows, err := r.pool.Query(ctx,
		ticketWithDrawQuery+`
		 WHERE t.user_id = $1
		 ORDER BY t.purchased_at DESC, t.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select tickets: %w", err)
	}
	defer rows.Close()

	var res []model.TicketWithDraw
	for rows.Next() {
		t, err := scanTicketWithDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		res = append(res, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetTicketByNumber возвращает билет пользователя по номеру.
func (r *PostgresRepository) GetTicketByNumber(ctx context.Context, userID int64, number string) (*model.TicketWithDraw, error) {
	t, err := scanTicketWithDraw(r.pool.QueryRow(ctx,
		ticketWithDrawQuery+` WHERE t.ticket_number = $1 AND t.user_id = $2`,
		number, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// GetCurrentDraw возвращает открытый тираж без блокировок или nil, если его нет.
func (r *PostgresRepository) GetCurrentDraw(ctx context.Context, now time.Time) (*model.Draw, error) {
	d, err := scanDraw(r.pool.QueryRow(ctx,
		`SELECT `+drawColumns+`
		 FROM draws
		 WHERE status = 'active' AND end_date > $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get current draw: %w", err)
	}
	return d, nil
}

// GetDrawHistory возвращает завершённые тиражи, новые первыми.
func (r *PostgresRepository) GetDrawHistory(ctx context.Context, limit int) ([]model.Draw, error) {
	return r.queryDraws(ctx,
		`SELECT `+drawColumns+`
		 FROM draws
		 WHERE status = 'completed'
		 ORDER BY end_date DESC, id DESC
		 LIMIT $1`,
		limit,
	)
}

// ListDraws возвращает тиражи в любом статусе по фильтрам, новые первыми.
func (r *PostgresRepository) ListDraws(ctx context.Context, filters []Filter, limit, offset int) ([]model.Draw, error) {
	where, args, err := buildWhere(filters, drawFilters)
	if err != nil {
		return nil, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT `+drawColumns+`
		 FROM draws%s
		 ORDER BY start_date DESC, id DESC
		 LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args),
	)
	return r.queryDraws(ctx, query, args...)
}

func (r *PostgresRepository) queryDraws(ctx context.Context, query string, args ...any) ([]model.Draw, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select draws: %w", err)
	}
	defer rows.Close()

	var res []model.Draw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draw: %w", err)
		}
		res = append(res, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetDashboardStats собирает агрегаты для панели администратора одним запросом.
func (r *PostgresRepository) GetDashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var s model.DashboardStats
	err := r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM draws WHERE status = 'active'),
			(SELECT COUNT(*) FROM draws WHERE status = 'completed'),
			(SELECT COUNT(*) FROM tickets WHERE status = 'active'),
			(SELECT COUNT(*) FROM withdrawals WHERE status = 'pending'),
			(SELECT COALESCE(SUM(amount), 0) FROM deposits),
			(SELECT COALESCE(SUM(amount), 0) FROM withdrawals WHERE status = 'completed'),
			(SELECT COALESCE(SUM(balance), 0) FROM wallets)`,
	).Scan(&s.TotalUsers, &s.ActiveDraws, &s.CompletedDraws, &s.ActiveTickets, &s.PendingWithdrawals,
		&s.TotalDeposits, &s.TotalWithdrawals, &s.TotalWalletBalance)
	if err != nil {
		return nil, fmt.Errorf("get dashboard stats: %w", err)
	}
	return &s, nil
}
