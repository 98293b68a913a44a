package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/lottery-ledger/internal/model"
)

// Ledger объединяет операции над денежными данными в рамках одной транзакции.
// Методы Lock* блокируют возвращаемые строки до конца транзакции.
type Ledger interface {
	LockUser(ctx context.Context, userID int64) (*model.User, error)
	UpdateUserDeposits(ctx context.Context, userID int64, depositCount int, surpriseActivated bool) error

	LockWallet(ctx context.Context, userID int64) (*model.Wallet, error)
	AdjustWallet(ctx context.Context, userID int64, delta model.WalletDelta) (*model.Wallet, error)

	DepositExists(ctx context.Context, transactionID string) (bool, error)
	CreateDeposit(ctx context.Context, d *model.Deposit) error

	CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error
	LockWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error)
	FinalizeWithdrawal(ctx context.Context, id int64, status model.WithdrawalStatus, processedAt time.Time) error

	GetTicketType(ctx context.Context, id int64) (*model.TicketType, error)
	NextTicketSerial(ctx context.Context) (int64, error)
	CreateTicket(ctx context.Context, t *model.Ticket) error

	// LockCurrentDraw возвращает открытый тираж (active, end_date > now) или nil.
	// Берёт эксклюзивную блокировку выбора тиража до конца транзакции.
	LockCurrentDraw(ctx context.Context, now time.Time) (*model.Draw, error)
	// ActiveDrawExists проверяет наличие открытого тиража под разделяемой блокировкой.
	ActiveDrawExists(ctx context.Context, now time.Time) (bool, error)
	CreateDraw(ctx context.Context, d *model.Draw) error
	AddDrawSales(ctx context.Context, drawID int64, tickets int, amount decimal.Decimal) error

	LockExpiredDraws(ctx context.Context, now time.Time) ([]model.Draw, error)
	DrawTickets(ctx context.Context, drawID int64) ([]model.TicketEntry, error)
	CancelDraw(ctx context.Context, drawID int64) error
	CompleteDraw(ctx context.Context, drawID int64, winners [3]*int64) error
	SettleTickets(ctx context.Context, drawID int64, winningTicketIDs []int64) error
}

type pgLedger struct {
	tx pgx.Tx
}

const userColumns = `id, username, password_hash, location, role, referral_code, referred_by,
	deposit_count, surprise_activated, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Location, &role, &u.ReferralCode,
		&u.ReferredBy, &u.DepositCount, &u.SurpriseActivated, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

func (l *pgLedger) LockUser(ctx context.Context, userID int64) (*model.User, error) {
	u, err := scanUser(l.tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return u, nil
}

func (l *pgLedger) UpdateUserDeposits(ctx context.Context, userID int64, depositCount int, surpriseActivated bool) error {
	_, err := l.tx.Exec(ctx,
		`UPDATE users SET deposit_count = $2, surprise_activated = surprise_activated OR $3 WHERE id = $1`,
		userID, depositCount, surpriseActivated,
	)
	if err != nil {
		return fmt.Errorf("update user deposits: %w", err)
	}
	return nil
}

const walletColumns = `user_id, balance, total_deposited, total_withdrawn, referral_earnings, deposit_address`

func scanWallet(row pgx.Row) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(&w.UserID, &w.Balance, &w.TotalDeposited, &w.TotalWithdrawn, &w.ReferralEarnings, &w.DepositAddress)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (l *pgLedger) LockWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	w, err := scanWallet(l.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return w, nil
}

// AdjustWallet применяет приращения одним UPDATE. Ограничение balance >= 0 в схеме
// отклоняет любое изменение, уводящее баланс в минус.
func (l *pgLedger) AdjustWallet(ctx context.Context, userID int64, delta model.WalletDelta) (*model.Wallet, error) {
	w, err := scanWallet(l.tx.QueryRow(ctx,
		`UPDATE wallets SET
			balance = balance + $2,
			total_deposited = total_deposited + $3,
			total_withdrawn = total_withdrawn + $4,
			referral_earnings = referral_earnings + $5,
			updated_at = now()
		 WHERE user_id = $1
		 RETURNING `+walletColumns,
		userID, delta.Balance, delta.TotalDeposited, delta.TotalWithdrawn, delta.ReferralEarnings,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		if isPgCode(err, pgerrcode.CheckViolation) {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("adjust wallet: %w", err)
	}
	return w, nil
}

func (l *pgLedger) DepositExists(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := l.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM deposits WHERE transaction_id = $1)`, transactionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check deposit: %w", err)
	}
	return exists, nil
}

// CreateDeposit вставляет пополнение. Уникальный индекс по transaction_id закрывает гонку
// между проверкой и вставкой: параллельная вставка того же идентификатора дождётся
// фиксации первой и ничего не вставит.
func (l *pgLedger) CreateDeposit(ctx context.Context, d *model.Deposit) error {
	err := l.tx.QueryRow(ctx,
		`INSERT INTO deposits (user_id, amount, transaction_id, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (transaction_id) DO NOTHING
		 RETURNING id, created_at`,
		d.UserID, d.Amount, d.TransactionID, string(d.Status),
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrDuplicateTransaction, d.TransactionID)
		}
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

func (l *pgLedger) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	err := l.tx.QueryRow(ctx,
		`INSERT INTO withdrawals (user_id, amount, wallet_address, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, requested_at`,
		w.UserID, w.Amount, w.WalletAddress, string(w.Status),
	).Scan(&w.ID, &w.RequestedAt)
	if err != nil {
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

const withdrawalColumns = `id, user_id, amount, wallet_address, status, requested_at, processed_at`

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var (
		w      model.Withdrawal
		status string
	)
	if err := row.Scan(&w.ID, &w.UserID, &w.Amount, &w.WalletAddress, &status, &w.RequestedAt, &w.ProcessedAt); err != nil {
		return nil, err
	}
	w.Status = model.WithdrawalStatus(status)
	return &w, nil
}

func (l *pgLedger) LockWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	w, err := scanWithdrawal(l.tx.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("lock withdrawal: %w", err)
	}
	return w, nil
}

func (l *pgLedger) FinalizeWithdrawal(ctx context.Context, id int64, status model.WithdrawalStatus, processedAt time.Time) error {
	tag, err := l.tx.Exec(ctx,
		`UPDATE withdrawals SET status = $2, processed_at = $3 WHERE id = $1 AND status = 'pending'`,
		id, string(status), processedAt,
	)
	if err != nil {
		return fmt.Errorf("finalize withdrawal: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("finalize withdrawal %d: no pending row", id)
	}
	return nil
}

const ticketTypeColumns = `id, name, description, price, color, is_active, created_at`

func scanTicketType(row pgx.Row) (*model.TicketType, error) {
	var tt model.TicketType
	if err := row.Scan(&tt.ID, &tt.Name, &tt.Description, &tt.Price, &tt.Color, &tt.IsActive, &tt.CreatedAt); err != nil {
		return nil, err
	}
	return &tt, nil
}

func (l *pgLedger) GetTicketType(ctx context.Context, id int64) (*model.TicketType, error) {
	tt, err := scanTicketType(l.tx.QueryRow(ctx,
		`SELECT `+ticketTypeColumns+` FROM ticket_types WHERE id = $1 FOR SHARE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketTypeNotFound
		}
		return nil, fmt.Errorf("get ticket type: %w", err)
	}
	return tt, nil
}

func (l *pgLedger) NextTicketSerial(ctx context.Context) (int64, error) {
	var serial int64
	if err := l.tx.QueryRow(ctx, `SELECT nextval('ticket_serial_seq')`).Scan(&serial); err != nil {
		return 0, fmt.Errorf("next ticket serial: %w", err)
	}
	return serial, nil
}

func (l *pgLedger) CreateTicket(ctx context.Context, t *model.Ticket) error {
	err := l.tx.QueryRow(ctx,
		`INSERT INTO tickets (user_id, draw_id, ticket_type_id, ticket_number, purchase_price, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, purchased_at`,
		t.UserID, t.DrawID, t.TicketTypeID, t.TicketNumber, t.PurchasePrice, string(t.Status),
	).Scan(&t.ID, &t.PurchasedAt)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

const drawColumns = `id, start_date, end_date, status, total_tickets, prize_pool,
	first_prize_winner, second_prize_winner, third_prize_winner, created_at`

func scanDraw(row pgx.Row) (*model.Draw, error) {
	var (
		d      model.Draw
		status string
	)
	err := row.Scan(&d.ID, &d.StartDate, &d.EndDate, &status, &d.TotalTickets, &d.PrizePool,
		&d.FirstPrizeWinner, &d.SecondPrizeWinner, &d.ThirdPrizeWinner, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	d.Status = model.DrawStatus(status)
	return &d, nil
}

func (l *pgLedger) LockCurrentDraw(ctx context.Context, now time.Time) (*model.Draw, error) {
	if _, err := l.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, drawLockKey); err != nil {
		return nil, fmt.Errorf("lock draw selection: %w", err)
	}

	d, err := scanDraw(l.tx.QueryRow(ctx,
		`SELECT `+drawColumns+`
		 FROM draws
		 WHERE status = 'active' AND end_date > $1
		 ORDER BY created_at DESC
		 LIMIT 1
		 FOR UPDATE`,
		now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select current draw: %w", err)
	}
	return d, nil
}

func (l *pgLedger) ActiveDrawExists(ctx context.Context, now time.Time) (bool, error) {
	if _, err := l.tx.Exec(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, drawLockKey); err != nil {
		return false, fmt.Errorf("lock draw selection: %w", err)
	}

	var exists bool
	err := l.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM draws WHERE status = 'active' AND end_date > $1)`, now,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active draw: %w", err)
	}
	return exists, nil
}

func (l *pgLedger) CreateDraw(ctx context.Context, d *model.Draw) error {
	err := l.tx.QueryRow(ctx,
		`INSERT INTO draws (start_date, end_date, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, total_tickets, prize_pool, created_at`,
		d.StartDate, d.EndDate, string(d.Status),
	).Scan(&d.ID, &d.TotalTickets, &d.PrizePool, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert draw: %w", err)
	}
	return nil
}

func (l *pgLedger) AddDrawSales(ctx context.Context, drawID int64, tickets int, amount decimal.Decimal) error {
	_, err := l.tx.Exec(ctx,
		`UPDATE draws SET total_tickets = total_tickets + $2, prize_pool = prize_pool + $3 WHERE id = $1`,
		drawID, tickets, amount,
	)
	if err != nil {
		return fmt.Errorf("update draw sales: %w", err)
	}
	return nil
}

func (l *pgLedger) LockExpiredDraws(ctx context.Context, now time.Time) ([]model.Draw, error) {
	rows, err := l.tx.Query(ctx,
		`SELECT `+drawColumns+`
		 FROM draws
		 WHERE status = 'active' AND end_date <= $1
		 ORDER BY end_date
		 FOR UPDATE`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("select expired draws: %w", err)
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

func (l *pgLedger) DrawTickets(ctx context.Context, drawID int64) ([]model.TicketEntry, error) {
	rows, err := l.tx.Query(ctx,
		`SELECT t.id, t.user_id, t.draw_id, t.ticket_type_id, t.ticket_number, t.purchase_price,
		        t.status, t.purchased_at, u.location
		 FROM tickets t
		 JOIN users u ON u.id = t.user_id
		 WHERE t.draw_id = $1 AND t.status = 'active'
		 ORDER BY t.id`,
		drawID,
	)
	if err != nil {
		return nil, fmt.Errorf("select draw tickets: %w", err)
	}
	defer rows.Close()

	var res []model.TicketEntry
	for rows.Next() {
		var (
			e      model.TicketEntry
			status string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.DrawID, &e.TicketTypeID, &e.TicketNumber,
			&e.PurchasePrice, &status, &e.PurchasedAt, &e.Location); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		e.Status = model.TicketStatus(status)
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (l *pgLedger) CancelDraw(ctx context.Context, drawID int64) error {
	_, err := l.tx.Exec(ctx,
		`UPDATE draws SET status = 'cancelled' WHERE id = $1 AND status = 'active'`, drawID)
	if err != nil {
		return fmt.Errorf("cancel draw: %w", err)
	}
	return nil
}

func (l *pgLedger) CompleteDraw(ctx context.Context, drawID int64, winners [3]*int64) error {
	_, err := l.tx.Exec(ctx,
		`UPDATE draws
		 SET status = 'completed', first_prize_winner = $2, second_prize_winner = $3, third_prize_winner = $4
		 WHERE id = $1 AND status = 'active'`,
		drawID, winners[0], winners[1], winners[2],
	)
	if err != nil {
		return fmt.Errorf("complete draw: %w", err)
	}
	return nil
}

func (l *pgLedger) SettleTickets(ctx context.Context, drawID int64, winningTicketIDs []int64) error {
	_, err := l.tx.Exec(ctx,
		`UPDATE tickets
		 SET status = CASE WHEN id = ANY($2) THEN 'winner' ELSE 'expired' END
		 WHERE draw_id = $1 AND status = 'active'`,
		drawID, winningTicketIDs,
	)
	if err != nil {
		return fmt.Errorf("settle tickets: %w", err)
	}
	return nil
}
