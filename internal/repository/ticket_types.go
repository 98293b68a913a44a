package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/lottery-ledger/internal/model"
)

// ListTicketTypes возвращает виды билетов. При activeOnly скрывает отключённые.
func (r *PostgresRepository) ListTicketTypes(ctx context.Context, activeOnly bool) ([]model.TicketType, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ticketTypeColumns+`
		 FROM ticket_types
		 WHERE is_active OR NOT $1
		 ORDER BY price, id`,
		activeOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("select ticket types: %w", err)
	}
	defer rows.Close()

	var res []model.TicketType
	for rows.Next() {
		tt, err := scanTicketType(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket type: %w", err)
		}
		res = append(res, *tt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// CreateTicketType добавляет вид билета и заполняет tt.ID и tt.CreatedAt.
func (r *PostgresRepository) CreateTicketType(ctx context.Context, tt *model.TicketType) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ticket_types (name, description, price, color, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		tt.Name, tt.Description, tt.Price, tt.Color, tt.IsActive,
	).Scan(&tt.ID, &tt.CreatedAt)
	if err != nil {
		return fmt.Errorf("create ticket type: %w", err)
	}
	return nil
}

// UpdateTicketType перезаписывает поля вида билета. Цены уже купленных билетов не меняются.
func (r *PostgresRepository) UpdateTicketType(ctx context.Context, tt *model.TicketType) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE ticket_types
		 SET name = $2, description = $3, price = $4, color = $5, is_active = $6
		 WHERE id = $1
		 RETURNING created_at`,
		tt.ID, tt.Name, tt.Description, tt.Price, tt.Color, tt.IsActive,
	).Scan(&tt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTicketTypeNotFound
		}
		return fmt.Errorf("update ticket type: %w", err)
	}
	return nil
}

// DeleteTicketType удаляет вид билета, если по нему не продано ни одного билета.
func (r *PostgresRepository) DeleteTicketType(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM ticket_types WHERE id = $1`, id)
	if err != nil {
		if isPgCode(err, pgerrcode.ForeignKeyViolation) {
			return fmt.Errorf("%w: %d", ErrTicketTypeInUse, id)
		}
		return fmt.Errorf("delete ticket type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketTypeNotFound
	}
	return nil
}

// GetTicketTypeStats возвращает все виды билетов с количеством проданных билетов.
func (r *PostgresRepository) GetTicketTypeStats(ctx context.Context) ([]model.TicketTypeStats, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT tt.id, tt.name, tt.description, tt.price, tt.color, tt.is_active, tt.created_at,
		        COUNT(t.id)
		 FROM ticket_types tt
		 LEFT JOIN tickets t ON t.ticket_type_id = tt.id
		 GROUP BY tt.id
		 ORDER BY tt.price, tt.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select ticket type stats: %w", err)
	}
	defer rows.Close()

	var res []model.TicketTypeStats
	for rows.Next() {
		var s model.TicketTypeStats
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.Color, &s.IsActive, &s.CreatedAt,
			&s.TicketsSold); err != nil {
			return nil, fmt.Errorf("scan ticket type stats: %w", err)
		}
		res = append(res, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}
