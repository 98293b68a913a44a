package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/lottery-ledger/internal/model"
)

// SaveNotification сохраняет уведомление и заполняет n.ID и n.CreatedAt.
func (r *PostgresRepository) SaveNotification(ctx context.Context, n *model.Notification) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (user_id, title, message, type, is_global)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		n.UserID, n.Title, n.Message, n.Type, n.IsGlobal,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetNotifications возвращает личные и глобальные уведомления пользователя, новые первыми.
func (r *PostgresRepository) GetNotifications(ctx context.Context, userID int64, limit int) ([]model.Notification, error) {
	return r.queryNotifications(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE user_id = $1 OR is_global
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
}

// ListAllNotifications возвращает все уведомления системы для администратора, новые первыми.
func (r *PostgresRepository) ListAllNotifications(ctx context.Context, limit, offset int) ([]model.Notification, error) {
	return r.queryNotifications(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
}

const notificationColumns = `id, user_id, title, message, type, is_global, is_read, created_at`

func (r *PostgresRepository) queryNotifications(ctx context.Context, query string, args ...any) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsGlobal, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// CountUnreadNotifications возвращает количество непрочитанных личных уведомлений.
func (r *PostgresRepository) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

// MarkNotificationRead отмечает личное уведомление пользователя прочитанным.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllNotificationsRead отмечает все личные уведомления пользователя прочитанными.
func (r *PostgresRepository) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// DeleteNotification удаляет личное уведомление пользователя.
// Глобальные уведомления и чужие записи не затрагиваются.
func (r *PostgresRepository) DeleteNotification(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeleteNotificationByID удаляет любое уведомление, включая глобальные.
func (r *PostgresRepository) DeleteNotificationByID(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
