package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/notify"
	"github.com/mmeshcher/lottery-ledger/internal/repository"
)

const (
	defaultPageSize    = 50
	maxPageSize        = 500
	notificationsLimit = 20
)

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListUsers возвращает пользователей по фильтрам.
func (s *Service) ListUsers(ctx context.Context, filters []repository.Filter, limit, offset int) ([]model.UserSummary, error) {
	limit, offset = page(limit, offset)
	return s.repo.ListUsers(ctx, filters, limit, offset)
}

// ListDraws возвращает тиражи в любом статусе: активные, завершённые и отменённые.
func (s *Service) ListDraws(ctx context.Context, filters []repository.Filter, limit, offset int) ([]model.Draw, error) {
	limit, offset = page(limit, offset)
	return s.repo.ListDraws(ctx, filters, limit, offset)
}

// DashboardStats возвращает агрегаты для панели администратора.
func (s *Service) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	return s.repo.GetDashboardStats(ctx)
}

// Settings возвращает действующие значения настроек лотереи.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	return s.settings.Values(ctx)
}

// UpdateSettings меняет настройки лотереи. Новые значения действуют для следующих операций.
func (s *Service) UpdateSettings(ctx context.Context, values map[string]string) error {
	if err := s.settings.Update(ctx, values); err != nil {
		return err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	s.logger.Info("settings updated", zap.Strings("keys", keys))
	return nil
}

// Notifications возвращает последние уведомления пользователя.
func (s *Service) Notifications(ctx context.Context, userID int64) ([]model.Notification, error) {
	return s.repo.GetNotifications(ctx, userID, notificationsLimit)
}

// UnreadNotifications возвращает количество непрочитанных уведомлений.
func (s *Service) UnreadNotifications(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountUnreadNotifications(ctx, userID)
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, userID, id int64) error {
	return s.repo.MarkNotificationRead(ctx, userID, id)
}

// MarkAllNotificationsRead отмечает все уведомления пользователя прочитанными.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

// DeleteNotification удаляет личное уведомление пользователя.
func (s *Service) DeleteNotification(ctx context.Context, userID, id int64) error {
	return s.repo.DeleteNotification(ctx, userID, id)
}

// AllNotifications возвращает все уведомления системы.
func (s *Service) AllNotifications(ctx context.Context, limit, offset int) ([]model.Notification, error) {
	limit, offset = page(limit, offset)
	return s.repo.ListAllNotifications(ctx, limit, offset)
}

// AdminDeleteNotification удаляет любое уведомление, в том числе глобальное.
func (s *Service) AdminDeleteNotification(ctx context.Context, id int64) error {
	if err := s.repo.DeleteNotificationByID(ctx, id); err != nil {
		return err
	}
	s.logger.Info("notification deleted", zap.Int64("notificationID", id))
	return nil
}

// BroadcastNotification рассылает глобальное уведомление всем пользователям.
func (s *Service) BroadcastNotification(ctx context.Context, title, message string) error {
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" || message == "" {
		return ErrInvalidNotification
	}

	s.notify(notify.Global(notify.TypeAnnounce, title, message))
	s.logger.Info("global notification queued", zap.String("title", title))
	return nil
}
