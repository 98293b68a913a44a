// Package service реализует бизнес-логику лотерейного сервиса: денежные операции
// над кошельками, продажу билетов и проведение тиражей.
package service

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/lottery-ledger/internal/cache"
	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/repository"
	"github.com/mmeshcher/lottery-ledger/internal/settings"
)

const walletCacheTTL = 30 * time.Second

// Store открывает единицу работы над денежными данными. fn может быть вызвана
// повторно, поэтому не должна оставлять следов вне транзакции до успешного возврата InTx.
type Store interface {
	InTx(ctx context.Context, fn func(repository.Ledger) error) error
}

// Repository описывает чтение и справочные операции вне денежных транзакций.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, u *model.User, referralCode, depositAddress string) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context, filters []repository.Filter, limit, offset int) ([]model.UserSummary, error)

	GetWalletView(ctx context.Context, userID int64) (*model.WalletView, error)
	GetDepositsByUser(ctx context.Context, userID int64) ([]model.Deposit, error)
	GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error)
	ListWithdrawals(ctx context.Context, filters []repository.Filter, limit, offset int) ([]model.Withdrawal, error)
	GetPendingWithdrawals(ctx context.Context) ([]model.Withdrawal, error)

	GetTicketsByUser(ctx context.Context, userID int64) ([]model.TicketWithDraw, error)
	GetTicketByNumber(ctx context.Context, userID int64, number string) (*model.TicketWithDraw, error)
	GetCurrentDraw(ctx context.Context, now time.Time) (*model.Draw, error)
	GetDrawHistory(ctx context.Context, limit int) ([]model.Draw, error)
	ListDraws(ctx context.Context, filters []repository.Filter, limit, offset int) ([]model.Draw, error)

	ListTicketTypes(ctx context.Context, activeOnly bool) ([]model.TicketType, error)
	CreateTicketType(ctx context.Context, tt *model.TicketType) error
	UpdateTicketType(ctx context.Context, tt *model.TicketType) error
	DeleteTicketType(ctx context.Context, id int64) error
	GetTicketTypeStats(ctx context.Context) ([]model.TicketTypeStats, error)

	GetNotifications(ctx context.Context, userID int64, limit int) ([]model.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID int64) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error
	ListAllNotifications(ctx context.Context, limit, offset int) ([]model.Notification, error)
	DeleteNotification(ctx context.Context, userID, id int64) error
	DeleteNotificationByID(ctx context.Context, id int64) error

	GetDashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// Settings предоставляет настройки лотереи, актуальные на момент вызова.
type Settings interface {
	Current(ctx context.Context) (settings.Lottery, error)
	Values(ctx context.Context) (map[string]string, error)
	Update(ctx context.Context, values map[string]string) error
}

// Notifier доставляет уведомления после фиксации операции.
type Notifier interface {
	Notify(ns ...model.Notification)
}

// Service содержит бизнес-логику лотерейного сервиса.
type Service struct {
	repo     Repository
	store    Store
	settings Settings
	notifier Notifier
	cache    *cache.Cache
	logger   *zap.Logger

	now        func() time.Time
	shuffle    func([]model.TicketEntry)
	bcryptCost int
}

// NewService создаёт сервис. cache и notifier могут быть nil.
func NewService(repo Repository, store Store, st Settings, notifier Notifier, c *cache.Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		store:      store,
		settings:   st,
		notifier:   notifier,
		cache:      c,
		logger:     logger,
		now:        time.Now,
		shuffle:    shuffleTickets,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func shuffleTickets(tickets []model.TicketEntry) {
	rand.Shuffle(len(tickets), func(i, j int) {
		tickets[i], tickets[j] = tickets[j], tickets[i]
	})
}

func (s *Service) notify(ns ...model.Notification) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ns...)
}

// invalidateWallets сбрасывает кэш кошельков после фиксации операции.
func (s *Service) invalidateWallets(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cache.WalletKey(id))
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), keys...); err != nil {
		s.logger.Warn("wallet cache invalidation failed", zap.Error(err), zap.Int64s("userIDs", userIDs))
	}
}
