// Package handler содержит HTTP-обработчики API лотерейного сервиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/lottery-ledger/internal/middleware"
	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/repository"
	"github.com/mmeshcher/lottery-ledger/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, username, password, location, referralCode string) (*model.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*model.User, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)

	GetWallet(ctx context.Context, userID int64) (*model.WalletView, error)
	ProcessDeposit(ctx context.Context, userID int64, amount decimal.Decimal, transactionID string) (*model.Deposit, error)
	GetDeposits(ctx context.Context, userID int64) ([]model.Deposit, error)
	CreateWithdrawalRequest(ctx context.Context, userID int64, amount decimal.Decimal, walletAddress string) (*model.Withdrawal, error)
	GetWithdrawals(ctx context.Context, userID int64) ([]model.Withdrawal, error)

	PurchaseTickets(ctx context.Context, userID, ticketTypeID int64, quantity int) (*service.PurchaseResult, error)
	GetTickets(ctx context.Context, userID int64) ([]model.TicketWithDraw, error)
	GetTicket(ctx context.Context, userID int64, number string) (*model.TicketWithDraw, error)
	ListTicketTypes(ctx context.Context, includeInactive bool) ([]model.TicketType, error)

	CurrentDraw(ctx context.Context) (*service.CurrentDrawInfo, error)
	DrawHistory(ctx context.Context, limit int) ([]model.Draw, error)

	Notifications(ctx context.Context, userID int64) ([]model.Notification, error)
	UnreadNotifications(ctx context.Context, userID int64) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) error
	DeleteNotification(ctx context.Context, userID, id int64) error

	PendingWithdrawals(ctx context.Context) ([]model.Withdrawal, error)
	ListWithdrawals(ctx context.Context, filters []repository.Filter, limit, offset int) ([]model.Withdrawal, error)
	ProcessWithdrawal(ctx context.Context, withdrawalID int64, action model.WithdrawalAction) (*model.Withdrawal, error)
	ConductExpiredDraws(ctx context.Context) ([]service.DrawResult, error)
	ListDraws(ctx context.Context, filters []repository.Filter, limit, offset int) ([]model.Draw, error)
	BroadcastNotification(ctx context.Context, title, message string) error
	AllNotifications(ctx context.Context, limit, offset int) ([]model.Notification, error)
	AdminDeleteNotification(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, filters []repository.Filter, limit, offset int) ([]model.UserSummary, error)
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
	Settings(ctx context.Context) (map[string]string, error)
	UpdateSettings(ctx context.Context, values map[string]string) error
	CreateTicketType(ctx context.Context, tt model.TicketType) (*model.TicketType, error)
	UpdateTicketType(ctx context.Context, tt model.TicketType) (*model.TicketType, error)
	DeleteTicketType(ctx context.Context, id int64) error
	TicketTypeStats(ctx context.Context) ([]model.TicketTypeStats, error)
}

// Handler реализует HTTP-обработчики API лотерейного сервиса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// errorStatuses сопоставляет ошибки сервиса кодам ответа. Для них клиент
// получает текст ошибки, остальные ошибки отдаются как 500.
var errorStatuses = []struct {
	err    error
	status int
}{
	{service.ErrInsufficientBalance, http.StatusPaymentRequired},

	{service.ErrDuplicateTransaction, http.StatusConflict},
	{service.ErrUserExists, http.StatusConflict},
	{service.ErrWithdrawalAlreadyProcessed, http.StatusConflict},
	{service.ErrDrawInProgress, http.StatusConflict},
	{service.ErrDrawExpired, http.StatusConflict},
	{service.ErrTicketTypeInUse, http.StatusConflict},

	{service.ErrExceedsMaxWithdrawal, http.StatusUnprocessableEntity},
	{service.ErrInvalidTicketType, http.StatusUnprocessableEntity},

	{service.ErrInvalidAmount, http.StatusBadRequest},
	{service.ErrInvalidTransactionID, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrInvalidWalletAddress, http.StatusBadRequest},
	{service.ErrInvalidAction, http.StatusBadRequest},
	{service.ErrInvalidCredentials, http.StatusBadRequest},
	{service.ErrInvalidTicketTypeDef, http.StatusBadRequest},
	{service.ErrReferralCodeNotFound, http.StatusBadRequest},
	{service.ErrUnknownSetting, http.StatusBadRequest},
	{service.ErrInvalidSetting, http.StatusBadRequest},
	{service.ErrUnsupportedFilter, http.StatusBadRequest},
	{service.ErrInvalidFilter, http.StatusBadRequest},
	{service.ErrInvalidNotification, http.StatusBadRequest},

	{service.ErrWalletNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrWithdrawalNotFound, http.StatusNotFound},
	{service.ErrTicketNotFound, http.StatusNotFound},
	{service.ErrTicketTypeNotFound, http.StatusNotFound},
	{service.ErrNotificationNotFound, http.StatusNotFound},
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			http.Error(w, err.Error(), e.status)
			return
		}
	}

	h.logger.Error(msg, append(fields, zap.Error(err))...)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response error", zap.Error(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return userID, ok
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// intQuery возвращает целочисленный параметр запроса или def, если параметр не задан.
func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
