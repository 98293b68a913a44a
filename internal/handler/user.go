package handler

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/service"
)

type registerRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Location     string `json:"location"`
	ReferralCode string `json:"referralCode"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Location     string     `json:"location"`
	Role         model.Role `json:"role"`
	ReferralCode string     `json:"referralCode"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Username:     u.Username,
		Location:     u.Location,
		Role:         u.Role,
		ReferralCode: u.ReferralCode,
	}
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.Username, req.Password, req.Location, req.ReferralCode)
	if err != nil {
		h.writeError(w, err, "register user error", zap.String("username", req.Username))
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	h.writeJSON(w, http.StatusOK, newUserResponse(u))
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, u.ID)
	h.writeJSON(w, http.StatusOK, newUserResponse(u))
}

// Logout завершает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// GetWallet возвращает кошелёк текущего пользователя.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get wallet error", zap.Int64("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusOK, wallet)
}

type depositRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transactionId"`
}

// Deposit зачисляет подтверждённую внешнюю транзакцию на кошелёк.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req depositRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	dep, err := h.service.ProcessDeposit(r.Context(), userID, req.Amount, req.TransactionID)
	if err != nil {
		h.writeError(w, err, "deposit error", zap.Int64("userID", userID), zap.String("transactionID", req.TransactionID))
		return
	}

	h.writeJSON(w, http.StatusCreated, dep)
}

// GetDeposits возвращает историю пополнений текущего пользователя.
func (h *Handler) GetDeposits(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	deposits, err := h.service.GetDeposits(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get deposits error", zap.Int64("userID", userID))
		return
	}

	if len(deposits) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, deposits)
}

type withdrawRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"walletAddress"`
}

// Withdraw создаёт заявку на вывод и резервирует сумму на кошельке.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	wd, err := h.service.CreateWithdrawalRequest(r.Context(), userID, req.Amount, req.WalletAddress)
	if err != nil {
		h.writeError(w, err, "withdraw error", zap.Int64("userID", userID), zap.String("amount", req.Amount.String()))
		return
	}

	h.writeJSON(w, http.StatusCreated, wd)
}

// GetWithdrawals возвращает историю выводов текущего пользователя.
func (h *Handler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	withdrawals, err := h.service.GetWithdrawals(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get withdrawals error", zap.Int64("userID", userID))
		return
	}

	if len(withdrawals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, withdrawals)
}

// GetNotifications возвращает последние уведомления пользователя.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	ns, err := h.service.Notifications(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get notifications error", zap.Int64("userID", userID))
		return
	}
	if ns == nil {
		ns = []model.Notification{}
	}
	h.writeJSON(w, http.StatusOK, ns)
}

// UnreadCount возвращает количество непрочитанных уведомлений.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	n, err := h.service.UnreadNotifications(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "unread notifications error", zap.Int64("userID", userID))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"unread": n})
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), userID, id); err != nil {
		h.writeError(w, err, "mark notification error", zap.Int64("userID", userID), zap.Int64("notificationID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead отмечает все уведомления пользователя прочитанными.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkAllNotificationsRead(r.Context(), userID); err != nil {
		h.writeError(w, err, "mark all notifications error", zap.Int64("userID", userID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNotification удаляет личное уведомление пользователя.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteNotification(r.Context(), userID, id); err != nil {
		h.writeError(w, err, "delete notification error", zap.Int64("userID", userID), zap.Int64("notificationID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
