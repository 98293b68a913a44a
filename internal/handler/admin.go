package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/repository"
	"github.com/mmeshcher/lottery-ledger/internal/service"
)

var (
	withdrawalQueryFilters = []repository.FilterField{repository.FilterWithdrawalStatus, repository.FilterWithdrawalUser}
	userQueryFilters       = []repository.FilterField{repository.FilterUserRole, repository.FilterUserSearch}
	drawQueryFilters       = []repository.FilterField{repository.FilterDrawStatus}
)

// filtersFromQuery собирает фильтры из параметров запроса. Имя параметра совпадает с именем поля.
func filtersFromQuery(r *http.Request, fields []repository.FilterField) []repository.Filter {
	q := r.URL.Query()

	var filters []repository.Filter
	for _, f := range fields {
		if v := q.Get(f.String()); v != "" {
			filters = append(filters, repository.Filter{Field: f, Value: v})
		}
	}
	return filters
}

func pageFromQuery(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, 0, false
	}
	offset, err := intQuery(r, "offset", 0)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, 0, false
	}
	return limit, offset, true
}

// PendingWithdrawals возвращает заявки на вывод, ожидающие решения, старые первыми.
func (h *Handler) PendingWithdrawals(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.PendingWithdrawals(r.Context())
	if err != nil {
		h.writeError(w, err, "pending withdrawals error")
		return
	}
	if list == nil {
		list = []model.Withdrawal{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// ListWithdrawals возвращает заявки на вывод по фильтрам status и userId.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageFromQuery(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListWithdrawals(r.Context(), filtersFromQuery(r, withdrawalQueryFilters), limit, offset)
	if err != nil {
		h.writeError(w, err, "list withdrawals error")
		return
	}
	if list == nil {
		list = []model.Withdrawal{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

type processWithdrawalRequest struct {
	Action model.WithdrawalAction `json:"action"`
}

// ProcessWithdrawal подтверждает или отклоняет заявку на вывод.
func (h *Handler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req processWithdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	wd, err := h.service.ProcessWithdrawal(r.Context(), id, req.Action)
	if err != nil {
		h.writeError(w, err, "process withdrawal error", zap.Int64("withdrawalID", id), zap.String("action", string(req.Action)))
		return
	}
	h.writeJSON(w, http.StatusOK, wd)
}

// SettleDraws проводит все истёкшие тиражи.
func (h *Handler) SettleDraws(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.ConductExpiredDraws(r.Context())
	if errors.Is(err, service.ErrNoExpiredDraws) {
		h.writeJSON(w, http.StatusOK, []service.DrawResult{})
		return
	}
	if err != nil {
		h.writeError(w, err, "settle draws error")
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

// ListUsers возвращает пользователей по фильтрам role и search.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageFromQuery(w, r)
	if !ok {
		return
	}

	users, err := h.service.ListUsers(r.Context(), filtersFromQuery(r, userQueryFilters), limit, offset)
	if err != nil {
		h.writeError(w, err, "list users error")
		return
	}
	if users == nil {
		users = []model.UserSummary{}
	}
	h.writeJSON(w, http.StatusOK, users)
}

// Dashboard возвращает сводные показатели.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.DashboardStats(r.Context())
	if err != nil {
		h.writeError(w, err, "dashboard stats error")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// GetSettings возвращает действующие настройки лотереи.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	values, err := h.service.Settings(r.Context())
	if err != nil {
		h.writeError(w, err, "get settings error")
		return
	}
	h.writeJSON(w, http.StatusOK, values)
}

// UpdateSettings меняет настройки лотереи.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if !decodeJSON(w, r, &values) {
		return
	}
	if len(values) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateSettings(r.Context(), values); err != nil {
		h.writeError(w, err, "update settings error")
		return
	}
	h.GetSettings(w, r)
}

// AllTicketTypes возвращает все виды билетов, включая неактивные.
func (h *Handler) AllTicketTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListTicketTypes(r.Context(), true)
	if err != nil {
		h.writeError(w, err, "list ticket types error")
		return
	}
	if types == nil {
		types = []model.TicketType{}
	}
	h.writeJSON(w, http.StatusOK, types)
}

// CreateTicketType добавляет вид билета.
func (h *Handler) CreateTicketType(w http.ResponseWriter, r *http.Request) {
	var req model.TicketType
	if !decodeJSON(w, r, &req) {
		return
	}

	tt, err := h.service.CreateTicketType(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "create ticket type error", zap.String("name", req.Name))
		return
	}
	h.writeJSON(w, http.StatusCreated, tt)
}

// UpdateTicketType перезаписывает вид билета.
func (h *Handler) UpdateTicketType(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	var req model.TicketType
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = id

	tt, err := h.service.UpdateTicketType(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "update ticket type error", zap.Int64("ticketTypeID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, tt)
}

// DeleteTicketType удаляет вид билета без продаж.
func (h *Handler) DeleteTicketType(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteTicketType(r.Context(), id); err != nil {
		h.writeError(w, err, "delete ticket type error", zap.Int64("ticketTypeID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TicketTypeStats возвращает продажи по видам билетов.
func (h *Handler) TicketTypeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.TicketTypeStats(r.Context())
	if err != nil {
		h.writeError(w, err, "ticket type stats error")
		return
	}
	if stats == nil {
		stats = []model.TicketTypeStats{}
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// ListDraws возвращает тиражи в любом статусе с фильтром drawStatus.
func (h *Handler) ListDraws(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageFromQuery(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListDraws(r.Context(), filtersFromQuery(r, drawQueryFilters), limit, offset)
	if err != nil {
		h.writeError(w, err, "list draws error")
		return
	}
	if list == nil {
		list = []model.Draw{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

// AllNotifications возвращает все уведомления системы.
func (h *Handler) AllNotifications(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := pageFromQuery(w, r)
	if !ok {
		return
	}

	list, err := h.service.AllNotifications(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err, "list notifications error")
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	h.writeJSON(w, http.StatusOK, list)
}

type broadcastRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// BroadcastNotification рассылает глобальное уведомление.
func (h *Handler) BroadcastNotification(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.BroadcastNotification(r.Context(), req.Title, req.Message); err != nil {
		h.writeError(w, err, "broadcast notification error")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// AdminDeleteNotification удаляет любое уведомление по идентификатору.
func (h *Handler) AdminDeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.AdminDeleteNotification(r.Context(), id); err != nil {
		h.writeError(w, err, "delete notification error", zap.Int64("notificationID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
