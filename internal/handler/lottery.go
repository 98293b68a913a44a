package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/lottery-ledger/internal/model"
)

type purchaseRequest struct {
	TicketTypeID int64 `json:"ticketTypeId"`
	Quantity     int   `json:"quantity"`
}

// PurchaseTickets покупает билеты текущего тиража.
func (h *Handler) PurchaseTickets(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req purchaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.PurchaseTickets(r.Context(), userID, req.TicketTypeID, req.Quantity)
	if err != nil {
		h.writeError(w, err, "purchase tickets error",
			zap.Int64("userID", userID),
			zap.Int64("ticketTypeID", req.TicketTypeID),
			zap.Int("quantity", req.Quantity),
		)
		return
	}

	h.writeJSON(w, http.StatusCreated, res)
}

// GetTickets возвращает билеты текущего пользователя.
func (h *Handler) GetTickets(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	tickets, err := h.service.GetTickets(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get tickets error", zap.Int64("userID", userID))
		return
	}

	if len(tickets) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, tickets)
}

// GetTicket возвращает билет пользователя по номеру.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	number := chi.URLParam(r, "number")

	ticket, err := h.service.GetTicket(r.Context(), userID, number)
	if err != nil {
		h.writeError(w, err, "get ticket error", zap.Int64("userID", userID), zap.String("ticket", number))
		return
	}
	h.writeJSON(w, http.StatusOK, ticket)
}

// ListTicketTypes возвращает виды билетов, доступные для покупки.
func (h *Handler) ListTicketTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListTicketTypes(r.Context(), false)
	if err != nil {
		h.writeError(w, err, "list ticket types error")
		return
	}
	if types == nil {
		types = []model.TicketType{}
	}
	h.writeJSON(w, http.StatusOK, types)
}

// CurrentDraw возвращает открытый тираж и призы.
func (h *Handler) CurrentDraw(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.CurrentDraw(r.Context())
	if err != nil {
		h.writeError(w, err, "current draw error")
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// DrawHistory возвращает завершённые тиражи, новые первыми.
func (h *Handler) DrawHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	draws, err := h.service.DrawHistory(r.Context(), limit)
	if err != nil {
		h.writeError(w, err, "draw history error")
		return
	}
	if draws == nil {
		draws = []model.Draw{}
	}
	h.writeJSON(w, http.StatusOK, draws)
}
