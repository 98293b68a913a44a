package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/lottery-ledger/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware лотерейного сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/wallet", h.GetWallet)
			r.Post("/wallet/deposit", h.Deposit)
			r.Post("/wallet/withdraw", h.Withdraw)

			r.Get("/deposits", h.GetDeposits)
			r.Get("/withdrawals", h.GetWithdrawals)

			r.Get("/tickets", h.GetTickets)
			r.Get("/tickets/{number}", h.GetTicket)

			r.Get("/notifications", h.GetNotifications)
			r.Get("/notifications/unread-count", h.UnreadCount)
			r.Put("/notifications/read-all", h.MarkAllNotificationsRead)
			r.Put("/notifications/{id}/read", h.MarkNotificationRead)
			r.Delete("/notifications/{id}", h.DeleteNotification)
		})
	})

	r.Route("/api/tickets", func(r chi.Router) {
		r.Get("/types", h.ListTicketTypes)
		r.With(h.authMiddleware.Middleware).Post("/purchase", h.PurchaseTickets)
	})

	r.Route("/api/draws", func(r chi.Router) {
		r.Get("/current", h.CurrentDraw)
		r.Get("/history", h.DrawHistory)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)
		r.Use(custommiddleware.AdminOnly(h.service, h.logger))

		r.Get("/dashboard", h.Dashboard)
		r.Get("/users", h.ListUsers)

		r.Get("/withdrawals", h.ListWithdrawals)
		r.Get("/withdrawals/pending", h.PendingWithdrawals)
		r.Post("/withdrawals/{id}/process", h.ProcessWithdrawal)

		r.Get("/draws", h.ListDraws)
		r.Post("/draws/settle", h.SettleDraws)

		r.Get("/notifications", h.AllNotifications)
		r.Post("/notifications", h.BroadcastNotification)
		r.Delete("/notifications/{id}", h.AdminDeleteNotification)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Get("/ticket-types", h.AllTicketTypes)
		r.Post("/ticket-types", h.CreateTicketType)
		r.Get("/ticket-types/stats", h.TicketTypeStats)
		r.Put("/ticket-types/{id}", h.UpdateTicketType)
		r.Delete("/ticket-types/{id}", h.DeleteTicketType)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
