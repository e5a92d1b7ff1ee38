package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildHandler wires all REST and WebSocket routes onto a chi router.
func buildHandler(gw *Gateway) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Unauthenticated surface.
	r.Get("/health", gw.handleHealth)
	r.Post("/api/auth/login", gw.handleLogin)

	// WebSocket admission does its own credential check: the connection is
	// accepted first so a bad token gets a clean close frame (1008) instead
	// of an HTTP error mid-handshake.
	r.Get("/ws", gw.handleWebSocket)

	// Authenticated API.
	r.Group(func(r chi.Router) {
		r.Use(gw.requireAuth)

		r.Get("/api/auth/me", gw.handleMe)
		r.Get("/api/status", gw.handleStatus)

		r.Route("/api/tickets", func(r chi.Router) {
			r.Get("/", gw.handleListTickets)
			r.Post("/", gw.handleCreateTicket)
			r.Get("/{id}", gw.handleGetTicket)
			r.Put("/{id}", gw.handleUpdateTicket)
			r.Delete("/{id}", gw.requireStaff(gw.handleDeleteTicket))
			r.Post("/{id}/comments", gw.handleAddComment)
			r.Post("/{id}/attachments", gw.handleUploadAttachment)
		})

		r.Route("/api/todos", func(r chi.Router) {
			r.Get("/", gw.handleListTodos)
			r.Post("/", gw.handleCreateTodo)
			r.Get("/{id}", gw.handleGetTodo)
			r.Put("/{id}", gw.handleUpdateTodo)
			r.Delete("/{id}", gw.handleDeleteTodo)
		})

		r.Route("/api/inventory", func(r chi.Router) {
			r.Get("/", gw.handleListInventory)
			r.Post("/", gw.requireStaff(gw.handleCreateInventory))
			r.Get("/{id}", gw.handleGetInventory)
			r.Put("/{id}", gw.requireStaff(gw.handleUpdateInventory))
			r.Delete("/{id}", gw.requireStaff(gw.handleDeleteInventory))
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", gw.requireAdmin(gw.handleListUsers))
			r.Post("/", gw.requireAdmin(gw.handleCreateUser))
			r.Put("/{id}/block", gw.requireAdmin(gw.handleBlockUser))
			r.Put("/{id}/unblock", gw.requireAdmin(gw.handleUnblockUser))
		})

		r.Get("/api/attachments/{id}", gw.handleDownloadAttachment)
	})

	return r
}
