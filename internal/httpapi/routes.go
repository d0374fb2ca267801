package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/kuhhandel-server/internal/hub"
	"github.com/DoyleJ11/kuhhandel-server/internal/ws"
)

func SetupRoutes(h *hub.Hub, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, logger))

	r.Group(func(r chi.Router) {
		r.Use(RequestLogger(logger))
		r.Post("/sessions", CreateSession(h, logger))
		r.Get("/sessions", ListSessions(h))
		r.Get("/sessions/{code}", GetSession(h))
	})
	return r
}
