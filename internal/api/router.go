package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Deps holds what the router needs. A nil Tokens mounts only the health check.
type Deps struct {
	Handler        *Handler
	Tokens         *TokenProvider
	Limiter        *RateLimiter
	AllowedOrigins []string
	Log            *zap.Logger
}

// NewRouter builds and returns the application router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(AccessLog(deps.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", Health)

	if deps.Tokens == nil || deps.Handler == nil {
		return r
	}

	limit := func(next http.Handler) http.Handler { return next }
	if deps.Limiter != nil {
		limit = deps.Limiter.Limit
	}

	h := deps.Handler
	r.Route("/v1", func(r chi.Router) {
		r.Use(Auth(deps.Tokens))

		r.With(limit).Post("/users", h.Register)
		r.Get("/reservations", h.ListReservations)
		r.Get("/schedule", h.Schedule)
		r.With(limit).Post("/reservations", h.CreateReservation)
		r.With(limit).Delete("/reservations/{id}", h.CancelReservation)
		r.Get("/settings", h.GetSettings)
		r.With(limit).Put("/settings", h.UpdateSettings)
		r.Get("/notifications", h.ListNotifications)
	})

	return r
}
