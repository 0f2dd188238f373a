package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"agentdesk/internal/config"
	"agentdesk/internal/handler"
	"agentdesk/internal/metrics"
	"agentdesk/internal/middleware"
	"agentdesk/internal/model"
	"agentdesk/internal/websocket"
)

type Handlers struct {
	Auth      *handler.AuthHandler
	Desk      *handler.DeskHandler
	Deletions *handler.DeletionHandler
	// Metrics is optional; nil leaves /metrics unmounted.
	Metrics *metrics.Metrics
}

// HealthFunc reports a dependency failure; nil means healthy.
type HealthFunc func(ctx context.Context) error

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers, hub *websocket.Hub, health HealthFunc) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(middleware.RateLimits{
		General:  cfg.RateLimitRPM,
		Auth:     cfg.AuthRateLimitRPM,
		Deletion: cfg.DeletionRateLimitRPM,
	})

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("degraded"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		// websocket upgrades must not sit behind the timeout handler
		if hub != nil {
			api.With(authMiddleware.RequireAuthOrQueryToken).Get("/ws", hub.ServeWS(cfg.CORSOrigins))
		}

		api.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(cfg.RequestTimeout))

			api.Route("/auth", func(auth chi.Router) {
				auth.Post("/login", h.Auth.Login)
				auth.With(authMiddleware.RequireAuth).Get("/me", h.Auth.Me)
			})

			api.Group(func(desk chi.Router) {
				desk.Use(authMiddleware.RequireAuth)
				admin := authMiddleware.RequireRoles(model.RoleAdmin)

				desk.Get("/lists", h.Desk.Lists)
				desk.Route("/lists/{resource}", func(list chi.Router) {
					list.Get("/records", h.Desk.Records)
					list.Post("/refresh", h.Desk.Refresh)
					list.Get("/deletion", h.Desk.ActiveDeletion)
					list.With(admin).Post("/deletion", h.Desk.RequestDelete)
					list.With(admin).Post("/deletion/undo", h.Desk.Undo)
					list.With(admin).Post("/deletion/finalize", h.Desk.Finalize)
				})
				desk.With(admin).Get("/deletions", h.Deletions.List)
			})
		})
	})

	return r
}
