package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/pratik-mahalle/assetwatch/internal/api/handlers"
	"github.com/pratik-mahalle/assetwatch/internal/api/middleware"
	"github.com/pratik-mahalle/assetwatch/internal/auth"
	"github.com/pratik-mahalle/assetwatch/internal/config"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/errors"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/logger"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/metrics"
	"github.com/pratik-mahalle/assetwatch/internal/pkg/utils"
)

type Handlers struct {
	Health *handlers.HealthHandler
	Alert  *handlers.AlertHandler
}

func New(cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)

	// Global middleware; metrics wraps the request logger so AddLogField reaches it
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID())
	r.Use(metrics.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, errors.NotFound("Route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorMessage(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	// Public routes
	r.Group(func(r chi.Router) {
		r.Get("/swagger/*", httpSwagger.WrapHandler)
		r.Handle("/metrics", metrics.Handler())

		r.Get("/health", h.Health.Healthz)
		r.Get("/healthz", h.Health.Healthz)
		r.Get("/readyz", h.Health.Readyz)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
		r.Use(middleware.RateLimit(limiter))

		alerts := func(r chi.Router) {
			r.Get("/preferences", h.Alert.GetPreferences)
			r.Put("/preferences", h.Alert.UpdatePreferences)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(auth.PermissionReportsView))
				r.Get("/", h.Alert.List)
				r.Get("/{id}", h.Alert.Get)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(auth.PermissionAssetsManage))
				r.Post("/", h.Alert.PerformAction)
				r.Delete("/{id}", h.Alert.Dismiss)
				r.Post("/escalations/sweep", h.Alert.Sweep)
			})
		}

		r.Route("/api/v1/alerts", alerts)
		// Alias for frontend compatibility
		r.Route("/api/alerts", alerts)
	})

	return r
}
