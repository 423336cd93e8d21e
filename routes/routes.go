package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/andon-board/app"
	"github.com/upb/andon-board/handlers"
	"github.com/upb/andon-board/middleware"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services/ratelimit"
	"github.com/upb/andon-board/utils"
)

// requestTimeout caps the time any single request may spend in a handler
const requestTimeout = 60 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger

	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger, deps.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.HealthChecks(), logger).WithEventQueue(deps.Events)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)
	if cfg.Observability.MetricsEnabled && deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	tenantHandler := handlers.NewTenantHandler(deps.Tenants, logger)
	authHandler := handlers.NewAuthHandler(deps.Auth, cfg.IsProduction(), logger)
	callHandler := handlers.NewCallHandler(deps.Calls, deps.Views, deps.Events, cfg.Analytics.Location(), logger)
	boardHandler := handlers.NewBoardHandler(deps.Views, deps.Planner, logger)
	referenceHandler := handlers.NewReferenceHandler(deps.Views, logger)
	analyticsHandler := handlers.NewAnalyticsHandler(deps.Analytics, logger)
	adminHandler := handlers.NewAdminHandler(deps.Admin, logger)

	limits := cfg.RateLimit
	scanLimit := rateLimit(deps, ratelimit.Rule{Scope: "scan", PerMinute: limits.ScanPerMinute, PerHour: limits.ScanPerHour})
	loginLimit := rateLimit(deps, ratelimit.Rule{Scope: "login", PerMinute: limits.LoginPerMinute, PerHour: limits.LoginPerHour})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(loginLimit).Post("/tenants", tenantHandler.HandleRegister)

		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimit).Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
		})

		r.Route("/t/{"+middleware.SlugParam+"}", func(r chi.Router) {
			r.Use(deps.TenantMiddleware.ResolveTenant)

			// Public: the scan-and-report form and the tenant header
			r.Get("/", tenantHandler.HandleGetTenant)
			r.Get("/machines/by-code/{code}", referenceHandler.HandleMachineByCode)
			r.With(scanLimit).Post("/calls", callHandler.HandleCreate)
			r.Get("/locations", referenceHandler.HandleLocations)
			r.Get("/divisions", referenceHandler.HandleDivisions)

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireAuth)
				r.Use(deps.AuthMiddleware.RequireTenantMatch)

				r.Get("/me", authHandler.HandleMe)

				r.Get("/calls", callHandler.HandleList)
				r.Route("/calls/{id}", func(r chi.Router) {
					r.Get("/", callHandler.HandleGet)
					r.Get("/events", callHandler.HandleCallEvents)
					r.Post("/respond", callHandler.HandleRespond)
					r.Post("/resolve", callHandler.HandleResolve)
				})

				r.Get("/divisions/{id}/calls", boardHandler.HandleDivisionCalls)
				r.Post("/divisions/{id}/announcements", boardHandler.HandleAnnouncements)

				r.Get("/machines", referenceHandler.HandleMachines)
				r.Get("/dashboard/stats", referenceHandler.HandleDashboardStats)

				r.Route("/analytics", func(r chi.Router) {
					r.Get("/daily", analyticsHandler.HandleDaily)
					r.Get("/summary", analyticsHandler.HandleSummary)
					r.Get("/downtime/hourly", analyticsHandler.HandleHourlyDowntime)
					r.Get("/machines", analyticsHandler.HandleMachineReports)
					r.Get("/locations", analyticsHandler.HandleLocationReports)
				})

				r.Group(func(r chi.Router) {
					r.Use(deps.AuthMiddleware.RequireRole(models.RoleAdmin))
					r.Post("/locations", adminHandler.HandleCreateLocation)
					r.Post("/machines", adminHandler.HandleCreateMachine)
					r.Post("/divisions", adminHandler.HandleCreateDivision)
					r.Post("/users", adminHandler.HandleCreateUser)
					r.Get("/users", adminHandler.HandleListUsers)
					r.Get("/events", callHandler.HandleTenantEvents)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "Endpoint not found")
	})

	return r
}

// rateLimit returns the limiter middleware for rule, or a pass-through when
// rate limiting is off.
func rateLimit(deps *app.Dependencies, rule ratelimit.Rule) func(http.Handler) http.Handler {
	if deps.RateLimiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(deps.RateLimiter, rule, deps.Metrics, deps.Logger)
}
