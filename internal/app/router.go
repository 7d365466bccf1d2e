package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/mftcargo/tracker/internal/audit/http"
	"github.com/mftcargo/tracker/internal/auth"
	"github.com/mftcargo/tracker/internal/customers"
	"github.com/mftcargo/tracker/internal/dashboard"
	"github.com/mftcargo/tracker/internal/depot"
	"github.com/mftcargo/tracker/internal/finance"
	"github.com/mftcargo/tracker/internal/manifests"
	"github.com/mftcargo/tracker/internal/observability"
	"github.com/mftcargo/tracker/internal/shipments"
	"github.com/mftcargo/tracker/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	AuthService      *auth.Service
	AuthHandler      *auth.Handler
	ShipmentsHandler *shipments.Handler
	CustomersHandler *customers.Handler
	ManifestsHandler *manifests.Handler
	DepotHandler     *depot.Handler
	FinanceHandler   *finance.Handler
	DashboardHandler *dashboard.Handler
	AuditHandler     *audithttp.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with tracker defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	cookieName := auth.DefaultCookieName
	publicLimit := 0
	if params.Config != nil {
		if params.Config.CookieName != "" {
			cookieName = params.Config.CookieName
		}
		publicLimit = params.Config.PublicRateLimit
	}

	r.Route("/api", func(r chi.Router) {
		if params.ShipmentsHandler != nil {
			r.Route("/track", func(r chi.Router) {
				r.Use(PublicRateLimit(publicLimit))
				params.ShipmentsHandler.MountPublicRoutes(r)
			})
		}
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(params.AuthService, cookieName, params.Logger))
			r.Use(auth.RequireAdmin)
			if params.ShipmentsHandler != nil {
				r.Route("/shipments", params.ShipmentsHandler.MountRoutes)
			}
			if params.CustomersHandler != nil {
				r.Route("/customers", params.CustomersHandler.MountRoutes)
			}
			if params.ManifestsHandler != nil {
				r.Route("/manifests", params.ManifestsHandler.MountRoutes)
			}
			if params.DepotHandler != nil {
				r.Route("/depot", params.DepotHandler.MountRoutes)
			}
			if params.FinanceHandler != nil {
				r.Route("/finance", params.FinanceHandler.MountRoutes)
			}
			if params.DashboardHandler != nil {
				r.Route("/dashboard", params.DashboardHandler.MountRoutes)
			}
			if params.AuditHandler != nil {
				r.Route("/audit", params.AuditHandler.MountRoutes)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
