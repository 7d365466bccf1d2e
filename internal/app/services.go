package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mftcargo/tracker/internal/audit"
	audithttp "github.com/mftcargo/tracker/internal/audit/http"
	"github.com/mftcargo/tracker/internal/auth"
	"github.com/mftcargo/tracker/internal/customers"
	"github.com/mftcargo/tracker/internal/dashboard"
	"github.com/mftcargo/tracker/internal/depot"
	"github.com/mftcargo/tracker/internal/finance"
	"github.com/mftcargo/tracker/internal/manifests"
	"github.com/mftcargo/tracker/internal/observability"
	"github.com/mftcargo/tracker/internal/platform/cache"
	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/shipments"
	"github.com/mftcargo/tracker/internal/status"
)

// Services holds the domain services shared by the HTTP server and the worker.
type Services struct {
	Auth        *auth.Service
	Customers   *customers.Service
	Shipments   *shipments.Service
	Manifests   *manifests.Service
	Depot       *depot.Service
	Finance     *finance.Service
	Dashboard   *dashboard.Service
	Idempotency *shared.IdempotencyStore
	Audit       *audit.Service
}

// NewServices wires every domain service against Postgres and Redis.
func NewServices(cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, metrics *observability.Metrics, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	policy, err := status.PolicyByName(cfg.StatusPolicy)
	if err != nil {
		return nil, err
	}
	auditLogger := shared.NewAuditLogger(pool)

	shipmentRepo := shipments.NewRepository(pool)
	dashboardSvc := dashboard.NewService(
		dashboard.NewCounter(pool),
		shipmentRepo,
		cache.NewJSONCache(redisClient, "dashboard", cfg.DashboardCacheTTL),
		logger.With(slog.String("module", "dashboard")),
	)

	customerSvc := customers.NewService(customers.NewRepository(pool), auditLogger, logger.With(slog.String("module", "customers")), cfg.CustomerCodeStart)
	shipmentSvc := shipments.NewService(shipmentRepo, customerSvc, policy, auditLogger, logger.With(slog.String("module", "shipments"))).
		WithEventCounter(metrics).
		WithChangeListener(dashboardSvc)
	manifestSvc := manifests.NewService(manifests.NewRepository(pool), shipmentRepo, auditLogger, logger.With(slog.String("module", "manifests"))).
		WithPolicy(policy).
		WithEventCounter(metrics).
		WithChangeListener(dashboardSvc)
	depotSvc := depot.NewService(depot.NewRedisStore(redisClient, cfg.DepotSessionTTL), manifestSvc, shipmentSvc, auditLogger, logger.With(slog.String("module", "depot"))).
		WithScanCounter(metrics)

	return &Services{
		Auth:        auth.NewService(auth.NewRepository(pool), auth.NewRedisRevoker(redisClient), cfg.JWTSecret, cfg.JWTTTL, logger.With(slog.String("module", "auth"))),
		Customers:   customerSvc,
		Shipments:   shipmentSvc,
		Manifests:   manifestSvc,
		Depot:       depotSvc,
		Finance:     finance.NewService(finance.NewRepository(pool), auditLogger, logger.With(slog.String("module", "finance"))),
		Dashboard:   dashboardSvc,
		Idempotency: shared.NewIdempotencyStore(pool),
		Audit:       audit.NewService(audit.NewRepository(pool)),
	}, nil
}

// Handlers builds the router parameters for s.
func (s *Services) Handlers(cfg *Config, metrics *observability.Metrics, logger *slog.Logger) RouterParams {
	return RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		AuthService:      s.Auth,
		AuthHandler:      auth.NewHandler(logger, s.Auth, auth.CookieConfig{Name: cfg.CookieName, Secure: cfg.IsProduction()}),
		ShipmentsHandler: shipments.NewHandler(logger, s.Shipments, s.Idempotency),
		CustomersHandler: customers.NewHandler(logger, s.Customers),
		ManifestsHandler: manifests.NewHandler(logger, s.Manifests),
		DepotHandler:     depot.NewHandler(logger, s.Depot),
		FinanceHandler:   finance.NewHandler(logger, s.Finance),
		DashboardHandler: dashboard.NewHandler(logger, s.Dashboard),
		AuditHandler:     audithttp.NewHandler(logger, s.Audit),
	}
}
