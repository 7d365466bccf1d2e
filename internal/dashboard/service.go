package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/mftcargo/tracker/internal/platform/cache"
	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/shipments"
	"github.com/mftcargo/tracker/internal/status"
)

const recentLimit = 5

// Stats is the landing page summary.
type Stats struct {
	TotalShipments     int                  `json:"totalShipments"`
	ActiveShipments    int                  `json:"activeShipments"`
	DeliveredShipments int                  `json:"deliveredShipments"`
	RecentShipments    []shipments.Shipment `json:"recentShipments"`
}

// Counter counts shipments.
type Counter interface {
	CountAll(ctx context.Context) (int, error)
	// CountStatus counts shipments in code, or not in code when match is false.
	CountStatus(ctx context.Context, code status.Code, match bool) (int, error)
}

// RecentLister lists shipments newest first.
type RecentLister interface {
	List(ctx context.Context, filter shipments.ListFilter) ([]shipments.Shipment, int, error)
}

// Cache is the subset of the JSON cache the dashboard needs.
type Cache interface {
	Key(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader cache.Loader) error
	Refresh(ctx context.Context, key string, loader cache.Loader) error
	Bump(ctx context.Context) error
}

// Service computes dashboard figures.
type Service struct {
	counter Counter
	recent  RecentLister
	cache   Cache
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(counter Counter, recent RecentLister, c Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{counter: counter, recent: recent, cache: c, logger: logger}
}

// Stats returns the cached summary, computing it on a miss.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if err := shared.Authorize(ctx); err != nil {
		return nil, err
	}
	key, err := s.cache.Key(ctx, "stats")
	if err != nil {
		s.logger.Warn("dashboard cache unavailable", slog.Any("error", err))
		return s.compute(ctx)
	}
	var out Stats
	if err := s.cache.FetchJSON(ctx, key, &out, s.load); err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &out, nil
}

// Warm recomputes the cached summary.
func (s *Service) Warm(ctx context.Context) error {
	key, err := s.cache.Key(ctx, "stats")
	if err != nil {
		return fmt.Errorf("dashboard warm: %w", err)
	}
	if err := s.cache.Refresh(ctx, key, s.load); err != nil {
		return fmt.Errorf("dashboard warm: %w", err)
	}
	return nil
}

// ShipmentsChanged drops cached figures after a write.
func (s *Service) ShipmentsChanged(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("dashboard cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) load(ctx context.Context) (any, error) {
	return s.compute(ctx)
}

func (s *Service) compute(ctx context.Context) (*Stats, error) {
	var out Stats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.counter.CountAll(ctx)
		out.TotalShipments = n
		return err
	})
	g.Go(func() error {
		n, err := s.counter.CountStatus(ctx, status.Delivered, false)
		out.ActiveShipments = n
		return err
	})
	g.Go(func() error {
		n, err := s.counter.CountStatus(ctx, status.Delivered, true)
		out.DeliveredShipments = n
		return err
	})
	g.Go(func() error {
		list, _, err := s.recent.List(ctx, shipments.ListFilter{Page: 1, PerPage: recentLimit})
		out.RecentShipments = list
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if out.RecentShipments == nil {
		out.RecentShipments = []shipments.Shipment{}
	}
	return &out, nil
}

// PGCounter implements Counter using PostgreSQL.
type PGCounter struct {
	pool *pgxpool.Pool
}

// NewCounter constructs a PGCounter.
func NewCounter(pool *pgxpool.Pool) *PGCounter {
	return &PGCounter{pool: pool}
}

// CountAll counts every shipment.
func (c *PGCounter) CountAll(ctx context.Context) (int, error) {
	var n int
	err := c.pool.QueryRow(ctx, `SELECT COUNT(*) FROM shipments`).Scan(&n)
	return n, shared.Persistence("count shipments", err)
}

// CountStatus counts shipments by current status.
func (c *PGCounter) CountStatus(ctx context.Context, code status.Code, match bool) (int, error) {
	query := `SELECT COUNT(*) FROM shipments WHERE current_status = $1`
	if !match {
		query = `SELECT COUNT(*) FROM shipments WHERE current_status <> $1`
	}
	var n int
	err := c.pool.QueryRow(ctx, query, code).Scan(&n)
	return n, shared.Persistence("count shipments by status", err)
}

var _ Counter = (*PGCounter)(nil)
