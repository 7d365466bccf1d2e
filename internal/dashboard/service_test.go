package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mftcargo/tracker/internal/platform/cache"
	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/shipments"
	"github.com/mftcargo/tracker/internal/status"
)

type fakeStore struct {
	list    []shipments.Shipment
	queries atomic.Int32
	err     error
}

func (f *fakeStore) CountAll(ctx context.Context) (int, error) {
	f.queries.Add(1)
	return len(f.list), f.err
}

func (f *fakeStore) CountStatus(ctx context.Context, code status.Code, match bool) (int, error) {
	f.queries.Add(1)
	n := 0
	for _, s := range f.list {
		if (s.CurrentStatus == code) == match {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) List(ctx context.Context, filter shipments.ListFilter) ([]shipments.Shipment, int, error) {
	f.queries.Add(1)
	end := filter.PerPage
	if end > len(f.list) {
		end = len(f.list)
	}
	return f.list[:end], len(f.list), nil
}

func seeded() *fakeStore {
	codes := []status.Code{status.Delivered, status.Delivered, status.CentralDepotTR, status.CustomsDE, status.DepotReceived, status.Transit, status.Delivered}
	f := &fakeStore{}
	for i, c := range codes {
		f.list = append(f.list, shipments.Shipment{ID: int64(len(codes) - i), TrackingNumber: "TR-1000000" + string(rune('0'+i)), CurrentStatus: c})
	}
	return f
}

func adminCtx() context.Context {
	return shared.ContextWithPrincipal(context.Background(), &shared.Principal{UserID: 1, Username: "admin"})
}

func newTestService(t *testing.T, store *fakeStore) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(store, store, cache.NewJSONCache(client, "dashboard", time.Minute), nil), mr
}

func TestStatsCountsAndRecent(t *testing.T) {
	store := seeded()
	svc, _ := newTestService(t, store)

	stats, err := svc.Stats(adminCtx())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalShipments)
	assert.Equal(t, 3, stats.DeliveredShipments)
	assert.Equal(t, 4, stats.ActiveShipments)
	assert.Len(t, stats.RecentShipments, 5)
	assert.Equal(t, int32(4), store.queries.Load())
}

func TestStatsServedFromCacheUntilChange(t *testing.T) {
	store := seeded()
	svc, _ := newTestService(t, store)
	ctx := adminCtx()

	_, err := svc.Stats(ctx)
	require.NoError(t, err)
	store.list = store.list[:2]

	cached, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, cached.TotalShipments)
	assert.Equal(t, int32(4), store.queries.Load())

	svc.ShipmentsChanged(ctx)
	fresh, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.TotalShipments)
	assert.Equal(t, 2, fresh.DeliveredShipments)
}

func TestWarmRefreshesCache(t *testing.T) {
	store := seeded()
	svc, _ := newTestService(t, store)
	ctx := adminCtx()

	_, err := svc.Stats(ctx)
	require.NoError(t, err)
	store.list = nil

	require.NoError(t, svc.Warm(context.Background()))
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalShipments)
	assert.NotNil(t, stats.RecentShipments)
}

func TestStatsPropagatesStoreError(t *testing.T) {
	store := seeded()
	store.err = shared.Persistence("count", errors.New("down"))
	svc, mr := newTestService(t, store)

	_, err := svc.Stats(adminCtx())
	assert.ErrorIs(t, err, shared.ErrPersistence)
	assert.False(t, mr.Exists("dashboard:stats:v1"))
}

func TestStatsRequiresAuthorization(t *testing.T) {
	svc, _ := newTestService(t, seeded())
	_, err := svc.Stats(context.Background())
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestHandlerStats(t *testing.T) {
	svc, _ := newTestService(t, seeded())
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil).WithContext(adminCtx())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 7, body["totalShipments"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
