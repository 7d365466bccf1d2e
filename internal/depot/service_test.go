package depot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mftcargo/tracker/internal/manifests"
	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/shipments"
	"github.com/mftcargo/tracker/internal/status"
)

type fakeManifests struct {
	details map[int64]*manifests.Detail
}

func (f *fakeManifests) Get(ctx context.Context, id int64) (*manifests.Detail, error) {
	d, ok := f.details[id]
	if !ok {
		return nil, manifests.ErrNotFound
	}
	return d, nil
}

type fakeUpdater struct {
	calls []int64
	fail  map[int64]bool
}

func (f *fakeUpdater) UpdateStatus(ctx context.Context, id int64, code status.Code) (*shipments.Detail, error) {
	f.calls = append(f.calls, id)
	if f.fail[id] {
		return nil, shared.Persistence("update shipment", errors.New("timeout"))
	}
	return &shipments.Detail{Shipment: shipments.Shipment{ID: id, CurrentStatus: code}}, nil
}

type scanTally map[string]int

func (s scanTally) ScanRecorded(outcome string) { s[outcome]++ }

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sessionCtx(id string) context.Context {
	return shared.ContextWithPrincipal(context.Background(), &shared.Principal{UserID: 1, Username: "admin", SessionID: id})
}

func newTestService(t *testing.T, updater *fakeUpdater) (*Service, *miniredis.Miniredis, scanTally) {
	t.Helper()
	mr, client := newRedis(t)
	reader := &fakeManifests{details: map[int64]*manifests.Detail{
		5: {Manifest: manifests.Manifest{ID: 5, Name: "2025-W01"}, Shipments: sampleShipments()},
	}}
	tally := scanTally{}
	svc := NewService(NewRedisStore(client, time.Hour), reader, updater, nil, nil).WithScanCounter(tally)
	return svc, mr, tally
}

func TestServiceScanPersistsAcrossCalls(t *testing.T) {
	svc, mr, tally := newTestService(t, &fakeUpdater{})
	ctx := sessionCtx("jti-1")

	res, err := svc.Scan(ctx, "TR-10000001")
	require.NoError(t, err)
	assert.Equal(t, NoManifest, res.Outcome)

	b, err := svc.Select(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "2025-W01", b.ManifestName)
	assert.Equal(t, 7, b.Expected)

	_, err = svc.Scan(ctx, "TR-10000003")
	require.NoError(t, err)
	_, err = svc.Scan(ctx, "TR-10000003")
	require.NoError(t, err)

	board, err := svc.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, board.Scanned)
	require.NotNil(t, board.LastScanned)
	assert.Equal(t, int64(3), board.LastScanned.ID)
	assert.False(t, board.Complete)

	other, err := svc.Board(sessionCtx("jti-2"))
	require.NoError(t, err)
	assert.Nil(t, other.ManifestID)

	assert.True(t, mr.Exists("depot:session:jti-1"))
	assert.Equal(t, time.Hour, mr.TTL("depot:session:jti-1"))
	assert.Equal(t, 2, tally["accepted"])
	assert.Equal(t, 1, tally["no_manifest"])
}

func TestServiceSelectUnknownManifest(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeUpdater{})
	_, err := svc.Select(sessionCtx("s"), 404)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceApprovePartialCommit(t *testing.T) {
	updater := &fakeUpdater{fail: map[int64]bool{2: true}}
	svc, _, _ := newTestService(t, updater)
	ctx := sessionCtx("jti-1")

	_, err := svc.Select(ctx, 5)
	require.NoError(t, err)
	for _, code := range []string{"TR-10000001", "TR-10000001", "TR-10000002", "TR-10000003"} {
		_, err := svc.Scan(ctx, code)
		require.NoError(t, err)
	}

	result, err := svc.Approve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Approved)
	assert.Equal(t, []int64{1}, result.ApprovedIDs)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, int64(2), result.Failed[0].ShipmentID)
	assert.Equal(t, []int64{1, 2}, updater.calls)

	board, err := svc.Board(ctx)
	require.NoError(t, err)
	assert.Zero(t, board.Scanned)
	require.NotNil(t, board.ManifestID)
	assert.Equal(t, int64(5), *board.ManifestID)
}

func TestServiceApproveRequiresManifest(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeUpdater{})
	_, err := svc.Approve(sessionCtx("x"))
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestServiceRequiresPrincipal(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeUpdater{})
	_, err := svc.Scan(context.Background(), "TR-1")
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.ErrorIs(t, svc.Clear(context.Background()), shared.ErrUnauthorized)
}

func TestServiceClearDropsSession(t *testing.T) {
	svc, mr, _ := newTestService(t, &fakeUpdater{})
	ctx := sessionCtx("jti-9")
	_, err := svc.Select(ctx, 5)
	require.NoError(t, err)
	require.True(t, mr.Exists("depot:session:jti-9"))

	require.NoError(t, svc.Clear(ctx))
	assert.False(t, mr.Exists("depot:session:jti-9"))
}

func TestRedisStoreExpires(t *testing.T) {
	mr, client := newRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	id := int64(3)

	require.NoError(t, store.Save(ctx, "s", State{ManifestID: &id, Counts: map[int64]int{7: 2}}))
	loaded, err := store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Counts[7])

	mr.FastForward(2 * time.Minute)
	loaded, err = store.Load(ctx, "s")
	require.NoError(t, err)
	assert.Nil(t, loaded.ManifestID)
	assert.Empty(t, loaded.Counts)
}
