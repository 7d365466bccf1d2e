package manifests

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/shipments"
	"github.com/mftcargo/tracker/internal/status"
)

// ============================================================================
// MOCK STORE
// ============================================================================

type memShipment struct {
	status     status.Code
	manifestID *int64
}

type mockStore struct {
	manifests map[int64]*Manifest
	shipments map[int64]*memShipment
	events    []shipments.Event
	audits    []shared.AuditLog
	nextID    int64

	failSetStatus bool
}

func newMockStore() *mockStore {
	return &mockStore{manifests: make(map[int64]*Manifest), shipments: make(map[int64]*memShipment), nextID: 1}
}

func (m *mockStore) addShipment(id int64, code status.Code) {
	m.shipments[id] = &memShipment{status: code}
}

func (m *mockStore) Get(ctx context.Context, id int64) (*Manifest, error) {
	mf, ok := m.manifests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mf
	return &cp, nil
}

func (m *mockStore) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	for _, mf := range m.manifests {
		ids, _ := m.MemberIDs(ctx, mf.ID)
		out = append(out, Summary{Manifest: *mf, ShipmentCount: len(ids)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockStore) ListOpenStaged(ctx context.Context) ([]Manifest, error) {
	var out []Manifest
	for _, mf := range m.manifests {
		if mf.Status == status.ManifestOpen && mf.CurrentStage != nil {
			out = append(out, *mf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) MemberIDs(ctx context.Context, id int64) ([]int64, error) {
	var ids []int64
	for sid, s := range m.shipments {
		if s.manifestID != nil && *s.manifestID == id {
			ids = append(ids, sid)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *mockStore) Create(ctx context.Context, mf Manifest) (*Manifest, error) {
	mf.ID = m.nextID
	m.nextID++
	m.manifests[mf.ID] = &mf
	cp := mf
	return &cp, nil
}

func (m *mockStore) Update(ctx context.Context, id int64, updates map[string]any) (*Manifest, error) {
	mf, ok := m.manifests[id]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "status":
			mf.Status = status.ManifestStatus(v.(string))
		case "current_stage":
			if v == nil {
				mf.CurrentStage = nil
			} else {
				code := status.Code(v.(string))
				mf.CurrentStage = &code
			}
		case "truck_plate":
			mf.TruckPlate = v.(string)
		case "notes":
			mf.Notes = v.(string)
		}
	}
	cp := *mf
	return &cp, nil
}

func (m *mockStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *mockStore) Statuses(ctx context.Context, ids []int64) (map[int64]status.Code, error) {
	out := make(map[int64]status.Code, len(ids))
	for _, id := range ids {
		if s, ok := m.shipments[id]; ok {
			out[id] = s.status
		}
	}
	return out, nil
}

func (m *mockStore) SetStatus(ctx context.Context, ids []int64, code status.Code) ([]int64, error) {
	if m.failSetStatus {
		return nil, shared.Persistence("set shipment status", errors.New("deadlock detected"))
	}
	var updated []int64
	for _, id := range ids {
		s, ok := m.shipments[id]
		if ok && s.status != code {
			s.status = code
			updated = append(updated, id)
		}
	}
	return updated, nil
}

func (m *mockStore) Assign(ctx context.Context, manifestID int64, ids []int64) ([]int64, error) {
	var assigned []int64
	for _, id := range ids {
		if s, ok := m.shipments[id]; ok {
			mid := manifestID
			s.manifestID = &mid
			assigned = append(assigned, id)
		}
	}
	return assigned, nil
}

func (m *mockStore) Unassign(ctx context.Context, manifestID int64, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		if s, ok := m.shipments[id]; ok && s.manifestID != nil && *s.manifestID == manifestID {
			s.manifestID = nil
			n++
		}
	}
	return n, nil
}

func (m *mockStore) Orphan(ctx context.Context, manifestID int64) (int64, error) {
	ids, _ := m.MemberIDs(ctx, manifestID)
	return m.Unassign(ctx, manifestID, ids)
}

func (m *mockStore) AppendEvents(ctx context.Context, events []shipments.Event) error {
	m.events = append(m.events, events...)
	return nil
}

func (m *mockStore) Delete(ctx context.Context, id int64) error {
	if _, ok := m.manifests[id]; !ok {
		return ErrNotFound
	}
	delete(m.manifests, id)
	return nil
}

func (m *mockStore) ListByManifest(ctx context.Context, manifestID int64) ([]shipments.Shipment, error) {
	ids, _ := m.MemberIDs(ctx, manifestID)
	out := make([]shipments.Shipment, 0, len(ids))
	for _, id := range ids {
		mid := manifestID
		out = append(out, shipments.Shipment{ID: id, CurrentStatus: m.shipments[id].status, ManifestID: &mid, Quantity: 1})
	}
	return out, nil
}

func (m *mockStore) Record(ctx context.Context, log shared.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

func adminCtx() context.Context {
	return shared.ContextWithPrincipal(context.Background(), &shared.Principal{UserID: 1, Username: "admin"})
}

func strPtr(s string) *string { return &s }

func newTestService(store *mockStore) *Service {
	fixed := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	return NewService(store, store, store, nil).WithClock(func() time.Time { return fixed })
}

// ============================================================================
// TESTS
// ============================================================================

func TestWeekLabel(t *testing.T) {
	assert.Equal(t, "2025-W01", WeekLabel(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-W12", WeekLabel(time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-W53", WeekLabel(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCreateDefaultsToWeekLabelAndOpen(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)

	m, err := svc.Create(adminCtx(), CreateInput{TruckPlate: "34 abc 12", Notes: "ilk sefer"})
	require.NoError(t, err)
	assert.Equal(t, "2025-W01", m.Name)
	assert.Equal(t, status.ManifestOpen, m.Status)
	assert.Equal(t, "34 ABC 12", m.TruckPlate)
	assert.Equal(t, "İLK SEFER", m.Notes)
}

func TestCreateRejectsInvertedDates(t *testing.T) {
	svc := newTestService(newMockStore())
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	_, err := svc.Create(adminCtx(), CreateInput{StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestStageCascadeEndToEnd(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()

	m, err := svc.Create(ctx, CreateInput{Name: "2025-W01"})
	require.NoError(t, err)
	for id := int64(1); id <= 3; id++ {
		store.addShipment(id, status.CentralDepotTR)
	}
	n, err := svc.AssignShipments(ctx, m.ID, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Empty(t, store.events, "no stage yet, assignment must not emit events")

	_, result, err := svc.UpdateStage(ctx, m.ID, Patch{CurrentStage: strPtr("CUSTOMS_DE")})
	require.NoError(t, err)
	assert.Equal(t, CascadeResult{Stage: status.CustomsDE, Matched: 3, Updated: 3, Events: 3}, result)
	for id := int64(1); id <= 3; id++ {
		assert.Equal(t, status.CustomsDE, store.shipments[id].status)
	}
	require.Len(t, store.events, 3)
	for _, e := range store.events {
		assert.Equal(t, status.CustomsDE, e.Status)
		assert.Equal(t, status.CustomsDE.Label(), e.Description)
		assert.Empty(t, e.Location)
	}
	require.Len(t, store.audits, 1)
	assert.Equal(t, shared.AuditStageChange, store.audits[0].Action)

	_, again, err := svc.UpdateStage(ctx, m.ID, Patch{CurrentStage: strPtr("CUSTOMS_DE")})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Updated)
	assert.Equal(t, 3, again.Matched)
	assert.Len(t, store.events, 3)
}

func TestStageCascadeRepairsOnlyDriftedShipments(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()
	m, err := svc.Create(ctx, CreateInput{})
	require.NoError(t, err)
	store.addShipment(1, status.Austria)
	store.addShipment(2, status.Romania)
	_, err = svc.AssignShipments(ctx, m.ID, []int64{1, 2})
	require.NoError(t, err)

	_, result, err := svc.UpdateStage(ctx, m.ID, Patch{CurrentStage: strPtr("austria")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, store.events, 1)
	assert.Equal(t, int64(2), store.events[0].ShipmentID)
}

func TestUpdateStageValidation(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()
	m, err := svc.Create(ctx, CreateInput{})
	require.NoError(t, err)

	_, _, err = svc.UpdateStage(ctx, m.ID, Patch{CurrentStage: strPtr("RECEIVED")})
	assert.ErrorIs(t, err, shared.ErrValidation, "RECEIVED is not a manifest stage")
	_, _, err = svc.UpdateStage(ctx, m.ID, Patch{Status: strPtr("ARCHIVED")})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, _, err = svc.UpdateStage(ctx, 99, Patch{Status: strPtr("CLOSED")})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	updated, result, err := svc.UpdateStage(ctx, m.ID, Patch{Status: strPtr("closed"), CurrentStage: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, status.ManifestClosed, updated.Status)
	assert.Nil(t, updated.CurrentStage)
	assert.Equal(t, CascadeResult{}, result)
}

func TestUpdateStageReportsCascadeFailureWithManifest(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()
	m, err := svc.Create(ctx, CreateInput{})
	require.NoError(t, err)
	store.addShipment(1, status.Transit)
	_, err = svc.AssignShipments(ctx, m.ID, []int64{1})
	require.NoError(t, err)

	store.failSetStatus = true
	updated, _, err := svc.UpdateStage(ctx, m.ID, Patch{CurrentStage: strPtr("BULGARIA")})
	assert.ErrorIs(t, err, shared.ErrPersistence)
	require.NotNil(t, updated)
	require.NotNil(t, updated.CurrentStage)
	assert.Equal(t, status.Bulgaria, *updated.CurrentStage)
	assert.Empty(t, store.events)
}

func TestAssignSnapsToCurrentStage(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()
	m, err := svc.Create(ctx, CreateInput{})
	require.NoError(t, err)
	_, _, err = svc.UpdateStage(ctx, m.ID, Patch{CurrentStage: strPtr("SLOVENIA")})
	require.NoError(t, err)

	store.addShipment(7, status.CentralDepotTR)
	store.addShipment(8, status.Slovenia)
	n, err := svc.AssignShipments(ctx, m.ID, []int64{7, 8, 404})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, status.Slovenia, store.shipments[7].status)
	require.Len(t, store.events, 1)
	assert.Equal(t, int64(7), store.events[0].ShipmentID)
}

func TestAssignValidation(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()

	_, err := svc.AssignShipments(ctx, 1, nil)
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.AssignShipments(ctx, 1, []int64{1})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.UnassignShipments(ctx, 1, []int64{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestUnassignIsScopedToManifest(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()
	a, err := svc.Create(ctx, CreateInput{Name: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateInput{Name: "B"})
	require.NoError(t, err)
	store.addShipment(1, status.CentralDepotTR)
	_, err = svc.AssignShipments(ctx, b.ID, []int64{1})
	require.NoError(t, err)

	n, err := svc.UnassignShipments(ctx, a.ID, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	require.NotNil(t, store.shipments[1].manifestID)
	assert.Equal(t, b.ID, *store.shipments[1].manifestID)
	assert.Empty(t, store.events)
}

func TestSyncMembershipAppliesSetDiff(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()
	m, err := svc.Create(ctx, CreateInput{})
	require.NoError(t, err)
	for id := int64(1); id <= 4; id++ {
		store.addShipment(id, status.CentralDepotTR)
	}
	_, err = svc.AssignShipments(ctx, m.ID, []int64{1, 2})
	require.NoError(t, err)

	result, err := svc.SyncMembership(ctx, m.ID, []int64{2, 3, 4, 4})
	require.NoError(t, err)
	assert.Equal(t, MembershipResult{Added: 2, Removed: 1}, result)
	members, _ := store.MemberIDs(ctx, m.ID)
	assert.Equal(t, []int64{2, 3, 4}, members)

	result, err = svc.SyncMembership(ctx, m.ID, []int64{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, MembershipResult{}, result)
}

func TestDeleteOrphansShipments(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()
	m, err := svc.Create(ctx, CreateInput{})
	require.NoError(t, err)
	store.addShipment(1, status.Transit)
	_, err = svc.AssignShipments(ctx, m.ID, []int64{1})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, m.ID))
	assert.Nil(t, store.shipments[1].manifestID)
	assert.Equal(t, status.Transit, store.shipments[1].status)
	assert.ErrorIs(t, svc.Delete(ctx, m.ID), shared.ErrNotFound)
}

func TestResyncStagesRepairsOpenManifests(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()
	open, err := svc.Create(ctx, CreateInput{Name: "OPEN"})
	require.NoError(t, err)
	closed, err := svc.Create(ctx, CreateInput{Name: "CLOSED"})
	require.NoError(t, err)
	store.addShipment(1, status.Transit)
	store.addShipment(2, status.Transit)
	_, err = svc.AssignShipments(ctx, open.ID, []int64{1})
	require.NoError(t, err)
	_, err = svc.AssignShipments(ctx, closed.ID, []int64{2})
	require.NoError(t, err)
	stage := status.Croatia
	store.manifests[open.ID].CurrentStage = &stage
	store.manifests[closed.ID].CurrentStage = &stage
	store.manifests[closed.ID].Status = status.ManifestClosed

	report, err := svc.ResyncStages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResyncReport{Manifests: 1, Updated: 1}, report)
	assert.Equal(t, status.Croatia, store.shipments[1].status)
	assert.Equal(t, status.Transit, store.shipments[2].status)
}

func TestForwardOnlyPolicyHoldsBackCascade(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store).WithPolicy(status.ForwardOnly{})
	ctx := adminCtx()
	m, err := svc.Create(ctx, CreateInput{})
	require.NoError(t, err)
	store.addShipment(1, status.CentralDepotTR)
	store.addShipment(2, status.Delivered)
	store.addShipment(3, status.CustomsTR)
	_, err = svc.AssignShipments(ctx, m.ID, []int64{1, 2, 3})
	require.NoError(t, err)

	_, result, err := svc.UpdateStage(ctx, m.ID, Patch{CurrentStage: strPtr("CUSTOMS_TR")})
	require.NoError(t, err)
	assert.Equal(t, CascadeResult{Stage: status.CustomsTR, Matched: 3, Updated: 1, Rejected: 1, Events: 1}, result)
	assert.Equal(t, status.Delivered, store.shipments[2].status)
	assert.Equal(t, status.CustomsTR, store.shipments[1].status)
	require.Len(t, store.events, 1)
	assert.Equal(t, int64(1), store.events[0].ShipmentID)

	store.addShipment(4, status.OutForDelivery)
	n, err := svc.AssignShipments(ctx, m.ID, []int64{4})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, status.OutForDelivery, store.shipments[4].status, "assignment keeps membership but not the backward snap")
	assert.Len(t, store.events, 1)
}

func TestPermissivePolicyMovesEveryMember(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store)
	ctx := adminCtx()
	m, err := svc.Create(ctx, CreateInput{})
	require.NoError(t, err)
	store.addShipment(1, status.Delivered)
	_, err = svc.AssignShipments(ctx, m.ID, []int64{1})
	require.NoError(t, err)

	_, result, err := svc.UpdateStage(ctx, m.ID, Patch{CurrentStage: strPtr("CUSTOMS_TR")})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Rejected)
	assert.Equal(t, status.CustomsTR, store.shipments[1].status)
}

func TestMutationsRequireAuthorization(t *testing.T) {
	svc := newTestService(newMockStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	_, _, err = svc.UpdateStage(ctx, 1, Patch{})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	_, err = svc.AssignShipments(ctx, 1, []int64{1})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.ErrorIs(t, svc.Delete(ctx, 1), shared.ErrUnauthorized)
}
