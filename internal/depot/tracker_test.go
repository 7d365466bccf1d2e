package depot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mftcargo/tracker/internal/shipments"
)

func int64Ptr(v int64) *int64 { return &v }

func sampleShipments() []shipments.Shipment {
	return []shipments.Shipment{
		{ID: 1, TrackingNumber: "TR-10000001", Quantity: 2, CustomerID: int64Ptr(9), Customer: &shipments.CustomerRef{ID: 9, CustomerCode: "MFT-4000", Name: "Ahmet Yılmaz"}},
		{ID: 2, TrackingNumber: "TR-10000002", Quantity: 1, CustomerID: int64Ptr(9), Customer: &shipments.CustomerRef{ID: 9, CustomerCode: "MFT-4000", Name: "Ahmet Yılmaz"}},
		{ID: 3, TrackingNumber: "TR-10000003", Quantity: 3, ReceiverName: "HANS MÜLLER"},
		{ID: 4, TrackingNumber: "TR-10000004", Quantity: 1},
	}
}

func TestScanCapsAtQuantity(t *testing.T) {
	tr := NewTracker(State{})
	tr.Select(5)
	list := sampleShipments()

	first := tr.Scan(" TR-10000001 ", list)
	assert.Equal(t, Accepted, first.Outcome)
	assert.Equal(t, 1, first.Scanned)
	assert.Equal(t, 2, first.Expected)

	second := tr.Scan("TR-10000001", list)
	assert.Equal(t, Accepted, second.Outcome)

	for i := 0; i < 3; i++ {
		over := tr.Scan("TR-10000001", list)
		assert.Equal(t, OverScan, over.Outcome)
		assert.Equal(t, 2, over.Scanned)
	}
	assert.Equal(t, 2, tr.Count(1))
	require.NotNil(t, tr.State().LastScanned)
	assert.Equal(t, int64(1), *tr.State().LastScanned)
}

func TestScanRejections(t *testing.T) {
	tr := NewTracker(State{})
	list := sampleShipments()

	assert.Equal(t, NoManifest, tr.Scan("TR-10000001", list).Outcome)
	assert.Zero(t, tr.Count(1))

	tr.Select(5)
	assert.Equal(t, Empty, tr.Scan("   ", list).Outcome)
	assert.Equal(t, NotFound, tr.Scan("TR-99999999", list).Outcome)
	assert.Equal(t, NotFound, tr.Scan("tr-10000001", list).Outcome, "match is exact")
}

func TestSelectAndResetClearCounts(t *testing.T) {
	tr := NewTracker(State{})
	tr.Select(5)
	list := sampleShipments()
	tr.Scan("TR-10000002", list)
	assert.Equal(t, 1, tr.Count(2))

	tr.Reset()
	assert.Zero(t, tr.Count(2))
	require.NotNil(t, tr.State().ManifestID)
	assert.Nil(t, tr.State().LastScanned)

	tr.Scan("TR-10000002", list)
	tr.Select(6)
	assert.Zero(t, tr.Count(2))
	assert.Equal(t, int64(6), *tr.State().ManifestID)
}

func TestGroupsFallBackToReceiverThenUnknown(t *testing.T) {
	groups := Groups(sampleShipments())
	require.Len(t, groups, 3)

	assert.Equal(t, "Ahmet Yılmaz", groups[0].CustomerName)
	assert.Equal(t, "MFT-4000", groups[0].CustomerCode)
	assert.Len(t, groups[0].Shipments, 2)

	assert.Equal(t, "HANS MÜLLER", groups[1].CustomerName)
	assert.Equal(t, "-", groups[1].CustomerCode)

	assert.Equal(t, "Unknown", groups[2].Key)
	assert.Equal(t, "Bilinmiyor", groups[2].CustomerName)
}

func TestCompleteness(t *testing.T) {
	tr := NewTracker(State{})
	tr.Select(5)
	list := sampleShipments()
	groups := Groups(list)

	tr.Scan("TR-10000001", list)
	tr.Scan("TR-10000002", list)
	assert.False(t, tr.ShipmentComplete(list[0]))
	assert.True(t, tr.ShipmentComplete(list[1]))
	assert.False(t, tr.GroupComplete(groups[0]))

	tr.Scan("TR-10000001", list)
	assert.True(t, tr.GroupComplete(groups[0]))

	ready := tr.Ready(list)
	require.Len(t, ready, 2)
	assert.Equal(t, int64(1), ready[0].ID)
	assert.Equal(t, int64(2), ready[1].ID)
}
