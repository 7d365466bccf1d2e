package shipments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDimensions(t *testing.T) {
	got := EncodeDimensions([]Box{
		{Width: 50, Height: 40, Depth: 30, Count: 3, WeightPerPiece: 12.5},
		{Width: 0, Height: 10, Depth: 10, Count: 1},
		{Width: 120, Height: 80, Depth: 100, Count: 1, WeightPerPiece: 250},
	})
	assert.Equal(t, "50x40x30 (3 pcs - 12.5 kg/pc), 120x80x100 (1 pcs - 250 kg/pc)", got)
}

func TestDecodeDimensionsRoundTrip(t *testing.T) {
	boxes := []Box{
		{Width: 50, Height: 40, Depth: 30, Count: 3, WeightPerPiece: 12.5},
		{Width: 60.5, Height: 40, Depth: 40, Count: 2, WeightPerPiece: 0},
	}
	assert.Equal(t, boxes, DecodeDimensions(EncodeDimensions(boxes)))
}

func TestDecodeDimensionsLegacyAndGarbage(t *testing.T) {
	boxes := DecodeDimensions("50x40x30 (4), hello, 10x10x10 (2 pcs - 1 kg/pc)")
	require.Len(t, boxes, 2)
	assert.Equal(t, Box{Width: 50, Height: 40, Depth: 30, Count: 4}, boxes[0])
	assert.Equal(t, Box{Width: 10, Height: 10, Depth: 10, Count: 2, WeightPerPiece: 1}, boxes[1])
	assert.Empty(t, DecodeDimensions(""))
}

func TestTotals(t *testing.T) {
	qty, weight, volume := Totals([]Box{
		{Width: 50, Height: 40, Depth: 30, Count: 3, WeightPerPiece: 12.5},
		{Width: 100, Height: 100, Depth: 100, Count: 2, WeightPerPiece: 20},
	})
	assert.Equal(t, 5, qty)
	assert.InDelta(t, 77.5, weight, 1e-9)
	// 0.06 m³ * 3 + 1 m³ * 2
	assert.InDelta(t, 2.18, volume, 1e-9)
}
