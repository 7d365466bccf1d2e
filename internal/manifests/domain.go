package manifests

import (
	"fmt"
	"time"

	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/shipments"
	"github.com/mftcargo/tracker/internal/status"
)

// ErrNotFound is returned when no manifest matches.
var ErrNotFound = fmt.Errorf("manifest %w", shared.ErrNotFound)

// Manifest is one truck load or weekly batch.
type Manifest struct {
	ID           int64                 `json:"id"`
	Name         string                `json:"name"`
	Status       status.ManifestStatus `json:"status"`
	CurrentStage *status.Code          `json:"currentStage,omitempty"`
	TruckPlate   string                `json:"truckPlate,omitempty"`
	Notes        string                `json:"notes,omitempty"`
	StartDate    *time.Time            `json:"startDate,omitempty"`
	EndDate      *time.Time            `json:"endDate,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// Summary is a manifest with aggregates over its shipments.
type Summary struct {
	Manifest
	ShipmentCount int     `json:"shipmentCount"`
	TotalQuantity int     `json:"totalQuantity"`
	TotalWeight   float64 `json:"totalWeight"`
	TotalVolume   float64 `json:"totalVolume"`
}

// Detail is a manifest with its member shipments.
type Detail struct {
	Manifest
	Shipments []shipments.Shipment `json:"shipments"`
}

// CreateInput is the payload for a new manifest.
type CreateInput struct {
	Name       string     `json:"name" validate:"max=100"`
	Notes      string     `json:"notes" validate:"max=1000"`
	TruckPlate string     `json:"truckPlate" validate:"max=50"`
	StartDate  *time.Time `json:"startDate"`
	EndDate    *time.Time `json:"endDate"`
}

// Patch changes only the non-nil fields. An empty CurrentStage clears the
// stage without touching shipments.
type Patch struct {
	Status       *string    `json:"status" validate:"omitempty,max=20"`
	CurrentStage *string    `json:"currentStage" validate:"omitempty,max=40"`
	TruckPlate   *string    `json:"truckPlate" validate:"omitempty,max=50"`
	Notes        *string    `json:"notes" validate:"omitempty,max=1000"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
}

// MembershipInput carries the shipment ids of an assign, unassign or sync call.
type MembershipInput struct {
	ShipmentIDs []int64 `json:"shipmentIds" validate:"dive,gt=0"`
}

// CascadeResult reports what a stage change did to the member shipments.
// Matched counts members, Updated the ones whose status changed and
// Rejected the ones the status policy refused to move.
type CascadeResult struct {
	Stage    status.Code `json:"stage,omitempty"`
	Matched  int         `json:"matched"`
	Updated  int         `json:"updated"`
	Rejected int         `json:"rejected"`
	Events   int         `json:"events"`
}

// MembershipResult reports a set-diff membership sync.
type MembershipResult struct {
	Added   int64 `json:"added"`
	Removed int64 `json:"removed"`
}

// ResyncReport summarises a repair pass over open manifests.
type ResyncReport struct {
	Manifests int `json:"manifests"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// WeekLabel renders the ISO week of t as "2025-W03".
func WeekLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// diff returns desired minus current and current minus desired.
func diff(current, desired []int64) (add, remove []int64) {
	have := make(map[int64]bool, len(current))
	for _, id := range current {
		have[id] = true
	}
	want := make(map[int64]bool, len(desired))
	for _, id := range desired {
		if want[id] {
			continue
		}
		want[id] = true
		if !have[id] {
			add = append(add, id)
		}
	}
	for _, id := range current {
		if !want[id] {
			remove = append(remove, id)
		}
	}
	return add, remove
}
