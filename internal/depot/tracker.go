package depot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mftcargo/tracker/internal/shipments"
)

// Outcome classifies one scan.
type Outcome string

const (
	Accepted   Outcome = "accepted"
	OverScan   Outcome = "over_scan"
	NotFound   Outcome = "not_found"
	NoManifest Outcome = "no_manifest"
	Empty      Outcome = "empty"
)

// State is the scan progress of one operator session.
type State struct {
	ManifestID  *int64        `json:"manifestId,omitempty"`
	Counts      map[int64]int `json:"counts"`
	LastScanned *int64        `json:"lastScanned,omitempty"`
}

// ScanResult is the operator feedback for one scan.
type ScanResult struct {
	Outcome        Outcome `json:"outcome"`
	Message        string  `json:"message"`
	ShipmentID     int64   `json:"shipmentId,omitempty"`
	TrackingNumber string  `json:"trackingNumber,omitempty"`
	Scanned        int     `json:"scanned"`
	Expected       int     `json:"expected"`
}

// Group is the display bucket of one customer.
type Group struct {
	Key          string               `json:"key"`
	CustomerName string               `json:"customerName"`
	CustomerCode string               `json:"customerCode"`
	Shipments    []shipments.Shipment `json:"shipments"`
}

// Tracker counts scanned pieces against expected quantities. It does no I/O.
type Tracker struct {
	state State
}

// NewTracker resumes from state.
func NewTracker(state State) *Tracker {
	if state.Counts == nil {
		state.Counts = make(map[int64]int)
	}
	return &Tracker{state: state}
}

// State returns the current progress.
func (t *Tracker) State() State {
	return t.state
}

// Select switches to a manifest and forgets all counts.
func (t *Tracker) Select(manifestID int64) {
	t.state = State{ManifestID: &manifestID, Counts: make(map[int64]int)}
}

// Reset forgets all counts but keeps the selected manifest.
func (t *Tracker) Reset() {
	t.state.Counts = make(map[int64]int)
	t.state.LastScanned = nil
}

// Count returns the scanned pieces of a shipment.
func (t *Tracker) Count(shipmentID int64) int {
	return t.state.Counts[shipmentID]
}

// Scan records one piece of the shipment whose tracking number equals code.
// Counts never exceed the shipment quantity.
func (t *Tracker) Scan(code string, list []shipments.Shipment) ScanResult {
	code = strings.TrimSpace(code)
	if code == "" {
		return ScanResult{Outcome: Empty, Message: "Okutulan kod boş."}
	}
	if t.state.ManifestID == nil {
		return ScanResult{Outcome: NoManifest, Message: "Lütfen önce bir Defter/Tır seçiniz."}
	}
	for _, s := range list {
		if s.TrackingNumber != code {
			continue
		}
		result := ScanResult{ShipmentID: s.ID, TrackingNumber: s.TrackingNumber, Expected: s.Quantity}
		current := t.state.Counts[s.ID]
		if current >= s.Quantity {
			result.Outcome = OverScan
			result.Scanned = current
			result.Message = fmt.Sprintf("Bu kargo zaten tamamen okutuldu! (%d/%d)", s.Quantity, s.Quantity)
			return result
		}
		t.state.Counts[s.ID] = current + 1
		id := s.ID
		t.state.LastScanned = &id
		result.Outcome = Accepted
		result.Scanned = current + 1
		result.Message = fmt.Sprintf("%d/%d", current+1, s.Quantity)
		return result
	}
	return ScanResult{Outcome: NotFound, Message: "Kargo bulunamadı veya seçilen defterde değil!"}
}

// ShipmentComplete reports whether every piece of s has been scanned.
func (t *Tracker) ShipmentComplete(s shipments.Shipment) bool {
	return t.state.Counts[s.ID] >= s.Quantity
}

// GroupComplete reports whether every shipment of g is complete.
func (t *Tracker) GroupComplete(g Group) bool {
	for _, s := range g.Shipments {
		if !t.ShipmentComplete(s) {
			return false
		}
	}
	return true
}

// Ready returns the shipments whose scanned count equals their quantity.
func (t *Tracker) Ready(list []shipments.Shipment) []shipments.Shipment {
	var out []shipments.Shipment
	for _, s := range list {
		if n := t.state.Counts[s.ID]; n > 0 && n == s.Quantity {
			out = append(out, s)
		}
	}
	return out
}

// Groups buckets shipments by customer id, then receiver name, then
// "Unknown". Groups keep first-seen order.
func Groups(list []shipments.Shipment) []Group {
	var order []string
	byKey := make(map[string]*Group)
	for _, s := range list {
		key := groupKey(s)
		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: key, CustomerName: s.ReceiverName, CustomerCode: "-"}
			if s.Customer != nil {
				if s.Customer.Name != "" {
					g.CustomerName = s.Customer.Name
				}
				g.CustomerCode = s.Customer.CustomerCode
			}
			if g.CustomerName == "" {
				g.CustomerName = "Bilinmiyor"
			}
			byKey[key] = g
			order = append(order, key)
		}
		g.Shipments = append(g.Shipments, s)
	}
	out := make([]Group, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

func groupKey(s shipments.Shipment) string {
	if s.CustomerID != nil {
		return "customer:" + strconv.FormatInt(*s.CustomerID, 10)
	}
	if s.ReceiverName != "" {
		return "receiver:" + s.ReceiverName
	}
	return "Unknown"
}
