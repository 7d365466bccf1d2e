package shipments

import (
	"fmt"
	"time"

	"github.com/mftcargo/tracker/internal/shared"
	"github.com/mftcargo/tracker/internal/status"
)

var (
	// ErrNotFound is returned when no shipment matches.
	ErrNotFound = fmt.Errorf("shipment %w", shared.ErrNotFound)
	// ErrDuplicateTracking is returned when an insert races on a tracking number.
	ErrDuplicateTracking = fmt.Errorf("%w: tracking number already exists", shared.ErrConflict)
)

// Entry event written for every new shipment.
const (
	EntryDescription = "Kargo İstanbul Merkez Depoya Ulaştı"
	EntryLocation    = "İstanbul"
)

// Shipment is a single consignment moving from Turkey to Germany.
type Shipment struct {
	ID              int64       `json:"id"`
	TrackingNumber  string      `json:"trackingNumber"`
	SenderName      string      `json:"senderName,omitempty"`
	SenderPhone     string      `json:"senderPhone,omitempty"`
	SenderAddress   string      `json:"senderAddress,omitempty"`
	SupplierName    string      `json:"supplierName,omitempty"`
	ReceiverName    string      `json:"receiverName,omitempty"`
	ReceiverAddress string      `json:"receiverAddress,omitempty"`
	ReceiverCompany string      `json:"receiverCompany,omitempty"`
	ReceiverPhone   string      `json:"receiverPhone,omitempty"`
	Country         string      `json:"country,omitempty"`
	Dimensions      string      `json:"dimensions,omitempty"`
	Weight          *float64    `json:"weight,omitempty"`
	Volume          *float64    `json:"volume,omitempty"`
	Quantity        int         `json:"quantity"`
	PaymentMethod   string      `json:"paymentMethod,omitempty"`
	TruckNumber     string      `json:"truckNumber,omitempty"`
	ShippingWeek    string      `json:"shippingWeek,omitempty"`
	CurrentStatus   status.Code `json:"currentStatus"`
	CustomerID      *int64      `json:"customerId,omitempty"`
	ManifestID      *int64      `json:"manifestId,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`

	Customer *CustomerRef `json:"customer,omitempty"`
	Manifest *ManifestRef `json:"manifest,omitempty"`
}

// StatusLabel is the display text of the current status.
func (s Shipment) StatusLabel() string {
	return s.CurrentStatus.Label()
}

// CustomerRef is the slice of customer data joined onto a shipment.
type CustomerRef struct {
	ID           int64  `json:"id"`
	CustomerCode string `json:"customerCode"`
	Name         string `json:"name"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
}

// ManifestRef is the slice of manifest data joined onto a shipment.
type ManifestRef struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Status       string       `json:"status"`
	CurrentStage *status.Code `json:"currentStage,omitempty"`
	TruckPlate   string       `json:"truckPlate,omitempty"`
}

// Event is one append-only entry of a shipment's history.
type Event struct {
	ID          int64       `json:"id"`
	ShipmentID  int64       `json:"shipmentId"`
	Status      status.Code `json:"status"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	Timestamp   time.Time   `json:"timestamp"`
}

// StatusEvent is the event recorded when an admin action moves a shipment to
// code: the description is the status label and the location is empty.
func StatusEvent(shipmentID int64, code status.Code, at time.Time) Event {
	return Event{
		ShipmentID:  shipmentID,
		Status:      code,
		Description: code.Label(),
		Timestamp:   at,
	}
}

// StatusEvents builds one StatusEvent per id.
func StatusEvents(ids []int64, code status.Code, at time.Time) []Event {
	events := make([]Event, 0, len(ids))
	for _, id := range ids {
		events = append(events, StatusEvent(id, code, at))
	}
	return events
}

// Detail is a shipment with its history, newest event first.
type Detail struct {
	Shipment
	Events []Event `json:"events"`
}

// CreateInput is the intake payload. PhoneNumber belongs to the customer
// identified by CustomerCode. When Boxes are given, the dimensions string,
// quantity, weight and volume are derived from them.
type CreateInput struct {
	CustomerCode    string   `json:"customerCode" validate:"omitempty,max=32"`
	PhoneNumber     string   `json:"phoneNumber" validate:"omitempty,max=32"`
	SenderName      string   `json:"senderName" validate:"max=200"`
	SenderPhone     string   `json:"senderPhone" validate:"max=32"`
	SenderAddress   string   `json:"senderAddress" validate:"max=500"`
	SupplierName    string   `json:"supplierName" validate:"max=200"`
	ReceiverName    string   `json:"receiverName" validate:"max=200"`
	ReceiverAddress string   `json:"receiverAddress" validate:"max=500"`
	ReceiverCompany string   `json:"receiverCompany" validate:"max=200"`
	ReceiverPhone   string   `json:"receiverPhone" validate:"max=32"`
	Country         string   `json:"country" validate:"max=100"`
	Boxes           []Box    `json:"boxes" validate:"omitempty,dive"`
	Dimensions      string   `json:"dimensions" validate:"max=2000"`
	Weight          *float64 `json:"weight" validate:"omitempty,gte=0"`
	Volume          *float64 `json:"volume" validate:"omitempty,gte=0"`
	Quantity        int      `json:"quantity" validate:"gte=0"`
	PaymentMethod   string   `json:"paymentMethod" validate:"max=100"`
	TruckNumber     string   `json:"truckNumber" validate:"max=50"`
	ShippingWeek    string   `json:"shippingWeek" validate:"max=20"`
	ManifestID      *int64   `json:"manifestId" validate:"omitempty,gt=0"`
}

// Patch changes only the non-nil fields. PhoneNumber is propagated to the
// linked customer.
type Patch struct {
	SenderName      *string  `json:"senderName" validate:"omitempty,max=200"`
	SenderPhone     *string  `json:"senderPhone" validate:"omitempty,max=32"`
	SenderAddress   *string  `json:"senderAddress" validate:"omitempty,max=500"`
	SupplierName    *string  `json:"supplierName" validate:"omitempty,max=200"`
	ReceiverName    *string  `json:"receiverName" validate:"omitempty,max=200"`
	ReceiverAddress *string  `json:"receiverAddress" validate:"omitempty,max=500"`
	ReceiverCompany *string  `json:"receiverCompany" validate:"omitempty,max=200"`
	ReceiverPhone   *string  `json:"receiverPhone" validate:"omitempty,max=32"`
	Country         *string  `json:"country" validate:"omitempty,max=100"`
	Boxes           []Box    `json:"boxes" validate:"omitempty,dive"`
	Dimensions      *string  `json:"dimensions" validate:"omitempty,max=2000"`
	Weight          *float64 `json:"weight" validate:"omitempty,gte=0"`
	Volume          *float64 `json:"volume" validate:"omitempty,gte=0"`
	Quantity        *int     `json:"quantity" validate:"omitempty,gte=1"`
	PaymentMethod   *string  `json:"paymentMethod" validate:"omitempty,max=100"`
	TruckNumber     *string  `json:"truckNumber" validate:"omitempty,max=50"`
	ShippingWeek    *string  `json:"shippingWeek" validate:"omitempty,max=20"`
	CurrentStatus   *string  `json:"currentStatus" validate:"omitempty,max=40"`
	PhoneNumber     *string  `json:"phoneNumber" validate:"omitempty,max=32"`
}

// updates maps the plain column changes of the patch. Status and customer
// phone are handled by the service.
func (p Patch) updates() map[string]any {
	updates := make(map[string]any)
	upper := func(column string, v *string) {
		if v != nil {
			updates[column] = shared.UpperTR(*v)
		}
	}
	plain := func(column string, v *string) {
		if v != nil {
			updates[column] = *v
		}
	}
	upper("sender_name", p.SenderName)
	plain("sender_phone", p.SenderPhone)
	upper("sender_address", p.SenderAddress)
	upper("supplier_name", p.SupplierName)
	upper("receiver_name", p.ReceiverName)
	upper("receiver_address", p.ReceiverAddress)
	upper("receiver_company", p.ReceiverCompany)
	plain("receiver_phone", p.ReceiverPhone)
	upper("country", p.Country)
	plain("dimensions", p.Dimensions)
	upper("payment_method", p.PaymentMethod)
	upper("truck_number", p.TruckNumber)
	plain("shipping_week", p.ShippingWeek)
	if p.Weight != nil {
		updates["weight"] = *p.Weight
	}
	if p.Volume != nil {
		updates["volume"] = *p.Volume
	}
	if p.Quantity != nil {
		updates["quantity"] = *p.Quantity
	}
	if boxes := measured(p.Boxes); len(boxes) > 0 {
		qty, weight, volume := Totals(boxes)
		updates["dimensions"] = EncodeDimensions(boxes)
		updates["quantity"] = qty
		updates["weight"] = weight
		updates["volume"] = volume
	}
	return updates
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	Status     *status.Code
	Unassigned bool
	ManifestID *int64
	CustomerID *int64
	Search     string
	Page       int
	PerPage    int
}
