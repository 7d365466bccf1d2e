package customers

import (
	"fmt"
	"time"

	"github.com/mftcargo/tracker/internal/shared"
)

var (
	// ErrNotFound is returned when no customer matches.
	ErrNotFound = fmt.Errorf("customer %w", shared.ErrNotFound)
	// ErrHasShipments blocks deleting a customer that still owns shipments.
	ErrHasShipments = fmt.Errorf("%w: customer still has shipments", shared.ErrConflict)
	// ErrDuplicateCode is returned when the customer code is already taken.
	ErrDuplicateCode = fmt.Errorf("%w: customer code already exists", shared.ErrConflict)
	// ErrPhoneMismatch is returned by the public lookup when code and phone disagree.
	ErrPhoneMismatch = fmt.Errorf("%w: customer code and phone number do not match", shared.ErrUnauthorized)
)

// Customer is an end recipient identified by an MFT- code.
type Customer struct {
	ID           int64     `json:"id"`
	CustomerCode string    `json:"customerCode"`
	Name         string    `json:"name"`
	PhoneNumber  *string   `json:"phoneNumber,omitempty"`
	Address      *string   `json:"address,omitempty"`
	City         *string   `json:"city,omitempty"`
	Country      *string   `json:"country,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreateInput is the admin payload for a new customer. An empty code is
// allocated automatically.
type CreateInput struct {
	CustomerCode string  `json:"customerCode" validate:"omitempty,max=32"`
	Name         string  `json:"name" validate:"required,max=200"`
	PhoneNumber  *string `json:"phoneNumber" validate:"omitempty,max=32"`
	Address      *string `json:"address" validate:"omitempty,max=500"`
	City         *string `json:"city" validate:"omitempty,max=100"`
	Country      *string `json:"country" validate:"omitempty,max=100"`
}

// Patch changes only the non-nil fields.
type Patch struct {
	CustomerCode *string `json:"customerCode" validate:"omitempty,min=1,max=32"`
	Name         *string `json:"name" validate:"omitempty,min=1,max=200"`
	PhoneNumber  *string `json:"phoneNumber" validate:"omitempty,max=32"`
	Address      *string `json:"address" validate:"omitempty,max=500"`
	City         *string `json:"city" validate:"omitempty,max=100"`
	Country      *string `json:"country" validate:"omitempty,max=100"`
}

func (p Patch) updates() map[string]any {
	updates := make(map[string]any)
	if p.CustomerCode != nil {
		updates["customer_code"] = NormalizeCode(*p.CustomerCode)
	}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.PhoneNumber != nil {
		updates["phone_number"] = *p.PhoneNumber
	}
	if p.Address != nil {
		updates["address"] = *p.Address
	}
	if p.City != nil {
		updates["city"] = *p.City
	}
	if p.Country != nil {
		updates["country"] = *p.Country
	}
	return updates
}

// UpsertInput creates the customer or refreshes it when the code exists.
// Nil optional fields leave stored values untouched on update.
type UpsertInput struct {
	CustomerCode string
	Name         string
	PhoneNumber  *string
	Country      *string
	Address      *string
}
