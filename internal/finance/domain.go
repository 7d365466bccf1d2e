package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mftcargo/tracker/internal/shared"
)

var (
	// ErrNotFound is returned when no transaction matches.
	ErrNotFound = fmt.Errorf("transaction %w", shared.ErrNotFound)
	// ErrUnknownReference is returned when a manifest or shipment id does not exist.
	ErrUnknownReference = fmt.Errorf("%w: unknown manifest or shipment", shared.ErrValidation)
)

// Type separates money in from money out.
type Type string

const (
	Income  Type = "INCOME"
	Expense Type = "EXPENSE"
)

// Currency is one of the three currencies the office books in.
type Currency string

const (
	TRY Currency = "TRY"
	EUR Currency = "EUR"
	USD Currency = "USD"
)

// Currencies lists every supported currency in display order.
func Currencies() []Currency {
	return []Currency{TRY, EUR, USD}
}

// Transaction is one income or expense entry, optionally tied to a manifest
// or shipment.
type Transaction struct {
	ID          int64           `json:"id"`
	Type        Type            `json:"type"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	ManifestID  *int64          `json:"manifestId,omitempty"`
	ShipmentID  *int64          `json:"shipmentId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`

	ManifestName   string `json:"manifestName,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

// CreateInput is the payload for a new transaction.
type CreateInput struct {
	Type        string          `json:"type" validate:"required,oneof=INCOME EXPENSE"`
	Category    string          `json:"category" validate:"max=120"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency" validate:"required,oneof=TRY EUR USD"`
	Description string          `json:"description" validate:"max=500"`
	Date        *time.Time      `json:"date"`
	ManifestID  *int64          `json:"manifestId" validate:"omitempty,gt=0"`
	ShipmentID  *int64          `json:"shipmentId" validate:"omitempty,gt=0"`
}

// Filter narrows a transaction listing. Zero values mean no constraint.
type Filter struct {
	ManifestID *int64
	ShipmentID *int64
	Type       Type
	From       *time.Time
	To         *time.Time
}

// Sum is one grouped total as read from the store.
type Sum struct {
	Type     Type
	Currency Currency
	Amount   decimal.Decimal
}

// Totals is the income, expense and balance of one currency.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// Stats maps every supported currency to its totals.
type Stats map[Currency]Totals

// Aggregate folds grouped sums into Stats. Every supported currency is
// present; sums in other currencies are ignored.
func Aggregate(sums []Sum) Stats {
	stats := make(Stats, 3)
	for _, c := range Currencies() {
		stats[c] = Totals{Income: decimal.Zero, Expense: decimal.Zero, Balance: decimal.Zero}
	}
	for _, s := range sums {
		t, ok := stats[s.Currency]
		if !ok {
			continue
		}
		if s.Type == Income {
			t.Income = t.Income.Add(s.Amount)
		} else {
			t.Expense = t.Expense.Add(s.Amount)
		}
		t.Balance = t.Income.Sub(t.Expense)
		stats[s.Currency] = t
	}
	return stats
}
