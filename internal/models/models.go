// Package models defines the core data structures shared by the trip
// reconciliation engine: company trips, per-supplier invoice records,
// the employee directory, match results and caller-owned overlay state.
package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MatchStatus classifies the outcome for one company trip / supplier record pair.
type MatchStatus string

const (
	// StatusMatched means both sides refer to the same ride and prices agree
	// within tolerance (or, for the fuzzy supplier, a discrepancy is carried
	// as metadata instead of a separate status).
	StatusMatched MatchStatus = "matched"

	// StatusPriceDifference means both sides refer to the same ride but the
	// prices disagree beyond tolerance.
	StatusPriceDifference MatchStatus = "price_difference"

	// StatusMissingInRide means a supplier invoice row found no counterpart
	// in the company trip log.
	StatusMissingInRide MatchStatus = "missing_in_ride"

	// StatusMissingInSupplier means a company trip labeled for a supplier
	// found no counterpart in that supplier's invoice.
	StatusMissingInSupplier MatchStatus = "missing_in_supplier"

	// StatusNotMatched means no classification could be made for the record.
	StatusNotMatched MatchStatus = "not_matched"

	// StatusAssignedToOtherSupplier means the company trip carries a
	// different, non-empty supplier label: a data-entry problem rather than
	// a genuinely missing invoice line.
	StatusAssignedToOtherSupplier MatchStatus = "assigned_to_other_supplier"
)

// String returns the string representation of MatchStatus
func (s MatchStatus) String() string {
	return string(s)
}

// IsValid checks if the match status is one of the known values
func (s MatchStatus) IsValid() bool {
	switch s {
	case StatusMatched, StatusPriceDifference, StatusMissingInRide,
		StatusMissingInSupplier, StatusNotMatched, StatusAssignedToOtherSupplier:
		return true
	default:
		return false
	}
}

// CompanyTrip is one ride from the organization's internal dispatch log.
//
// DateTime is kept in its raw source encoding (format varies between
// manual entries and imports); the normalize package resolves it on demand.
// A zero price means the trip still needs manual pricing.
type CompanyTrip struct {
	ID            int             `json:"id"`
	DateTime      string          `json:"dateTime"`
	Source        string          `json:"source"`
	Destination   string          `json:"destination"`
	PassengerText string          `json:"passengerText"`
	PIDs          []int           `json:"pids"`
	Price         decimal.Decimal `json:"price"`
	SupplierLabel string          `json:"supplierLabel"`
	Manual        bool            `json:"manual"`

	// OrderNumbers holds supplier order numbers previously confirmed for
	// this trip (from earlier runs or manual links). The fuzzy matcher
	// resolves these before any heuristic search.
	OrderNumbers []string `json:"orderNumbers,omitempty"`
}

// Validate performs basic validation on the CompanyTrip
func (t *CompanyTrip) Validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("trip ID must be positive, got %d", t.ID)
	}
	if t.Price.IsNegative() {
		return fmt.Errorf("trip %d price cannot be negative: %s", t.ID, t.Price.String())
	}
	return nil
}

// Clone returns a deep copy of the trip. The reconciler clones the pool
// before applying overlay state so caller inputs are never mutated.
func (t *CompanyTrip) Clone() *CompanyTrip {
	c := *t
	c.PIDs = append([]int(nil), t.PIDs...)
	c.OrderNumbers = append([]string(nil), t.OrderNumbers...)
	return &c
}

// HasOrderNumber reports whether the trip carries the given supplier order number.
func (t *CompanyTrip) HasOrderNumber(num string) bool {
	for _, n := range t.OrderNumbers {
		if n == num {
			return true
		}
	}
	return false
}

// String returns a short representation for logs
func (t *CompanyTrip) String() string {
	return fmt.Sprintf("CompanyTrip{ID: %d, DateTime: %q, Price: %s, Supplier: %q}",
		t.ID, t.DateTime, t.Price.String(), t.SupplierLabel)
}

// SupplierRecord is the narrow interface every supplier invoice row
// satisfies. Matchers operate against this interface; supplier-specific
// fields are accessed only inside that supplier's matcher.
type SupplierRecord interface {
	// RecordKey returns the supplier-assigned order/trip number, or ""
	// when the supplier format carries none.
	RecordKey() string

	// RecordDate returns the raw date string of the invoice row.
	RecordDate() string

	// RecordPrice returns the invoiced price.
	RecordPrice() decimal.Decimal
}

// HoriTrip is one row from the Hori invoice export. Hori assigns the
// company trip ID as its own trip number, so matching is exact-key.
type HoriTrip struct {
	TripNumber string          `json:"tripNumber"`
	Date       string          `json:"date"`
	Price      decimal.Decimal `json:"price"`
}

func (h *HoriTrip) RecordKey() string            { return h.TripNumber }
func (h *HoriTrip) RecordDate() string           { return h.Date }
func (h *HoriTrip) RecordPrice() decimal.Decimal { return h.Price }

// String returns a short representation for logs
func (h *HoriTrip) String() string {
	return fmt.Sprintf("HoriTrip{Number: %q, Date: %q, Price: %s}", h.TripNumber, h.Date, h.Price.String())
}

// LimorTrip is one row from the Limor invoice export. Limor also shares
// the company trip ID, but rows occasionally arrive without one; those
// carry only the flat shuttle fare as a weak secondary signal.
type LimorTrip struct {
	OrderNumber string          `json:"orderNumber"`
	Date        string          `json:"date"`
	Price       decimal.Decimal `json:"price"`
}

func (l *LimorTrip) RecordKey() string            { return l.OrderNumber }
func (l *LimorTrip) RecordDate() string           { return l.Date }
func (l *LimorTrip) RecordPrice() decimal.Decimal { return l.Price }

// String returns a short representation for logs
func (l *LimorTrip) String() string {
	return fmt.Sprintf("LimorTrip{Number: %q, Date: %q, Price: %s}", l.OrderNumber, l.Date, l.Price.String())
}

// GettTrip is one row from the Gett invoice export. Gett has no reliable
// shared identifier, so it is matched by the multi-criteria fuzzy matcher
// on time, locations and passengers.
type GettTrip struct {
	OrderNumber string          `json:"orderNumber,omitempty"`
	Date        string          `json:"date"`
	Time        string          `json:"time,omitempty"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Passengers  string          `json:"passengers"`
	Price       decimal.Decimal `json:"price"`
}

func (g *GettTrip) RecordKey() string            { return g.OrderNumber }
func (g *GettTrip) RecordDate() string           { return g.Date }
func (g *GettTrip) RecordPrice() decimal.Decimal { return g.Price }

// String returns a short representation for logs
func (g *GettTrip) String() string {
	return fmt.Sprintf("GettTrip{Number: %q, Date: %q %q, %q -> %q, Price: %s}",
		g.OrderNumber, g.Date, g.Time, g.Source, g.Destination, g.Price.String())
}

// Employee is one entry of the employee directory, read-only during a run.
type Employee struct {
	ID         int    `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Department string `json:"department"`
}

// FullName returns "first last" with missing parts trimmed away.
func (e *Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// MatchResult is one classified outcome of a supplier pass.
//
// Invariant: at most one of Trip/Supplier is nil, never both.
// PriceDifference is meaningful only when both sides are present.
type MatchResult struct {
	Status          MatchStatus     `json:"status"`
	Trip            *CompanyTrip    `json:"trip,omitempty"`
	Supplier        SupplierRecord  `json:"supplier,omitempty"`
	PriceDifference decimal.Decimal `json:"priceDifference"`
	Confidence      float64         `json:"confidence"`
}

// Validate asserts the structural invariant on the result.
func (r *MatchResult) Validate() error {
	if r.Trip == nil && r.Supplier == nil {
		return fmt.Errorf("match result %s has neither trip nor supplier record", r.Status)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("invalid match status: %q", r.Status)
	}
	return nil
}

// Overlay is the caller-maintained mutable state merged into the company
// trip pool immediately before each run. The engine never writes to it.
type Overlay struct {
	// PriceCorrections overrides trip prices, keyed by trip ID.
	PriceCorrections map[int]decimal.Decimal `json:"priceCorrections,omitempty"`

	// ManualLinks maps a trip ID to a confirmed supplier order number.
	ManualLinks map[int]string `json:"manualLinks,omitempty"`

	// ExcludedTripIDs removes trips from review without deleting them.
	ExcludedTripIDs []int `json:"excludedTripIDs,omitempty"`
}

// Excluded reports whether a trip ID is marked excluded-from-review.
func (o *Overlay) Excluded(id int) bool {
	if o == nil {
		return false
	}
	for _, e := range o.ExcludedTripIDs {
		if e == id {
			return true
		}
	}
	return false
}

// ParsePrice parses a price string, stripping currency symbols and
// thousands separators the way invoice exports tend to carry them.
// An empty string parses to zero (needs manual pricing), not an error.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	for _, sym := range []string{"₪", "$", "€", "NIS", "ILS"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price format %q: %w", s, err)
	}
	return d, nil
}
