package matcher

import (
	"testing"

	"trip-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func createHoriTestData() ([]*models.CompanyTrip, []models.SupplierRecord) {
	trips := []*models.CompanyTrip{
		{ID: 100, DateTime: "01/06/2024 10:00", Price: decimal.NewFromFloat(50.00), SupplierLabel: "Hori"},
		{ID: 101, DateTime: "01/06/2024 12:00", Price: decimal.NewFromFloat(80.00), SupplierLabel: "חורי"},
		{ID: 102, DateTime: "02/06/2024 09:00", Price: decimal.NewFromFloat(65.00), SupplierLabel: "Gett"},
	}
	records := []models.SupplierRecord{
		&models.HoriTrip{TripNumber: "100", Date: "01/06/2024", Price: decimal.NewFromFloat(50.00)},
	}
	return trips, records
}

func TestExactKeyMatcher_Matched(t *testing.T) {
	trips, records := createHoriTestData()
	idx := NewTripIndex(trips)
	m := NewExactKeyMatcher(DefaultMatchConfig(), SupplierHori)

	results := m.Match(idx, records)

	var match *models.MatchResult
	for i := range results {
		if results[i].Supplier != nil && results[i].Trip != nil {
			match = &results[i]
		}
	}
	if match == nil {
		t.Fatal("Expected a matched result")
	}
	if match.Status != models.StatusMatched {
		t.Errorf("Status = %s, want matched", match.Status)
	}
	if !match.PriceDifference.IsZero() {
		t.Errorf("PriceDifference = %s, want 0", match.PriceDifference.String())
	}
	if match.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", match.Confidence)
	}
}

func TestExactKeyMatcher_PriceDifference(t *testing.T) {
	trips, _ := createHoriTestData()
	records := []models.SupplierRecord{
		&models.HoriTrip{TripNumber: "100", Date: "01/06/2024", Price: decimal.NewFromFloat(55.00)},
	}
	idx := NewTripIndex(trips)
	m := NewExactKeyMatcher(DefaultMatchConfig(), SupplierHori)

	results := m.Match(idx, records)

	if results[0].Status != models.StatusPriceDifference {
		t.Errorf("Status = %s, want price_difference", results[0].Status)
	}
	if !results[0].PriceDifference.Equal(decimal.NewFromFloat(5.00)) {
		t.Errorf("PriceDifference = %s, want 5", results[0].PriceDifference.String())
	}
}

func TestExactKeyMatcher_PriceToleranceBoundary(t *testing.T) {
	tests := []struct {
		name       string
		price      float64
		wantStatus models.MatchStatus
	}{
		{name: "difference of exactly 0.01 agrees", price: 50.01, wantStatus: models.StatusMatched},
		{name: "difference of 0.0101 is a discrepancy", price: 50.0101, wantStatus: models.StatusPriceDifference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trips, _ := createHoriTestData()
			records := []models.SupplierRecord{
				&models.HoriTrip{TripNumber: "100", Date: "01/06/2024", Price: decimal.NewFromFloat(tt.price)},
			}
			idx := NewTripIndex(trips)
			m := NewExactKeyMatcher(DefaultMatchConfig(), SupplierHori)

			results := m.Match(idx, records)
			if results[0].Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", results[0].Status, tt.wantStatus)
			}
		})
	}
}

func TestExactKeyMatcher_KeyForms(t *testing.T) {
	trips, _ := createHoriTestData()

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{name: "plain numeric", key: "100", want: true},
		{name: "spreadsheet float suffix", key: "100.0", want: true},
		{name: "leading zeros", key: "00100", want: true},
		{name: "padded", key: " 100 ", want: true},
		{name: "unknown", key: "999", want: false},
		{name: "empty", key: "", want: false},
		{name: "non-numeric", key: "abc", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := NewTripIndex(trips)
			m := NewExactKeyMatcher(DefaultMatchConfig(), SupplierHori)
			trip := m.lookupByKey(idx, tt.key)
			if (trip != nil) != tt.want {
				t.Errorf("lookupByKey(%q) found=%v, want %v", tt.key, trip != nil, tt.want)
			}
		})
	}
}

func TestExactKeyMatcher_MissingSides(t *testing.T) {
	trips, _ := createHoriTestData()
	records := []models.SupplierRecord{
		&models.HoriTrip{TripNumber: "999", Date: "01/06/2024", Price: decimal.NewFromFloat(40.00)},
	}
	idx := NewTripIndex(trips)
	m := NewExactKeyMatcher(DefaultMatchConfig(), SupplierHori)

	results := m.Match(idx, records)

	byStatus := make(map[models.MatchStatus]int)
	for _, r := range results {
		byStatus[r.Status]++
		if err := r.Validate(); err != nil {
			t.Errorf("Invalid result: %v", err)
		}
	}

	if byStatus[models.StatusMissingInRide] != 1 {
		t.Errorf("missing_in_ride count = %d, want 1 (unmatched supplier row)", byStatus[models.StatusMissingInRide])
	}
	// Trips 100 and 101 carry Hori labels and were not claimed.
	if byStatus[models.StatusMissingInSupplier] != 2 {
		t.Errorf("missing_in_supplier count = %d, want 2", byStatus[models.StatusMissingInSupplier])
	}
	// Trip 102 is labeled Gett and must not appear in this pass.
	if len(results) != 3 {
		t.Errorf("result count = %d, want 3", len(results))
	}
}

func TestExactKeyMatcher_LimorFlatFareFallback(t *testing.T) {
	fare := decimal.NewFromInt(35)

	t.Run("unique candidate accepted at reduced confidence", func(t *testing.T) {
		trips := []*models.CompanyTrip{
			{ID: 200, DateTime: "01/06/2024 08:00", Price: fare, SupplierLabel: "Limor"},
			{ID: 201, DateTime: "01/06/2024 09:00", Price: decimal.NewFromInt(50), SupplierLabel: "Limor"},
		}
		records := []models.SupplierRecord{
			&models.LimorTrip{OrderNumber: "", Date: "01/06/2024", Price: fare},
		}
		idx := NewTripIndex(trips)
		m := NewExactKeyMatcher(DefaultMatchConfig(), SupplierLimor)

		results := m.Match(idx, records)

		if results[0].Status != models.StatusMatched {
			t.Fatalf("Status = %s, want matched", results[0].Status)
		}
		if results[0].Trip.ID != 200 {
			t.Errorf("Matched trip = %d, want 200", results[0].Trip.ID)
		}
		if results[0].Confidence != 0.8 {
			t.Errorf("Confidence = %v, want 0.8", results[0].Confidence)
		}
	})

	t.Run("ambiguous candidates leave row unmatched", func(t *testing.T) {
		trips := []*models.CompanyTrip{
			{ID: 200, DateTime: "01/06/2024 08:00", Price: fare},
			{ID: 201, DateTime: "01/06/2024 17:00", Price: fare},
		}
		records := []models.SupplierRecord{
			&models.LimorTrip{Date: "01/06/2024", Price: fare},
		}
		idx := NewTripIndex(trips)
		m := NewExactKeyMatcher(DefaultMatchConfig(), SupplierLimor)

		results := m.Match(idx, records)
		if results[0].Status != models.StatusMissingInRide {
			t.Errorf("Status = %s, want missing_in_ride for ambiguous fallback", results[0].Status)
		}
	})

	t.Run("non-sentinel price gets no fallback", func(t *testing.T) {
		trips := []*models.CompanyTrip{
			{ID: 200, DateTime: "01/06/2024 08:00", Price: decimal.NewFromInt(42)},
		}
		records := []models.SupplierRecord{
			&models.LimorTrip{Date: "01/06/2024", Price: decimal.NewFromInt(42)},
		}
		idx := NewTripIndex(trips)
		m := NewExactKeyMatcher(DefaultMatchConfig(), SupplierLimor)

		results := m.Match(idx, records)
		if results[0].Status != models.StatusMissingInRide {
			t.Errorf("Status = %s, want missing_in_ride without sentinel fare", results[0].Status)
		}
	})

	t.Run("hori never uses the fallback", func(t *testing.T) {
		trips := []*models.CompanyTrip{
			{ID: 200, DateTime: "01/06/2024 08:00", Price: fare},
		}
		records := []models.SupplierRecord{
			&models.HoriTrip{Date: "01/06/2024", Price: fare},
		}
		idx := NewTripIndex(trips)
		m := NewExactKeyMatcher(DefaultMatchConfig(), SupplierHori)

		results := m.Match(idx, records)
		if results[0].Status != models.StatusMissingInRide {
			t.Errorf("Status = %s, want missing_in_ride", results[0].Status)
		}
	})
}

func TestMatchConfig_Validate(t *testing.T) {
	cfg := DefaultMatchConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got %v", err)
	}

	bad := DefaultMatchConfig()
	bad.TimeToleranceMinutes = 0
	if err := bad.Validate(); err == nil {
		t.Error("Expected zero time tolerance to fail validation")
	}

	bad = DefaultMatchConfig()
	bad.FallbackConfidence = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("Expected out-of-range confidence to fail validation")
	}
}

func TestMatchConfig_Clone(t *testing.T) {
	cfg := DefaultMatchConfig()
	clone := cfg.Clone()
	clone.Aliases[SupplierHori][0] = "changed"

	if cfg.Aliases[SupplierHori][0] != "hori" {
		t.Error("Clone shares alias slices with the original")
	}
}

func TestMatchConfig_LabelBelongsTo(t *testing.T) {
	cfg := DefaultMatchConfig()

	tests := []struct {
		supplier string
		label    string
		want     bool
	}{
		{SupplierHori, "Hori", true},
		{SupplierHori, "  חורי הסעות ", true},
		{SupplierHori, "Gett", false},
		{SupplierHori, "", false},
		{SupplierGett, "GETT Taxi", true},
		{SupplierLimor, "נסיעה עם לימור", true},
	}

	for _, tt := range tests {
		if got := cfg.LabelBelongsTo(tt.supplier, tt.label); got != tt.want {
			t.Errorf("LabelBelongsTo(%s, %q) = %v, want %v", tt.supplier, tt.label, got, tt.want)
		}
	}
}
