package matcher

import (
	"testing"

	"trip-reconciliation-service/internal/directory"
	"trip-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func createFuzzyTestResolver() *directory.Resolver {
	dir := directory.New([]models.Employee{
		{ID: 123, FirstName: "דנה", LastName: "לוי", Department: "Sales"},
		{ID: 456, FirstName: "יוסי", LastName: "כהן", Department: "Engineering"},
	})
	return directory.NewResolver(dir)
}

func newFuzzyMatcher() *FuzzyMatcher {
	return NewFuzzyMatcher(DefaultMatchConfig(), createFuzzyTestResolver())
}

func TestFuzzyMatcher_BasicScenario(t *testing.T) {
	trips := []*models.CompanyTrip{
		{
			ID:          1,
			DateTime:    "01/06/2024 10:05",
			Source:      "Tel Aviv",
			Destination: "Jerusalem",
			PIDs:        []int{123},
			Price:       decimal.NewFromInt(80),
		},
	}
	records := []*models.GettTrip{
		{
			Date:        "01/06/2024",
			Time:        "10:00",
			Source:      "Tel Aviv",
			Destination: "Jerusalem",
			Passengers:  "123",
			Price:       decimal.NewFromInt(80),
		},
	}

	idx := NewTripIndex(trips)
	results := newFuzzyMatcher().Match(idx, records)

	if len(results) != 1 {
		t.Fatalf("result count = %d, want 1", len(results))
	}
	if results[0].Status != models.StatusMatched {
		t.Fatalf("Status = %s, want matched", results[0].Status)
	}
	if results[0].Trip.ID != 1 {
		t.Errorf("Matched trip = %d, want 1", results[0].Trip.ID)
	}
	if !results[0].PriceDifference.IsZero() {
		t.Errorf("PriceDifference = %s, want 0", results[0].PriceDifference.String())
	}
}

func TestFuzzyMatcher_RejectionCriteria(t *testing.T) {
	base := models.CompanyTrip{
		ID:          1,
		DateTime:    "01/06/2024 10:00",
		Source:      "תל אביב",
		Destination: "ירושלים",
		PIDs:        []int{123},
		Price:       decimal.NewFromInt(80),
	}

	tests := []struct {
		name   string
		modify func(*models.CompanyTrip)
		record models.GettTrip
		want   models.MatchStatus
	}{
		{
			name:   "time difference beyond tolerance",
			record: models.GettTrip{Date: "01/06/2024", Time: "10:31", Source: "תל אביב", Destination: "ירושלים", Passengers: "123"},
			want:   models.StatusMissingInRide,
		},
		{
			name:   "time difference at tolerance accepted",
			record: models.GettTrip{Date: "01/06/2024", Time: "10:30", Source: "תל אביב", Destination: "ירושלים", Passengers: "123"},
			want:   models.StatusMatched,
		},
		{
			name:   "pickup mismatch",
			record: models.GettTrip{Date: "01/06/2024", Time: "10:00", Source: "חיפה", Destination: "ירושלים", Passengers: "123"},
			want:   models.StatusMissingInRide,
		},
		{
			name:   "destination mismatch",
			record: models.GettTrip{Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "חיפה", Passengers: "123"},
			want:   models.StatusMissingInRide,
		},
		{
			name:   "passenger mismatch blocks when riders are named",
			record: models.GettTrip{Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "ירושלים", Passengers: "999"},
			want:   models.StatusMissingInRide,
		},
		{
			name:   "empty rider list never blocks",
			modify: func(tr *models.CompanyTrip) { tr.PIDs = nil },
			record: models.GettTrip{Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "ירושלים", Passengers: "999"},
			want:   models.StatusMatched,
		},
		{
			name:   "unparsable trip date fails conservatively",
			modify: func(tr *models.CompanyTrip) { tr.DateTime = "sometime" },
			record: models.GettTrip{Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "ירושלים", Passengers: "123"},
			want:   models.StatusMissingInRide,
		},
		{
			name:   "unparsable record date fails conservatively",
			record: models.GettTrip{Date: "whenever", Time: "10:00", Source: "תל אביב", Destination: "ירושלים", Passengers: "123"},
			want:   models.StatusMissingInRide,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := base
			trip.PIDs = append([]int(nil), base.PIDs...)
			if tt.modify != nil {
				tt.modify(&trip)
			}
			idx := NewTripIndex([]*models.CompanyTrip{&trip})
			rec := tt.record

			results := newFuzzyMatcher().Match(idx, []*models.GettTrip{&rec})

			var recordResult *models.MatchResult
			for i := range results {
				if results[i].Supplier != nil {
					recordResult = &results[i]
				}
			}
			if recordResult == nil {
				t.Fatal("Supplier record missing from results")
			}
			if recordResult.Status != tt.want {
				t.Errorf("Status = %s, want %s", recordResult.Status, tt.want)
			}
		})
	}
}

func TestFuzzyMatcher_AdjacentDayBucket(t *testing.T) {
	// Trip logged just past midnight, invoice row dated the day before.
	trips := []*models.CompanyTrip{
		{ID: 1, DateTime: "02/06/2024 00:10", Source: "תל אביב", Destination: "ירושלים", Price: decimal.NewFromInt(60)},
	}
	records := []*models.GettTrip{
		{Date: "01/06/2024", Time: "23:50", Source: "תל אביב", Destination: "ירושלים", Price: decimal.NewFromInt(60)},
	}

	idx := NewTripIndex(trips)
	results := newFuzzyMatcher().Match(idx, records)

	if results[0].Status != models.StatusMatched {
		t.Errorf("Status = %s, want matched across the midnight boundary", results[0].Status)
	}
}

func TestFuzzyMatcher_SmallestTimeDifferenceWins(t *testing.T) {
	trips := []*models.CompanyTrip{
		{ID: 1, DateTime: "01/06/2024 10:20", Source: "תל אביב", Destination: "ירושלים", Price: decimal.NewFromInt(60)},
		{ID: 2, DateTime: "01/06/2024 10:05", Source: "תל אביב", Destination: "ירושלים", Price: decimal.NewFromInt(60)},
		{ID: 3, DateTime: "01/06/2024 10:25", Source: "תל אביב", Destination: "ירושלים", Price: decimal.NewFromInt(60)},
	}
	records := []*models.GettTrip{
		{Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "ירושלים", Price: decimal.NewFromInt(60)},
	}

	idx := NewTripIndex(trips)
	results := newFuzzyMatcher().Match(idx, records)

	var match *models.MatchResult
	for i := range results {
		if results[i].Status == models.StatusMatched {
			match = &results[i]
		}
	}
	if match == nil {
		t.Fatal("Expected a matched result")
	}
	if match.Trip.ID != 2 {
		t.Errorf("Matched trip = %d, want 2 (smallest time difference)", match.Trip.ID)
	}
}

func TestFuzzyMatcher_TieKeepsFirstFound(t *testing.T) {
	trips := []*models.CompanyTrip{
		{ID: 1, DateTime: "01/06/2024 10:10", Source: "תל אביב", Destination: "ירושלים"},
		{ID: 2, DateTime: "01/06/2024 09:50", Source: "תל אביב", Destination: "ירושלים"},
	}
	records := []*models.GettTrip{
		{Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "ירושלים"},
	}

	idx := NewTripIndex(trips)
	results := newFuzzyMatcher().Match(idx, records)

	var match *models.MatchResult
	for i := range results {
		if results[i].Status == models.StatusMatched {
			match = &results[i]
		}
	}
	if match == nil {
		t.Fatal("Expected a matched result")
	}
	if match.Trip.ID != 1 {
		t.Errorf("Matched trip = %d, want 1 (first found on tie)", match.Trip.ID)
	}
}

func TestFuzzyMatcher_OrderNumberOverride(t *testing.T) {
	// Trip 1 recorded order number G-9 on a prior run. The order-number
	// record must win the trip even though the plain record also fits,
	// and the plain record ends up missing_in_ride.
	trips := []*models.CompanyTrip{
		{
			ID:           1,
			DateTime:     "01/06/2024 10:00",
			Source:       "תל אביב",
			Destination:  "ירושלים",
			Price:        decimal.NewFromInt(60),
			OrderNumbers: []string{"G-9"},
		},
	}
	records := []*models.GettTrip{
		{Date: "01/06/2024", Time: "10:02", Source: "תל אביב", Destination: "ירושלים", Price: decimal.NewFromInt(60)},
		{OrderNumber: "G-9", Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "ירושלים", Price: decimal.NewFromInt(60)},
	}

	idx := NewTripIndex(trips)
	results := newFuzzyMatcher().Match(idx, records)

	if len(results) != 2 {
		t.Fatalf("result count = %d, want 2", len(results))
	}

	// Order-number records are processed first, so the plain record
	// never gets the trip at all.
	if results[0].Status != models.StatusMissingInRide {
		t.Errorf("plain record status = %s, want missing_in_ride", results[0].Status)
	}
	if results[1].Status != models.StatusMatched {
		t.Fatalf("order record status = %s, want matched", results[1].Status)
	}
	if results[1].Confidence != 1.0 {
		t.Errorf("order-number match confidence = %v, want 1.0", results[1].Confidence)
	}
}

func TestFuzzyMatcher_OrderNumberFailsValidationFallsThrough(t *testing.T) {
	// The recorded order number points at a trip that fails the time
	// criteria; the record must fall back to heuristic search.
	trips := []*models.CompanyTrip{
		{ID: 1, DateTime: "01/06/2024 18:00", Source: "תל אביב", Destination: "ירושלים", OrderNumbers: []string{"G-9"}},
		{ID: 2, DateTime: "01/06/2024 10:05", Source: "תל אביב", Destination: "ירושלים"},
	}
	records := []*models.GettTrip{
		{OrderNumber: "G-9", Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "ירושלים"},
	}

	idx := NewTripIndex(trips)
	results := newFuzzyMatcher().Match(idx, records)

	var match *models.MatchResult
	for i := range results {
		if results[i].Status == models.StatusMatched {
			match = &results[i]
		}
	}
	if match == nil {
		t.Fatal("Expected a matched result via heuristic fallback")
	}
	if match.Trip.ID != 2 {
		t.Errorf("Matched trip = %d, want 2", match.Trip.ID)
	}
}

func TestFuzzyMatcher_PriceDifferenceIsMetadata(t *testing.T) {
	trips := []*models.CompanyTrip{
		{ID: 1, DateTime: "01/06/2024 10:00", Source: "תל אביב", Destination: "ירושלים", Price: decimal.NewFromInt(100)},
	}
	records := []*models.GettTrip{
		{Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "ירושלים", Price: decimal.NewFromInt(90)},
	}

	idx := NewTripIndex(trips)
	results := newFuzzyMatcher().Match(idx, records)

	if results[0].Status != models.StatusMatched {
		t.Fatalf("Status = %s, want matched (discrepancy is metadata here)", results[0].Status)
	}
	if !results[0].PriceDifference.Equal(decimal.NewFromInt(10)) {
		t.Errorf("PriceDifference = %s, want 10", results[0].PriceDifference.String())
	}
}

func TestFuzzyMatcher_Sweep(t *testing.T) {
	trips := []*models.CompanyTrip{
		{ID: 1, DateTime: "01/06/2024 10:00", SupplierLabel: "Gett"},
		{ID: 2, DateTime: "01/06/2024 11:00", SupplierLabel: "Hori", OrderNumbers: []string{"G-5"}},
		{ID: 3, DateTime: "01/06/2024 12:00", SupplierLabel: "Hori"},
		{ID: 4, DateTime: "01/06/2024 13:00", OrderNumbers: []string{"G-6"}},
	}

	idx := NewTripIndex(trips)
	results := newFuzzyMatcher().Match(idx, nil)

	byTrip := make(map[int]models.MatchStatus)
	for _, r := range results {
		if r.Trip != nil {
			byTrip[r.Trip.ID] = r.Status
		}
	}

	if byTrip[1] != models.StatusMissingInSupplier {
		t.Errorf("trip 1 status = %s, want missing_in_supplier", byTrip[1])
	}
	if byTrip[2] != models.StatusAssignedToOtherSupplier {
		t.Errorf("trip 2 status = %s, want assigned_to_other_supplier", byTrip[2])
	}
	if _, present := byTrip[3]; present {
		t.Error("trip 3 belongs to Hori and must not appear in the Gett pass")
	}
	if byTrip[4] != models.StatusMissingInSupplier {
		t.Errorf("trip 4 status = %s, want missing_in_supplier", byTrip[4])
	}
}

func TestFuzzyMatcher_Deterministic(t *testing.T) {
	trips := []*models.CompanyTrip{
		{ID: 1, DateTime: "01/06/2024 10:20", Source: "תל אביב", Destination: "ירושלים"},
		{ID: 2, DateTime: "01/06/2024 10:05", Source: "תל אביב", Destination: "ירושלים"},
		{ID: 3, DateTime: "01/06/2024 11:00", Source: "חיפה", Destination: "תל אביב", SupplierLabel: "Gett"},
	}
	records := []*models.GettTrip{
		{Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "ירושלים"},
		{Date: "01/06/2024", Time: "10:21", Source: "תל אביב", Destination: "ירושלים"},
	}

	run := func() []models.MatchResult {
		idx := NewTripIndex(trips)
		return newFuzzyMatcher().Match(idx, records)
	}

	first := run()
	for i := 0; i < 5; i++ {
		again := run()
		if len(again) != len(first) {
			t.Fatalf("run %d result count = %d, want %d", i, len(again), len(first))
		}
		for j := range first {
			if first[j].Status != again[j].Status {
				t.Fatalf("run %d result %d status = %s, want %s", i, j, again[j].Status, first[j].Status)
			}
			if (first[j].Trip == nil) != (again[j].Trip == nil) {
				t.Fatalf("run %d result %d trip presence differs", i, j)
			}
			if first[j].Trip != nil && first[j].Trip.ID != again[j].Trip.ID {
				t.Fatalf("run %d result %d trip = %d, want %d", i, j, again[j].Trip.ID, first[j].Trip.ID)
			}
		}
	}
}
