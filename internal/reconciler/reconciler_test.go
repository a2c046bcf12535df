package reconciler

import (
	"context"
	"testing"

	"trip-reconciliation-service/internal/matcher"
	"trip-reconciliation-service/internal/models"

	"github.com/shopspring/decimal"
)

func createTestInput() *Input {
	return &Input{
		Trips: []*models.CompanyTrip{
			{ID: 100, DateTime: "01/06/2024 08:00", Source: "חיפה", Destination: "תל אביב", Price: decimal.NewFromInt(50), SupplierLabel: "Hori"},
			{ID: 200, DateTime: "01/06/2024 09:00", Source: "תל אביב", Destination: "נתניה", Price: decimal.NewFromInt(35), SupplierLabel: "לימור"},
			{ID: 300, DateTime: "01/06/2024 10:05", Source: "תל אביב", Destination: "ירושלים", PIDs: []int{123}, Price: decimal.NewFromInt(80), SupplierLabel: "Gett"},
			{ID: 400, DateTime: "02/06/2024 12:00", Source: "חיפה", Destination: "ירושלים", Price: decimal.NewFromInt(60), SupplierLabel: "Hori"},
		},
		Hori: []*models.HoriTrip{
			{TripNumber: "100", Date: "01/06/2024", Price: decimal.NewFromInt(50)},
		},
		Limor: []*models.LimorTrip{
			{OrderNumber: "200", Date: "01/06/2024", Price: decimal.NewFromInt(35)},
		},
		Gett: []*models.GettTrip{
			{Date: "01/06/2024", Time: "10:00", Source: "תל אביב", Destination: "ירושלים", Passengers: "123", Price: decimal.NewFromInt(80)},
		},
		Employees: []models.Employee{
			{ID: 123, FirstName: "דנה", LastName: "לוי", Department: "Sales"},
		},
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(nil)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func statusOf(t *testing.T, results []models.MatchResult, tripID int) models.MatchStatus {
	t.Helper()
	for _, r := range results {
		if r.Trip != nil && r.Trip.ID == tripID {
			return r.Status
		}
	}
	t.Fatalf("trip %d not present in results", tripID)
	return ""
}

func TestService_Reconcile(t *testing.T) {
	svc := newTestService(t)
	result, err := svc.Reconcile(context.Background(), createTestInput())
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	hori := result.PerSupplier[matcher.SupplierHori]
	if len(hori) != 2 {
		t.Fatalf("hori result count = %d, want 2 (one row, one missing trip)", len(hori))
	}
	if statusOf(t, hori, 100) != models.StatusMatched {
		t.Errorf("trip 100 = %s, want matched", statusOf(t, hori, 100))
	}
	if statusOf(t, hori, 400) != models.StatusMissingInSupplier {
		t.Errorf("trip 400 = %s, want missing_in_supplier", statusOf(t, hori, 400))
	}

	limor := result.PerSupplier[matcher.SupplierLimor]
	if len(limor) != 1 || limor[0].Status != models.StatusMatched {
		t.Errorf("limor results = %+v, want one matched", limor)
	}

	gett := result.PerSupplier[matcher.SupplierGett]
	if len(gett) != 1 || gett[0].Status != models.StatusMatched {
		t.Fatalf("gett results = %+v, want one matched", gett)
	}
	if gett[0].Trip.ID != 300 {
		t.Errorf("gett matched trip = %d, want 300", gett[0].Trip.ID)
	}

	if result.RunID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("RunID not assigned")
	}
	if result.ProcessedAt.IsZero() {
		t.Error("ProcessedAt not set")
	}

	// Every emitted result keeps the at-least-one-side invariant.
	for supplier, results := range result.PerSupplier {
		for i := range results {
			if err := results[i].Validate(); err != nil {
				t.Errorf("%s result %d invalid: %v", supplier, i, err)
			}
		}
	}
}

func TestService_Reconcile_Summaries(t *testing.T) {
	svc := newTestService(t)
	result, err := svc.Reconcile(context.Background(), createTestInput())
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	hori := result.Summaries[matcher.SupplierHori]
	if hori.SupplierRows != 1 {
		t.Errorf("hori SupplierRows = %d, want 1", hori.SupplierRows)
	}
	if hori.MatchRate != 1.0 {
		t.Errorf("hori MatchRate = %v, want 1.0", hori.MatchRate)
	}
	if !hori.TotalPrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("hori TotalPrice = %s, want 50", hori.TotalPrice.String())
	}
	if !hori.AveragePrice.Equal(decimal.NewFromInt(50)) {
		t.Errorf("hori AveragePrice = %s, want 50", hori.AveragePrice.String())
	}
	if hori.ByStatus[models.StatusMissingInSupplier] != 1 {
		t.Errorf("hori missing_in_supplier count = %d, want 1", hori.ByStatus[models.StatusMissingInSupplier])
	}
	if !hori.TotalPriceDifference.IsZero() {
		t.Errorf("hori TotalPriceDifference = %s, want 0", hori.TotalPriceDifference.String())
	}
}

func TestService_Reconcile_Overlay(t *testing.T) {
	t.Run("price correction", func(t *testing.T) {
		input := createTestInput()
		input.Overlay = &models.Overlay{
			PriceCorrections: map[int]decimal.Decimal{100: decimal.NewFromInt(55)},
		}

		result, err := newTestService(t).Reconcile(context.Background(), input)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}

		hori := result.PerSupplier[matcher.SupplierHori]
		if got := statusOf(t, hori, 100); got != models.StatusPriceDifference {
			t.Errorf("trip 100 = %s, want price_difference after correction", got)
		}
		// The caller's pool is untouched.
		if !input.Trips[0].Price.Equal(decimal.NewFromInt(50)) {
			t.Error("overlay merge mutated the input trip pool")
		}
	})

	t.Run("manual link", func(t *testing.T) {
		input := createTestInput()
		input.Gett[0].OrderNumber = "G-1"
		input.Gett[0].Time = "10:05"
		input.Overlay = &models.Overlay{
			ManualLinks: map[int]string{300: "G-1"},
		}

		result, err := newTestService(t).Reconcile(context.Background(), input)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}

		gett := result.PerSupplier[matcher.SupplierGett]
		if len(gett) != 1 || gett[0].Status != models.StatusMatched {
			t.Fatalf("gett results = %+v, want one matched", gett)
		}
		if gett[0].Confidence != 1.0 {
			t.Errorf("manually linked match confidence = %v, want 1.0", gett[0].Confidence)
		}
	})

	t.Run("exclusion", func(t *testing.T) {
		input := createTestInput()
		input.Overlay = &models.Overlay{ExcludedTripIDs: []int{400}}

		result, err := newTestService(t).Reconcile(context.Background(), input)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}

		hori := result.PerSupplier[matcher.SupplierHori]
		if len(hori) != 1 {
			t.Fatalf("hori result count = %d, want 1 after excluding trip 400", len(hori))
		}
		for _, r := range hori {
			if r.Trip != nil && r.Trip.ID == 400 {
				t.Error("excluded trip 400 still present in results")
			}
		}
	})
}

func TestService_Reconcile_Deterministic(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.Reconcile(context.Background(), createTestInput())
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		again, err := svc.Reconcile(context.Background(), createTestInput())
		if err != nil {
			t.Fatalf("Reconcile run %d failed: %v", i, err)
		}
		for supplier, want := range first.PerSupplier {
			got := again.PerSupplier[supplier]
			if len(got) != len(want) {
				t.Fatalf("%s result count differs between runs", supplier)
			}
			for j := range want {
				if got[j].Status != want[j].Status {
					t.Errorf("%s result %d status = %s, want %s", supplier, j, got[j].Status, want[j].Status)
				}
			}
		}
	}
}

func TestService_Reconcile_InputValidation(t *testing.T) {
	svc := newTestService(t)

	t.Run("nil input", func(t *testing.T) {
		if _, err := svc.Reconcile(context.Background(), nil); err == nil {
			t.Error("expected error for nil input")
		}
	})

	t.Run("duplicate trip IDs", func(t *testing.T) {
		input := createTestInput()
		input.Trips = append(input.Trips, &models.CompanyTrip{ID: 100, DateTime: "03/06/2024"})
		if _, err := svc.Reconcile(context.Background(), input); err == nil {
			t.Error("expected error for duplicate trip ID")
		}
	})

	t.Run("empty input succeeds", func(t *testing.T) {
		result, err := svc.Reconcile(context.Background(), &Input{})
		if err != nil {
			t.Fatalf("Reconcile failed on empty input: %v", err)
		}
		for _, supplier := range []string{matcher.SupplierHori, matcher.SupplierLimor, matcher.SupplierGett} {
			if len(result.PerSupplier[supplier]) != 0 {
				t.Errorf("%s results non-empty for empty input", supplier)
			}
		}
	})
}

func TestService_Reconcile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestService(t).Reconcile(ctx, createTestInput()); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestNewService_InvalidConfig(t *testing.T) {
	cfg := matcher.DefaultMatchConfig()
	cfg.TimeToleranceMinutes = -1

	if _, err := NewService(cfg); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestMergeOverlay(t *testing.T) {
	trips := []*models.CompanyTrip{
		{ID: 1, DateTime: "01/06/2024", Price: decimal.NewFromInt(10)},
		{ID: 2, DateTime: "01/06/2024", Price: decimal.NewFromInt(20), OrderNumbers: []string{"G-1"}},
		{ID: 3, DateTime: "01/06/2024", Price: decimal.NewFromInt(30)},
	}

	t.Run("nil overlay clones everything", func(t *testing.T) {
		merged := MergeOverlay(trips, nil)
		if len(merged) != 3 {
			t.Fatalf("merged count = %d, want 3", len(merged))
		}
		if merged[0] == trips[0] {
			t.Error("merged pool shares pointers with the input")
		}
	})

	t.Run("all adjustments", func(t *testing.T) {
		overlay := &models.Overlay{
			PriceCorrections: map[int]decimal.Decimal{1: decimal.NewFromInt(15)},
			ManualLinks:      map[int]string{2: "G-2"},
			ExcludedTripIDs:  []int{3},
		}
		merged := MergeOverlay(trips, overlay)

		if len(merged) != 2 {
			t.Fatalf("merged count = %d, want 2", len(merged))
		}
		if !merged[0].Price.Equal(decimal.NewFromInt(15)) {
			t.Errorf("trip 1 price = %s, want 15", merged[0].Price.String())
		}
		if !merged[1].HasOrderNumber("G-1") || !merged[1].HasOrderNumber("G-2") {
			t.Errorf("trip 2 order numbers = %v, want both G-1 and G-2", merged[1].OrderNumbers)
		}
	})

	t.Run("duplicate manual link not appended twice", func(t *testing.T) {
		overlay := &models.Overlay{ManualLinks: map[int]string{2: "G-1"}}
		merged := MergeOverlay(trips, overlay)
		if len(merged[1].OrderNumbers) != 1 {
			t.Errorf("trip 2 order numbers = %v, want just G-1", merged[1].OrderNumbers)
		}
	})
}
