// Package reconciler orchestrates one reconciliation run: overlay
// merge, index construction, the three supplier passes and summary
// assembly.
package reconciler

import (
	"context"
	"time"

	"trip-reconciliation-service/internal/directory"
	"trip-reconciliation-service/internal/matcher"
	"trip-reconciliation-service/internal/models"
	"trip-reconciliation-service/pkg/errors"
	"trip-reconciliation-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service runs reconciliations with a fixed matching configuration.
type Service struct {
	cfg *matcher.MatchConfig
	log logger.Logger
}

// NewService creates a reconciliation service. A nil config falls back
// to the defaults.
func NewService(cfg *matcher.MatchConfig) (*Service, error) {
	if cfg == nil {
		cfg = matcher.DefaultMatchConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "match_config", nil, err)
	}
	return &Service{
		cfg: cfg,
		log: logger.GetGlobalLogger().WithComponent("reconciliation_service"),
	}, nil
}

// Input carries everything one run consumes: the company trip pool,
// the three supplier record sets, the employee directory and the
// manual adjustment overlay. Any slice may be empty; Overlay may be
// nil.
type Input struct {
	Trips     []*models.CompanyTrip
	Hori      []*models.HoriTrip
	Limor     []*models.LimorTrip
	Gett      []*models.GettTrip
	Employees []models.Employee
	Overlay   *models.Overlay
}

// Validate rejects structural misuse. Malformed business data inside
// records is not an error; it degrades match quality instead.
func (in *Input) Validate() error {
	if in == nil {
		return errors.ValidationError(errors.CodeMissingField, "input", nil, nil)
	}
	seen := make(map[int]struct{}, len(in.Trips))
	for _, trip := range in.Trips {
		if trip == nil {
			return errors.ValidationError(errors.CodeMissingField, "trips", nil, nil).
				WithSuggestion("remove nil entries from the trip pool")
		}
		if _, dup := seen[trip.ID]; dup {
			return errors.ValidationError(errors.CodeDuplicateTripID, "trips", trip.ID, nil)
		}
		seen[trip.ID] = struct{}{}
	}
	return nil
}

// SupplierSummary aggregates one supplier pass.
type SupplierSummary struct {
	Supplier             string                     `json:"supplier"`
	TotalResults         int                        `json:"total_results"`
	SupplierRows         int                        `json:"supplier_rows"`
	ByStatus             map[models.MatchStatus]int `json:"by_status"`
	MatchRate            float64                    `json:"match_rate"`
	TotalPrice           decimal.Decimal            `json:"total_price"`
	AveragePrice         decimal.Decimal            `json:"average_price"`
	TotalPriceDifference decimal.Decimal            `json:"total_price_difference"`
}

// RunResult is the outcome of one reconciliation run. Result slices
// keep pass order, so identical inputs produce identical slices; only
// RunID and ProcessedAt vary between runs.
type RunResult struct {
	RunID       uuid.UUID                       `json:"run_id"`
	PerSupplier map[string][]models.MatchResult `json:"per_supplier"`
	Summaries   map[string]*SupplierSummary     `json:"summaries"`
	ProcessedAt time.Time                       `json:"processed_at"`
	Duration    time.Duration                   `json:"duration"`
}

// Reconcile executes the full run: merge the overlay into the trip
// pool, build the shared index, run the exact passes for Hori and
// Limor, the fuzzy pass for Gett, and summarize.
func (s *Service) Reconcile(ctx context.Context, input *Input) (*RunResult, error) {
	start := time.Now()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	merged := MergeOverlay(input.Trips, input.Overlay)
	idx := matcher.NewTripIndex(merged)
	resolver := directory.NewResolver(directory.New(input.Employees))

	s.log.WithFields(logger.Fields{
		"trips":     len(merged),
		"hori":      len(input.Hori),
		"limor":     len(input.Limor),
		"gett":      len(input.Gett),
		"employees": len(input.Employees),
	}).Info("Reconciliation run started")

	result := &RunResult{
		RunID:       uuid.New(),
		PerSupplier: make(map[string][]models.MatchResult, 3),
		Summaries:   make(map[string]*SupplierSummary, 3),
	}

	passes := []struct {
		supplier string
		run      func() []models.MatchResult
	}{
		{matcher.SupplierHori, func() []models.MatchResult {
			return matcher.NewExactKeyMatcher(s.cfg, matcher.SupplierHori).Match(idx, horiRecords(input.Hori))
		}},
		{matcher.SupplierLimor, func() []models.MatchResult {
			return matcher.NewExactKeyMatcher(s.cfg, matcher.SupplierLimor).Match(idx, limorRecords(input.Limor))
		}},
		{matcher.SupplierGett, func() []models.MatchResult {
			return matcher.NewFuzzyMatcher(s.cfg, resolver).Match(idx, input.Gett)
		}},
	}

	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			return nil, errors.ReconciliationError(errors.CodeProcessingError, pass.supplier+" pass", err)
		}
		results := pass.run()
		result.PerSupplier[pass.supplier] = results
		result.Summaries[pass.supplier] = summarize(pass.supplier, results)
	}

	result.ProcessedAt = time.Now()
	result.Duration = time.Since(start)

	s.log.WithFields(logger.Fields{
		"run_id":   result.RunID.String(),
		"duration": result.Duration.String(),
	}).Info("Reconciliation run completed")
	return result, nil
}

// MergeOverlay applies manual adjustments to a cloned trip pool:
// price corrections replace the trip price, manual links append to the
// trip's known order numbers, excluded trips are removed. The input
// slice is never mutated.
func MergeOverlay(trips []*models.CompanyTrip, overlay *models.Overlay) []*models.CompanyTrip {
	merged := make([]*models.CompanyTrip, 0, len(trips))
	for _, trip := range trips {
		if overlay.Excluded(trip.ID) {
			continue
		}
		clone := trip.Clone()
		if overlay != nil {
			if price, ok := overlay.PriceCorrections[clone.ID]; ok {
				clone.Price = price
			}
			if num, ok := overlay.ManualLinks[clone.ID]; ok && num != "" && !clone.HasOrderNumber(num) {
				clone.OrderNumbers = append(clone.OrderNumbers, num)
			}
		}
		merged = append(merged, clone)
	}
	return merged
}

func horiRecords(rows []*models.HoriTrip) []models.SupplierRecord {
	records := make([]models.SupplierRecord, len(rows))
	for i, r := range rows {
		records[i] = r
	}
	return records
}

func limorRecords(rows []*models.LimorTrip) []models.SupplierRecord {
	records := make([]models.SupplierRecord, len(rows))
	for i, r := range rows {
		records[i] = r
	}
	return records
}

// summarize computes per-status counts, the match rate over supplier
// rows and the price aggregates for one pass.
func summarize(supplier string, results []models.MatchResult) *SupplierSummary {
	summary := &SupplierSummary{
		Supplier:             supplier,
		TotalResults:         len(results),
		ByStatus:             make(map[models.MatchStatus]int),
		TotalPrice:           decimal.Zero,
		AveragePrice:         decimal.Zero,
		TotalPriceDifference: decimal.Zero,
	}

	// Match rate is the share of supplier rows paired to a trip, so a
	// row with a price discrepancy still counts as paired.
	paired := 0
	for _, r := range results {
		summary.ByStatus[r.Status]++
		summary.TotalPriceDifference = summary.TotalPriceDifference.Add(r.PriceDifference)
		if r.Supplier == nil {
			continue
		}
		summary.SupplierRows++
		summary.TotalPrice = summary.TotalPrice.Add(r.Supplier.RecordPrice())
		if r.Trip != nil {
			paired++
		}
	}

	if summary.SupplierRows > 0 {
		summary.MatchRate = float64(paired) / float64(summary.SupplierRows)
		summary.AveragePrice = summary.TotalPrice.Div(decimal.NewFromInt(int64(summary.SupplierRows))).Round(2)
	}
	return summary
}
