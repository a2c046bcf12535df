package matcher

import (
	"strconv"
	"strings"

	"trip-reconciliation-service/internal/models"
	"trip-reconciliation-service/internal/normalize"
	"trip-reconciliation-service/pkg/logger"
)

// ExactKeyMatcher matches supplier rows whose order/trip number is the
// company trip identifier (Hori, Limor). Classification is matched or
// price_difference at confidence 1.0; Limor rows priced at the flat
// shuttle fare get one fallback search when the key lookup fails.
type ExactKeyMatcher struct {
	cfg      *MatchConfig
	supplier string
	log      logger.Logger
}

// NewExactKeyMatcher creates a matcher for one exact-key supplier.
func NewExactKeyMatcher(cfg *MatchConfig, supplier string) *ExactKeyMatcher {
	return &ExactKeyMatcher{
		cfg:      cfg,
		supplier: supplier,
		log:      logger.GetGlobalLogger().WithComponent("exact_matcher").WithField("supplier", supplier),
	}
}

// Match runs the pass for this supplier's rows against the shared pool.
// Every row and every trip labeled for this supplier appears in exactly
// one result.
func (m *ExactKeyMatcher) Match(idx *TripIndex, records []models.SupplierRecord) []models.MatchResult {
	results := make([]models.MatchResult, 0, len(records))

	for _, rec := range records {
		if trip := m.lookupByKey(idx, rec.RecordKey()); trip != nil {
			results = append(results, m.classify(trip, rec))
			idx.Claim(trip.ID)
			continue
		}

		if trip := m.flatFareFallback(idx, rec); trip != nil {
			m.log.WithFields(logger.Fields{
				"trip_id": trip.ID,
				"date":    rec.RecordDate(),
			}).Debug("Accepted flat-fare fallback match")
			results = append(results, models.MatchResult{
				Status:          models.StatusMatched,
				Trip:            trip,
				Supplier:        rec,
				PriceDifference: trip.Price.Sub(rec.RecordPrice()).Abs(),
				Confidence:      m.cfg.FallbackConfidence,
			})
			idx.Claim(trip.ID)
			continue
		}

		results = append(results, models.MatchResult{
			Status:   models.StatusMissingInRide,
			Supplier: rec,
		})
	}

	results = append(results, m.sweepUnclaimed(idx)...)

	m.log.WithFields(logger.Fields{
		"records": len(records),
		"results": len(results),
	}).Info("Exact-key pass completed")
	return results
}

// lookupByKey resolves a supplier key to a trip, trying the numeric form
// first and tolerating the ".0" suffix spreadsheet exports append.
func (m *ExactKeyMatcher) lookupByKey(idx *TripIndex, key string) *models.CompanyTrip {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	key = strings.TrimSuffix(key, ".0")

	if id, err := strconv.Atoi(key); err == nil {
		if trip, ok := idx.ByID[id]; ok {
			return trip
		}
	}

	// String form: leading zeros or stray spacing in the export.
	trimmed := strings.TrimLeft(key, "0")
	if id, err := strconv.Atoi(trimmed); err == nil {
		if trip, ok := idx.ByID[id]; ok {
			return trip
		}
	}
	return nil
}

// classify compares prices under the fixed tolerance.
func (m *ExactKeyMatcher) classify(trip *models.CompanyTrip, rec models.SupplierRecord) models.MatchResult {
	diff := trip.Price.Sub(rec.RecordPrice()).Abs()
	status := models.StatusMatched
	if !m.cfg.PricesAgree(trip.Price, rec.RecordPrice()) {
		status = models.StatusPriceDifference
	}
	return models.MatchResult{
		Status:          status,
		Trip:            trip,
		Supplier:        rec,
		PriceDifference: diff,
		Confidence:      1.0,
	}
}

// flatFareFallback searches same-priced, same-date, yet-unmatched trips
// for a Limor row priced at the flat shuttle fare. Only a unique
// candidate is accepted; any ambiguity leaves the row unmatched.
func (m *ExactKeyMatcher) flatFareFallback(idx *TripIndex, rec models.SupplierRecord) *models.CompanyTrip {
	if m.supplier != SupplierLimor {
		return nil
	}
	if !rec.RecordPrice().Equal(m.cfg.LimorFlatFare) {
		return nil
	}

	t, ok := normalize.ResolveDateTime(rec.RecordDate(), "")
	if !ok {
		return nil
	}

	candidates := idx.UnclaimedOnDateWithPrice(normalize.DateKey(t), rec.RecordPrice())
	if len(candidates) != 1 {
		return nil
	}
	return candidates[0]
}

// sweepUnclaimed emits missing_in_supplier for every unclaimed trip
// whose label belongs to this supplier.
func (m *ExactKeyMatcher) sweepUnclaimed(idx *TripIndex) []models.MatchResult {
	var results []models.MatchResult
	for _, trip := range idx.AllTrips {
		if idx.IsClaimed(trip.ID) {
			continue
		}
		if !m.cfg.LabelBelongsTo(m.supplier, trip.SupplierLabel) {
			continue
		}
		results = append(results, models.MatchResult{
			Status: models.StatusMissingInSupplier,
			Trip:   trip,
		})
	}
	return results
}
