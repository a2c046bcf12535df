package matcher

import (
	"time"

	"trip-reconciliation-service/internal/directory"
	"trip-reconciliation-service/internal/models"
	"trip-reconciliation-service/internal/normalize"
	"trip-reconciliation-service/pkg/logger"
)

// FuzzyMatcher matches Gett invoice rows, which carry no reliable shared
// identifier, against the company trip pool by time proximity, location
// agreement and passenger overlap. Rows that do carry an order number
// (previously confirmed links) are resolved first, and such a
// confirmation displaces any provisional heuristic claim on the same
// trip made earlier in the same pass.
type FuzzyMatcher struct {
	cfg      *MatchConfig
	resolver *directory.Resolver
	log      logger.Logger
}

// NewFuzzyMatcher creates the matcher for the fuzzy-matched supplier.
func NewFuzzyMatcher(cfg *MatchConfig, resolver *directory.Resolver) *FuzzyMatcher {
	return &FuzzyMatcher{
		cfg:      cfg,
		resolver: resolver,
		log:      logger.GetGlobalLogger().WithComponent("fuzzy_matcher").WithField("supplier", SupplierGett),
	}
}

// assignment is one provisional trip claim during the pass.
type assignment struct {
	trip     *models.CompanyTrip
	timeDiff float64
	byOrder  bool
}

// Match runs the fuzzy pass. The algorithm is two-phase: records are
// processed with order-number carriers first so confirmed identifiers
// are resolved before heuristic search dilutes the candidate pool, and
// assignments stay provisional until every record has been seen; only
// then are results materialized, so a displaced claim re-classifies its
// former holder instead of mutating an emitted result.
func (m *FuzzyMatcher) Match(idx *TripIndex, records []*models.GettTrip) []models.MatchResult {
	order := processingOrder(records)

	assignments := make(map[int]*assignment, len(records)) // record index -> claim
	holder := make(map[int]int)                            // trip ID -> record index
	displaced := make(map[int]struct{})

	for _, ri := range order {
		rec := records[ri]

		if a := m.tryOrderNumberLane(idx, rec, assignments, holder, displaced); a != nil {
			assignments[ri] = a
			holder[a.trip.ID] = ri
			idx.Claim(a.trip.ID)
			continue
		}

		if a := m.searchCandidates(idx, rec); a != nil {
			assignments[ri] = a
			holder[a.trip.ID] = ri
			idx.Claim(a.trip.ID)
		}
	}

	results := make([]models.MatchResult, 0, len(records))
	for ri, rec := range records {
		if _, out := displaced[ri]; out {
			results = append(results, models.MatchResult{
				Status:   models.StatusMissingInRide,
				Supplier: rec,
			})
			continue
		}

		a, ok := assignments[ri]
		if !ok {
			results = append(results, models.MatchResult{
				Status:   models.StatusMissingInRide,
				Supplier: rec,
			})
			continue
		}

		confidence := m.cfg.FallbackConfidence
		if a.byOrder {
			confidence = 1.0
		}
		// A price discrepancy on this supplier is metadata on a matched
		// record, not a separate status.
		results = append(results, models.MatchResult{
			Status:          models.StatusMatched,
			Trip:            a.trip,
			Supplier:        rec,
			PriceDifference: a.trip.Price.Sub(rec.Price).Abs(),
			Confidence:      confidence,
		})
	}

	results = append(results, m.sweepUnclaimed(idx)...)

	m.log.WithFields(logger.Fields{
		"records":   len(records),
		"matched":   len(assignments),
		"displaced": len(displaced),
	}).Info("Fuzzy pass completed")
	return results
}

// processingOrder yields record indexes with order-number carriers
// first; input order is preserved within each group.
func processingOrder(records []*models.GettTrip) []int {
	order := make([]int, 0, len(records))
	for i, rec := range records {
		if rec.OrderNumber != "" {
			order = append(order, i)
		}
	}
	for i, rec := range records {
		if rec.OrderNumber == "" {
			order = append(order, i)
		}
	}
	return order
}

// tryOrderNumberLane resolves a record's order number against trips that
// recorded it on a prior run or manual link. The confirmed identifier
// wins over any provisional claim: the previous holder is displaced and
// later re-classified as missing_in_ride.
func (m *FuzzyMatcher) tryOrderNumberLane(
	idx *TripIndex,
	rec *models.GettTrip,
	assignments map[int]*assignment,
	holder map[int]int,
	displaced map[int]struct{},
) *assignment {
	if rec.OrderNumber == "" {
		return nil
	}
	trip, ok := idx.ByOrderNumber[rec.OrderNumber]
	if !ok {
		return nil
	}

	timeDiff, valid := m.validateCandidate(idx, rec, trip)
	if !valid {
		return nil
	}

	if prev, claimed := holder[trip.ID]; claimed {
		m.log.WithFields(logger.Fields{
			"trip_id":      trip.ID,
			"order_number": rec.OrderNumber,
		}).Debug("Order-number match displaced provisional claim")
		displaced[prev] = struct{}{}
		delete(assignments, prev)
		idx.Release(trip.ID)
	} else if idx.IsClaimed(trip.ID) {
		// Claimed by an earlier supplier pass; the confirmed link is
		// definitionally wrong only within this pass, leave it be.
		return nil
	}

	return &assignment{trip: trip, timeDiff: timeDiff, byOrder: true}
}

// searchCandidates gathers unclaimed trips from the day-window buckets
// around the record's date and selects the passing candidate with the
// smallest time difference; ties keep the first found.
func (m *FuzzyMatcher) searchCandidates(idx *TripIndex, rec *models.GettTrip) *assignment {
	recTime, ok := normalize.ResolveDateTime(rec.Date, rec.Time)
	if !ok {
		return nil
	}

	var best *assignment
	for _, trip := range idx.CandidatesAround(recTime, m.cfg.DayWindow) {
		timeDiff, valid := m.validateCandidateAt(idx, rec, trip, recTime)
		if !valid {
			continue
		}
		if best == nil || timeDiff < best.timeDiff {
			best = &assignment{trip: trip, timeDiff: timeDiff}
		}
	}
	return best
}

// validateCandidate resolves the record's own time and defers to
// validateCandidateAt. An unparsable record time fails conservatively.
func (m *FuzzyMatcher) validateCandidate(idx *TripIndex, rec *models.GettTrip, trip *models.CompanyTrip) (float64, bool) {
	recTime, ok := normalize.ResolveDateTime(rec.Date, rec.Time)
	if !ok {
		return 0, false
	}
	return m.validateCandidateAt(idx, rec, trip, recTime)
}

// validateCandidateAt applies the full criteria set to one candidate:
// time window, pickup and drop-off agreement, passenger overlap.
func (m *FuzzyMatcher) validateCandidateAt(
	idx *TripIndex,
	rec *models.GettTrip,
	trip *models.CompanyTrip,
	recTime time.Time,
) (float64, bool) {
	tripTime, ok := idx.ResolvedTime(trip)
	if !ok {
		return 0, false
	}

	timeDiff := normalize.MinutesBetween(recTime, tripTime)
	if timeDiff > m.cfg.TimeToleranceMinutes {
		return 0, false
	}

	if !normalize.LocationsMatch(rec.Source, trip.Source) {
		return 0, false
	}
	if !normalize.LocationsMatch(rec.Destination, trip.Destination) &&
		!normalize.LenientDestinationMatch(rec.Destination, trip.Destination, m.cfg.LenientTokenCountSlack) {
		return 0, false
	}

	// Passenger overlap only blocks when the trip actually names riders.
	if len(trip.PIDs) > 0 && !m.resolver.SharesAnyRider(trip.PIDs, rec.Passengers) {
		return 0, false
	}

	return timeDiff, true
}

// sweepUnclaimed classifies every unclaimed trip that belongs to this
// supplier, by label or by a previously confirmed order number:
// missing_in_supplier when the trip-side label agrees (or is empty),
// assigned_to_other_supplier when the trip carries a different non-empty
// label, which indicates a labeling data-entry problem rather than a
// genuinely missing invoice line.
func (m *FuzzyMatcher) sweepUnclaimed(idx *TripIndex) []models.MatchResult {
	var results []models.MatchResult
	for _, trip := range idx.AllTrips {
		if idx.IsClaimed(trip.ID) {
			continue
		}

		labeledGett := m.cfg.LabelBelongsTo(SupplierGett, trip.SupplierLabel)
		linkedGett := len(trip.OrderNumbers) > 0
		if !labeledGett && !linkedGett {
			continue
		}

		status := models.StatusMissingInSupplier
		if !labeledGett && trip.SupplierLabel != "" && m.belongsToOtherSupplier(trip.SupplierLabel) {
			status = models.StatusAssignedToOtherSupplier
		}
		results = append(results, models.MatchResult{
			Status: status,
			Trip:   trip,
		})
	}
	return results
}

// belongsToOtherSupplier reports whether a label maps to a supplier
// other than Gett.
func (m *FuzzyMatcher) belongsToOtherSupplier(label string) bool {
	for supplier := range m.cfg.Aliases {
		if supplier == SupplierGett {
			continue
		}
		if m.cfg.LabelBelongsTo(supplier, label) {
			return true
		}
	}
	return false
}
