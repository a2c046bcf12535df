package matcher

import (
	"time"

	"trip-reconciliation-service/internal/models"
	"trip-reconciliation-service/internal/normalize"

	"github.com/shopspring/decimal"
)

// TripIndex provides the lookups both matchers run against: by trip
// identifier, by previously recorded supplier order number, and by
// calendar date. It also carries the claimed set shared across the
// supplier passes of one reconciliation run; the index is scoped to a
// single run and never outlives it.
type TripIndex struct {
	// ByID maps the company trip identifier to the trip.
	ByID map[int]*models.CompanyTrip

	// ByOrderNumber maps any known prior supplier order number to the
	// trip that recorded it (confirmed manual links land here).
	ByOrderNumber map[string]*models.CompanyTrip

	// DateBuckets maps a calendar-date key to the trips resolved to
	// that date. Trips with unparsable date/time appear in no bucket.
	DateBuckets map[string][]*models.CompanyTrip

	// AllTrips holds every indexed trip in input order.
	AllTrips []*models.CompanyTrip

	claimed map[int]struct{}
	times   map[int]resolvedTime
}

type resolvedTime struct {
	t  time.Time
	ok bool
}

// NewTripIndex builds the run's index from the overlay-merged trip pool.
func NewTripIndex(trips []*models.CompanyTrip) *TripIndex {
	idx := &TripIndex{
		ByID:          make(map[int]*models.CompanyTrip, len(trips)),
		ByOrderNumber: make(map[string]*models.CompanyTrip),
		DateBuckets:   make(map[string][]*models.CompanyTrip),
		AllTrips:      trips,
		claimed:       make(map[int]struct{}),
		times:         make(map[int]resolvedTime, len(trips)),
	}

	for _, trip := range trips {
		idx.ByID[trip.ID] = trip

		for _, num := range trip.OrderNumbers {
			if num != "" {
				idx.ByOrderNumber[num] = trip
			}
		}

		t, ok := normalize.ResolveDateTime(trip.DateTime, "")
		idx.times[trip.ID] = resolvedTime{t: t, ok: ok}
		if ok {
			key := normalize.DateKey(t)
			idx.DateBuckets[key] = append(idx.DateBuckets[key], trip)
		}
	}

	return idx
}

// ResolvedTime returns the trip's resolved timestamp and whether its
// raw date/time field was parsable.
func (idx *TripIndex) ResolvedTime(trip *models.CompanyTrip) (time.Time, bool) {
	rt, found := idx.times[trip.ID]
	if !found {
		return time.Time{}, false
	}
	return rt.t, rt.ok
}

// Claim marks a trip as taken for the remainder of the run.
func (idx *TripIndex) Claim(id int) {
	idx.claimed[id] = struct{}{}
}

// Release removes a claim, used when an order-number match displaces a
// provisional heuristic assignment.
func (idx *TripIndex) Release(id int) {
	delete(idx.claimed, id)
}

// IsClaimed reports whether a trip is already taken.
func (idx *TripIndex) IsClaimed(id int) bool {
	_, ok := idx.claimed[id]
	return ok
}

// CandidatesAround returns the unclaimed trips bucketed on the given
// date and dayWindow calendar days to either side, in bucket order.
func (idx *TripIndex) CandidatesAround(t time.Time, dayWindow int) []*models.CompanyTrip {
	var candidates []*models.CompanyTrip
	for offset := -dayWindow; offset <= dayWindow; offset++ {
		key := normalize.DateKey(t.AddDate(0, 0, offset))
		for _, trip := range idx.DateBuckets[key] {
			if !idx.IsClaimed(trip.ID) {
				candidates = append(candidates, trip)
			}
		}
	}
	return candidates
}

// UnclaimedOnDateWithPrice returns the unclaimed trips whose resolved
// date matches the key and whose price equals the given amount. Used by
// the flat-fare fallback lane.
func (idx *TripIndex) UnclaimedOnDateWithPrice(dateKey string, price decimal.Decimal) []*models.CompanyTrip {
	var out []*models.CompanyTrip
	for _, trip := range idx.DateBuckets[dateKey] {
		if idx.IsClaimed(trip.ID) {
			continue
		}
		if trip.Price.Equal(price) {
			out = append(out, trip)
		}
	}
	return out
}
