// Package allocator splits company trip costs across departments
// proportionally to rider headcount.
package allocator

import (
	"sort"

	"trip-reconciliation-service/internal/directory"
	"trip-reconciliation-service/internal/models"
	"trip-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// TripShare is one department's slice of a single trip.
type TripShare struct {
	Department string          `json:"department"`
	RiderCount int             `json:"rider_count"`
	Employees  []string        `json:"employees"`
	Share      decimal.Decimal `json:"share"`
}

// TripAllocation is the full breakdown of one trip across departments.
type TripAllocation struct {
	TripID      int             `json:"trip_id"`
	Price       decimal.Decimal `json:"price"`
	TotalRiders int             `json:"total_riders"`
	Shares      []TripShare     `json:"shares"`
}

// DepartmentTotal aggregates one department across the whole pool.
type DepartmentTotal struct {
	Department string          `json:"department"`
	Total      decimal.Decimal `json:"total"`
	RideCount  int             `json:"ride_count"`
	Average    decimal.Decimal `json:"average"`
}

// DepartmentAllocation is the allocator's result: per-trip breakdowns
// in input order and department totals in name order.
type DepartmentAllocation struct {
	Trips      []TripAllocation  `json:"trips"`
	Totals     []DepartmentTotal `json:"totals"`
	GrandTotal decimal.Decimal   `json:"grand_total"`
}

// Allocate splits every trip's price across the departments of its
// riders. Riders not found in the directory count toward the split
// denominator but join no department, so their slice of the price is
// simply not allocated. Trips without riders, and trips where no rider
// resolves, contribute nothing.
func Allocate(trips []*models.CompanyTrip, dir *directory.Directory) *DepartmentAllocation {
	log := logger.GetGlobalLogger().WithComponent("allocator")

	result := &DepartmentAllocation{
		Trips:      []TripAllocation{},
		Totals:     []DepartmentTotal{},
		GrandTotal: decimal.Zero,
	}
	if dir == nil {
		dir = directory.New(nil)
	}

	for _, trip := range trips {
		if trip == nil || len(trip.PIDs) == 0 {
			continue
		}
		alloc := allocateTrip(trip, dir)
		if len(alloc.Shares) == 0 {
			log.WithField("trip_id", trip.ID).Debug("No resolvable riders, trip skipped")
			continue
		}
		result.Trips = append(result.Trips, alloc)
	}

	accumulateTotals(result)

	log.WithFields(logger.Fields{
		"trips":       len(result.Trips),
		"departments": len(result.Totals),
		"grand_total": result.GrandTotal.String(),
	}).Info("Cost allocation completed")
	return result
}

// allocateTrip computes one trip's department shares. Shares are
// rounded to two decimal places; when every rider resolved, the
// rounding residual goes to the largest-headcount department, name
// order breaking ties, so the shares sum exactly to the trip price.
func allocateTrip(trip *models.CompanyTrip, dir *directory.Directory) TripAllocation {
	alloc := TripAllocation{
		TripID:      trip.ID,
		Price:       trip.Price,
		TotalRiders: len(trip.PIDs),
	}

	byDept := make(map[string][]string)
	resolved := 0
	for _, pid := range trip.PIDs {
		emp := dir.Get(pid)
		if emp == nil {
			continue
		}
		resolved++
		byDept[emp.Department] = append(byDept[emp.Department], emp.FullName())
	}
	if resolved == 0 {
		return alloc
	}

	departments := make([]string, 0, len(byDept))
	for dept := range byDept {
		departments = append(departments, dept)
	}
	sort.Strings(departments)

	total := decimal.NewFromInt(int64(alloc.TotalRiders))
	allocated := decimal.Zero
	largest := 0
	for i, dept := range departments {
		riders := byDept[dept]
		share := trip.Price.
			Mul(decimal.NewFromInt(int64(len(riders)))).
			Div(total).
			Round(2)
		alloc.Shares = append(alloc.Shares, TripShare{
			Department: dept,
			RiderCount: len(riders),
			Employees:  riders,
			Share:      share,
		})
		allocated = allocated.Add(share)
		if len(riders) > len(byDept[departments[largest]]) {
			largest = i
		}
	}

	if resolved == alloc.TotalRiders {
		if residual := trip.Price.Sub(allocated); !residual.IsZero() {
			alloc.Shares[largest].Share = alloc.Shares[largest].Share.Add(residual)
		}
	}
	return alloc
}

// accumulateTotals is the second pass: department totals, ride counts,
// averages and the grand total across all per-trip breakdowns.
func accumulateTotals(result *DepartmentAllocation) {
	totals := make(map[string]*DepartmentTotal)
	for _, alloc := range result.Trips {
		for _, share := range alloc.Shares {
			dt, ok := totals[share.Department]
			if !ok {
				dt = &DepartmentTotal{Department: share.Department, Total: decimal.Zero}
				totals[share.Department] = dt
			}
			dt.Total = dt.Total.Add(share.Share)
			dt.RideCount++
		}
	}

	departments := make([]string, 0, len(totals))
	for dept := range totals {
		departments = append(departments, dept)
	}
	sort.Strings(departments)

	for _, dept := range departments {
		dt := totals[dept]
		dt.Average = dt.Total.Div(decimal.NewFromInt(int64(dt.RideCount))).Round(2)
		result.Totals = append(result.Totals, *dt)
		result.GrandTotal = result.GrandTotal.Add(dt.Total)
	}
}
