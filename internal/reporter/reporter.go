// Package reporter renders reconciliation and allocation results for
// terminal display, JSON consumers and spreadsheet import.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"trip-reconciliation-service/internal/allocator"
	"trip-reconciliation-service/internal/matcher"
	"trip-reconciliation-service/internal/models"
	"trip-reconciliation-service/internal/reconciler"
	"trip-reconciliation-service/pkg/errors"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid reports whether the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// supplierOrder fixes the rendering order across all formats.
var supplierOrder = []string{matcher.SupplierHori, matcher.SupplierLimor, matcher.SupplierGett}

// ReportConfig holds report generation options.
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// IncludeMatched also lists fully matched rows, not only the
	// statuses that need attention.
	IncludeMatched bool `json:"include_matched"`

	// MaxRows caps the per-supplier detail rows in console output.
	// Zero means no cap.
	MaxRows int `json:"max_rows"`
}

// DefaultReportConfig returns console output listing only rows that
// need attention.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:         FormatConsole,
		IncludeMatched: false,
		MaxRows:        0,
	}
}

// Validate checks the configuration.
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output_format", string(c.Format), nil)
	}
	if c.MaxRows < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "max_rows", c.MaxRows, nil)
	}
	return nil
}

// ReportGenerator renders run results in the configured format.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a generator. A nil config falls back to
// the defaults.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes a reconciliation run report to the writer.
func (rg *ReportGenerator) GenerateReport(result *reconciler.RunResult, w io.Writer) error {
	if result == nil {
		return errors.ValidationError(errors.CodeMissingField, "result", nil, nil)
	}
	switch rg.config.Format {
	case FormatJSON:
		return rg.writeJSON(result, w)
	case FormatCSV:
		return rg.writeCSV(result, w)
	default:
		return rg.writeConsole(result, w)
	}
}

// GenerateAllocationReport writes a department allocation report.
func (rg *ReportGenerator) GenerateAllocationReport(alloc *allocator.DepartmentAllocation, w io.Writer) error {
	if alloc == nil {
		return errors.ValidationError(errors.CodeMissingField, "allocation", nil, nil)
	}
	switch rg.config.Format {
	case FormatJSON:
		return rg.writeJSON(alloc, w)
	case FormatCSV:
		return rg.writeAllocationCSV(alloc, w)
	default:
		return rg.writeAllocationConsole(alloc, w)
	}
}

func (rg *ReportGenerator) writeJSON(v interface{}, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "json report encoding", err)
	}
	return nil
}

func (rg *ReportGenerator) writeConsole(result *reconciler.RunResult, w io.Writer) error {
	fmt.Fprintf(w, "Reconciliation Run %s\n", result.RunID)
	fmt.Fprintf(w, "Processed at: %s (took %s)\n\n", result.ProcessedAt.Format("2006-01-02 15:04:05"), result.Duration)

	for _, supplier := range supplierOrder {
		summary, ok := result.Summaries[supplier]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "=== %s ===\n", strings.ToUpper(supplier))
		fmt.Fprintf(w, "  results: %d  supplier rows: %d  match rate: %.1f%%\n",
			summary.TotalResults, summary.SupplierRows, summary.MatchRate*100)
		fmt.Fprintf(w, "  total price: %s  average: %s  price diff total: %s\n",
			summary.TotalPrice.StringFixed(2), summary.AveragePrice.StringFixed(2),
			summary.TotalPriceDifference.StringFixed(2))
		for _, status := range []models.MatchStatus{
			models.StatusMatched, models.StatusPriceDifference, models.StatusMissingInRide,
			models.StatusMissingInSupplier, models.StatusNotMatched, models.StatusAssignedToOtherSupplier,
		} {
			if count := summary.ByStatus[status]; count > 0 {
				fmt.Fprintf(w, "  %-26s %d\n", status.String()+":", count)
			}
		}

		rg.writeConsoleRows(result.PerSupplier[supplier], w)
		fmt.Fprintln(w)
	}
	return nil
}

func (rg *ReportGenerator) writeConsoleRows(results []models.MatchResult, w io.Writer) {
	written := 0
	for _, r := range results {
		if r.Status == models.StatusMatched && !rg.config.IncludeMatched {
			continue
		}
		if rg.config.MaxRows > 0 && written >= rg.config.MaxRows {
			fmt.Fprintf(w, "  ... and more rows, raise max_rows to see them\n")
			return
		}
		fmt.Fprintf(w, "  [%s] trip=%s record=%s diff=%s\n",
			r.Status, tripRef(r.Trip), recordRef(r.Supplier), r.PriceDifference.StringFixed(2))
		written++
	}
}

func (rg *ReportGenerator) writeCSV(result *reconciler.RunResult, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"supplier", "status", "trip_id", "record_key", "price_difference", "confidence"}); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "csv report encoding", err)
	}

	for _, supplier := range supplierOrder {
		for _, r := range result.PerSupplier[supplier] {
			row := []string{
				supplier,
				r.Status.String(),
				tripRef(r.Trip),
				recordRef(r.Supplier),
				r.PriceDifference.StringFixed(2),
				strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			}
			if err := cw.Write(row); err != nil {
				return errors.InternalError(errors.CodeUnexpectedError, "csv report encoding", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func (rg *ReportGenerator) writeAllocationConsole(alloc *allocator.DepartmentAllocation, w io.Writer) error {
	fmt.Fprintf(w, "Department Cost Allocation\n\n")
	fmt.Fprintf(w, "%-20s %10s %8s %10s\n", "DEPARTMENT", "TOTAL", "RIDES", "AVERAGE")
	for _, dt := range alloc.Totals {
		fmt.Fprintf(w, "%-20s %10s %8d %10s\n",
			dt.Department, dt.Total.StringFixed(2), dt.RideCount, dt.Average.StringFixed(2))
	}
	fmt.Fprintf(w, "%-20s %10s\n\n", "GRAND TOTAL", alloc.GrandTotal.StringFixed(2))

	for _, trip := range alloc.Trips {
		fmt.Fprintf(w, "trip %d (price %s, %d riders):\n", trip.TripID, trip.Price.StringFixed(2), trip.TotalRiders)
		for _, share := range trip.Shares {
			fmt.Fprintf(w, "  %-20s %10s  %s\n",
				share.Department, share.Share.StringFixed(2), strings.Join(share.Employees, ", "))
		}
	}
	return nil
}

func (rg *ReportGenerator) writeAllocationCSV(alloc *allocator.DepartmentAllocation, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"trip_id", "department", "rider_count", "share"}); err != nil {
		return errors.InternalError(errors.CodeUnexpectedError, "csv report encoding", err)
	}
	for _, trip := range alloc.Trips {
		for _, share := range trip.Shares {
			row := []string{
				strconv.Itoa(trip.TripID),
				share.Department,
				strconv.Itoa(share.RiderCount),
				share.Share.StringFixed(2),
			}
			if err := cw.Write(row); err != nil {
				return errors.InternalError(errors.CodeUnexpectedError, "csv report encoding", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func tripRef(trip *models.CompanyTrip) string {
	if trip == nil {
		return "-"
	}
	return strconv.Itoa(trip.ID)
}

func recordRef(rec models.SupplierRecord) string {
	if rec == nil {
		return "-"
	}
	if key := rec.RecordKey(); key != "" {
		return key
	}
	return rec.RecordDate()
}
