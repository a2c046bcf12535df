// Package loader reads the normalized JSON hand-off files produced by
// the ingestion collaborators. Structural problems (missing file,
// broken JSON) are errors; malformed rows inside a readable file are
// skipped and counted, never fatal.
package loader

import (
	"encoding/json"
	"os"

	"trip-reconciliation-service/internal/models"
	"trip-reconciliation-service/pkg/errors"
	"trip-reconciliation-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// LoadStats reports what one file contributed.
type LoadStats struct {
	File    string `json:"file"`
	Total   int    `json:"total"`
	Loaded  int    `json:"loaded"`
	Skipped int    `json:"skipped"`
}

// tripRow is the wire shape of one company trip. Prices arrive as
// strings because the ingestion side preserves currency symbols.
type tripRow struct {
	ID            int      `json:"id"`
	DateTime      string   `json:"date_time"`
	Source        string   `json:"source"`
	Destination   string   `json:"destination"`
	PassengerText string   `json:"passenger_text"`
	PIDs          []int    `json:"pids"`
	Price         string   `json:"price"`
	SupplierLabel string   `json:"supplier_label"`
	Manual        bool     `json:"manual"`
	OrderNumbers  []string `json:"order_numbers"`
}

type horiRow struct {
	TripNumber string `json:"trip_number"`
	Date       string `json:"date"`
	Price      string `json:"price"`
}

type limorRow struct {
	OrderNumber string `json:"order_number"`
	Date        string `json:"date"`
	Price       string `json:"price"`
}

type gettRow struct {
	OrderNumber string `json:"order_number"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Passengers  string `json:"passengers"`
	Price       string `json:"price"`
}

type employeeRow struct {
	ID         int    `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Department string `json:"department"`
}

type overlayFile struct {
	PriceCorrections map[int]string `json:"price_corrections"`
	ManualLinks      map[int]string `json:"manual_links"`
	ExcludedTripIDs  []int          `json:"excluded_trip_ids"`
}

// readJSONFile decodes one file into dst, mapping failures to
// categorized errors.
func readJSONFile(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return errors.FileError(errors.CodeFilePermission, path, err)
		}
		return errors.FileError(errors.CodeDirectoryError, path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.ParseError(errors.CodeInvalidFormat, path, err)
	}
	return nil
}

// parsePrice tolerates currency noise and falls back to zero, which
// downstream treats as "needs manual pricing".
func parsePrice(raw string, log logger.Logger, context string) decimal.Decimal {
	price, err := models.ParsePrice(raw)
	if err != nil {
		log.WithFields(logger.Fields{"value": raw, "row": context}).Warn("Unparsable price, using zero")
		return decimal.Zero
	}
	return price
}

// LoadTrips reads the company trip pool. Rows without an identifier
// are skipped.
func LoadTrips(path string) ([]*models.CompanyTrip, *LoadStats, error) {
	log := logger.GetGlobalLogger().WithComponent("loader").WithField("file", path)

	var rows []tripRow
	if err := readJSONFile(path, &rows); err != nil {
		return nil, nil, err
	}

	stats := &LoadStats{File: path, Total: len(rows)}
	trips := make([]*models.CompanyTrip, 0, len(rows))
	seen := make(map[int]struct{}, len(rows))
	for _, row := range rows {
		if row.ID == 0 {
			stats.Skipped++
			log.Warn("Trip row without identifier skipped")
			continue
		}
		if _, dup := seen[row.ID]; dup {
			stats.Skipped++
			log.WithField("trip_id", row.ID).Warn("Duplicate trip identifier skipped")
			continue
		}
		seen[row.ID] = struct{}{}
		trips = append(trips, &models.CompanyTrip{
			ID:            row.ID,
			DateTime:      row.DateTime,
			Source:        row.Source,
			Destination:   row.Destination,
			PassengerText: row.PassengerText,
			PIDs:          row.PIDs,
			Price:         parsePrice(row.Price, log, "trip"),
			SupplierLabel: row.SupplierLabel,
			Manual:        row.Manual,
			OrderNumbers:  row.OrderNumbers,
		})
		stats.Loaded++
	}

	log.WithFields(logger.Fields{"loaded": stats.Loaded, "skipped": stats.Skipped}).Info("Trips loaded")
	return trips, stats, nil
}

// LoadHori reads the Hori invoice export. Rows without a trip number
// carry no matching signal and are skipped.
func LoadHori(path string) ([]*models.HoriTrip, *LoadStats, error) {
	log := logger.GetGlobalLogger().WithComponent("loader").WithField("file", path)

	var rows []horiRow
	if err := readJSONFile(path, &rows); err != nil {
		return nil, nil, err
	}

	stats := &LoadStats{File: path, Total: len(rows)}
	records := make([]*models.HoriTrip, 0, len(rows))
	for _, row := range rows {
		if row.TripNumber == "" {
			stats.Skipped++
			continue
		}
		records = append(records, &models.HoriTrip{
			TripNumber: row.TripNumber,
			Date:       row.Date,
			Price:      parsePrice(row.Price, log, "hori"),
		})
		stats.Loaded++
	}

	log.WithFields(logger.Fields{"loaded": stats.Loaded, "skipped": stats.Skipped}).Info("Hori records loaded")
	return records, stats, nil
}

// LoadLimor reads the Limor invoice export. Rows without an order
// number are kept: the flat-fare fallback can still place them.
func LoadLimor(path string) ([]*models.LimorTrip, *LoadStats, error) {
	log := logger.GetGlobalLogger().WithComponent("loader").WithField("file", path)

	var rows []limorRow
	if err := readJSONFile(path, &rows); err != nil {
		return nil, nil, err
	}

	stats := &LoadStats{File: path, Total: len(rows)}
	records := make([]*models.LimorTrip, 0, len(rows))
	for _, row := range rows {
		records = append(records, &models.LimorTrip{
			OrderNumber: row.OrderNumber,
			Date:        row.Date,
			Price:       parsePrice(row.Price, log, "limor"),
		})
		stats.Loaded++
	}

	log.WithFields(logger.Fields{"loaded": stats.Loaded}).Info("Limor records loaded")
	return records, stats, nil
}

// LoadGett reads the Gett invoice export. Every row is kept; the fuzzy
// matcher degrades gracefully on missing fields.
func LoadGett(path string) ([]*models.GettTrip, *LoadStats, error) {
	log := logger.GetGlobalLogger().WithComponent("loader").WithField("file", path)

	var rows []gettRow
	if err := readJSONFile(path, &rows); err != nil {
		return nil, nil, err
	}

	stats := &LoadStats{File: path, Total: len(rows)}
	records := make([]*models.GettTrip, 0, len(rows))
	for _, row := range rows {
		records = append(records, &models.GettTrip{
			OrderNumber: row.OrderNumber,
			Date:        row.Date,
			Time:        row.Time,
			Source:      row.Source,
			Destination: row.Destination,
			Passengers:  row.Passengers,
			Price:       parsePrice(row.Price, log, "gett"),
		})
		stats.Loaded++
	}

	log.WithFields(logger.Fields{"loaded": stats.Loaded}).Info("Gett records loaded")
	return records, stats, nil
}

// LoadEmployees reads the employee directory. Rows without an
// identifier cannot be resolved and are skipped.
func LoadEmployees(path string) ([]models.Employee, *LoadStats, error) {
	log := logger.GetGlobalLogger().WithComponent("loader").WithField("file", path)

	var rows []employeeRow
	if err := readJSONFile(path, &rows); err != nil {
		return nil, nil, err
	}

	stats := &LoadStats{File: path, Total: len(rows)}
	employees := make([]models.Employee, 0, len(rows))
	for _, row := range rows {
		if row.ID == 0 {
			stats.Skipped++
			continue
		}
		employees = append(employees, models.Employee{
			ID:         row.ID,
			FirstName:  row.FirstName,
			LastName:   row.LastName,
			Department: row.Department,
		})
		stats.Loaded++
	}

	log.WithFields(logger.Fields{"loaded": stats.Loaded, "skipped": stats.Skipped}).Info("Employees loaded")
	return employees, stats, nil
}

// LoadOverlay reads the caller-maintained manual adjustments. A price
// correction that does not parse is dropped with a warning so the
// original price stays in effect.
func LoadOverlay(path string) (*models.Overlay, error) {
	log := logger.GetGlobalLogger().WithComponent("loader").WithField("file", path)

	var file overlayFile
	if err := readJSONFile(path, &file); err != nil {
		return nil, err
	}

	overlay := &models.Overlay{
		PriceCorrections: make(map[int]decimal.Decimal, len(file.PriceCorrections)),
		ManualLinks:      file.ManualLinks,
		ExcludedTripIDs:  file.ExcludedTripIDs,
	}
	for id, raw := range file.PriceCorrections {
		price, err := models.ParsePrice(raw)
		if err != nil {
			log.WithFields(logger.Fields{"trip_id": id, "value": raw}).Warn("Unparsable price correction dropped")
			continue
		}
		overlay.PriceCorrections[id] = price
	}

	log.WithFields(logger.Fields{
		"price_corrections": len(overlay.PriceCorrections),
		"manual_links":      len(overlay.ManualLinks),
		"exclusions":        len(overlay.ExcludedTripIDs),
	}).Info("Overlay loaded")
	return overlay, nil
}
