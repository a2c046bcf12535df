package cmd

import (
	"context"
	"io"
	"os"

	"trip-reconciliation-service/cmd/triprecon/config"
	"trip-reconciliation-service/internal/loader"
	"trip-reconciliation-service/internal/models"
	"trip-reconciliation-service/internal/reconciler"
	"trip-reconciliation-service/internal/reporter"
	"trip-reconciliation-service/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	tripsFile      string
	horiFile       string
	limorFile      string
	gettFile       string
	employeesFile  string
	overlayFile    string
	outputFormat   string
	outputFile     string
	timeTolerance  float64
	dayWindow      int
	includeMatched bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile company trips against supplier invoices",
	Long: `Reconcile compares the company trip log against the three supplier
invoice exports and classifies every trip and every invoice row.

All inputs are JSON files in the normalized hand-off format. Supplier
files are optional; a missing supplier simply runs an empty pass.

Examples:
  triprecon reconcile --trips trips.json --hori hori.json --limor limor.json --gett gett.json
  triprecon reconcile --trips trips.json --gett gett.json --employees employees.json \
    --overlay overlay.json --output-format csv --output-file results.csv
  triprecon reconcile --trips trips.json --hori hori.json --time-tolerance 15`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&tripsFile, "trips", "t", "", "path to company trips JSON file (required)")
	reconcileCmd.Flags().StringVar(&horiFile, "hori", "", "path to Hori invoice JSON file")
	reconcileCmd.Flags().StringVar(&limorFile, "limor", "", "path to Limor invoice JSON file")
	reconcileCmd.Flags().StringVar(&gettFile, "gett", "", "path to Gett invoice JSON file")
	reconcileCmd.Flags().StringVarP(&employeesFile, "employees", "e", "", "path to employee directory JSON file")
	reconcileCmd.Flags().StringVar(&overlayFile, "overlay", "", "path to manual adjustments JSON file")

	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	reconcileCmd.Flags().BoolVar(&includeMatched, "include-matched", false, "list fully matched rows in console output")

	reconcileCmd.Flags().Float64Var(&timeTolerance, "time-tolerance", 30, "fuzzy matching time tolerance in minutes")
	reconcileCmd.Flags().IntVar(&dayWindow, "day-window", 1, "fuzzy matching calendar day window")

	reconcileCmd.MarkFlagRequired("trips")

	viper.BindPFlag("trips", reconcileCmd.Flags().Lookup("trips"))
	viper.BindPFlag("hori", reconcileCmd.Flags().Lookup("hori"))
	viper.BindPFlag("limor", reconcileCmd.Flags().Lookup("limor"))
	viper.BindPFlag("gett", reconcileCmd.Flags().Lookup("gett"))
	viper.BindPFlag("employees", reconcileCmd.Flags().Lookup("employees"))
	viper.BindPFlag("overlay", reconcileCmd.Flags().Lookup("overlay"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("include-matched", reconcileCmd.Flags().Lookup("include-matched"))
	viper.BindPFlag("time-tolerance", reconcileCmd.Flags().Lookup("time-tolerance"))
	viper.BindPFlag("day-window", reconcileCmd.Flags().Lookup("day-window"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	tripsFile = viper.GetString("trips")
	horiFile = viper.GetString("hori")
	limorFile = viper.GetString("limor")
	gettFile = viper.GetString("gett")
	employeesFile = viper.GetString("employees")
	overlayFile = viper.GetString("overlay")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	includeMatched = viper.GetBool("include-matched")
	timeTolerance = viper.GetFloat64("time-tolerance")
	dayWindow = viper.GetInt("day-window")

	if tripsFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "trips", nil, nil)
	}
	if !reporter.OutputFormat(outputFormat).IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", outputFormat, nil)
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	input, err := loadReconcileInput()
	if err != nil {
		return err
	}

	svc, err := reconciler.NewService(config.CreateMatchConfig(timeTolerance, dayWindow))
	if err != nil {
		return err
	}
	result, err := svc.Reconcile(context.Background(), input)
	if err != nil {
		return err
	}

	rg, err := reporter.NewReportGenerator(config.CreateReportConfig(outputFormat, includeMatched))
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer closeOut()

	return rg.GenerateReport(result, out)
}

func loadReconcileInput() (*reconciler.Input, error) {
	input := &reconciler.Input{}

	trips, _, err := loader.LoadTrips(tripsFile)
	if err != nil {
		return nil, err
	}
	input.Trips = trips

	if horiFile != "" {
		if input.Hori, _, err = loader.LoadHori(horiFile); err != nil {
			return nil, err
		}
	}
	if limorFile != "" {
		if input.Limor, _, err = loader.LoadLimor(limorFile); err != nil {
			return nil, err
		}
	}
	if gettFile != "" {
		if input.Gett, _, err = loader.LoadGett(gettFile); err != nil {
			return nil, err
		}
	}
	if employeesFile != "" {
		if input.Employees, _, err = loader.LoadEmployees(employeesFile); err != nil {
			return nil, err
		}
	}
	if overlayFile != "" {
		if input.Overlay, err = loader.LoadOverlay(overlayFile); err != nil {
			return nil, err
		}
	}
	return input, nil
}

// openOutput returns the report writer and a close function that is a
// no-op for stdout.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.FileError(errors.CodeDirectoryError, path, err)
	}
	return file, func() { file.Close() }, nil
}

// loadOverlayTrips loads trips and merges the overlay, shared by the
// allocate command.
func loadOverlayTrips(tripsPath, overlayPath string) ([]*models.CompanyTrip, error) {
	trips, _, err := loader.LoadTrips(tripsPath)
	if err != nil {
		return nil, err
	}
	var overlay *models.Overlay
	if overlayPath != "" {
		if overlay, err = loader.LoadOverlay(overlayPath); err != nil {
			return nil, err
		}
	}
	return reconciler.MergeOverlay(trips, overlay), nil
}
