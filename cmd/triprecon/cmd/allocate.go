package cmd

import (
	"trip-reconciliation-service/cmd/triprecon/config"
	"trip-reconciliation-service/internal/allocator"
	"trip-reconciliation-service/internal/directory"
	"trip-reconciliation-service/internal/loader"
	"trip-reconciliation-service/internal/reporter"
	"trip-reconciliation-service/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	allocTripsFile     string
	allocEmployeesFile string
	allocOverlayFile   string
	allocOutputFormat  string
	allocOutputFile    string
)

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Allocate trip costs across departments",
	Long: `Allocate splits every company trip's price across the departments
of its riders, proportionally to headcount per department. Manual price
corrections and exclusions from the overlay file are applied first.

Examples:
  triprecon allocate --trips trips.json --employees employees.json
  triprecon allocate --trips trips.json --employees employees.json \
    --overlay overlay.json --output-format json --output-file allocation.json`,

	PreRunE: validateAllocateFlags,
	RunE:    runAllocate,
}

func init() {
	rootCmd.AddCommand(allocateCmd)

	allocateCmd.Flags().StringVarP(&allocTripsFile, "trips", "t", "", "path to company trips JSON file (required)")
	allocateCmd.Flags().StringVarP(&allocEmployeesFile, "employees", "e", "", "path to employee directory JSON file (required)")
	allocateCmd.Flags().StringVar(&allocOverlayFile, "overlay", "", "path to manual adjustments JSON file")
	allocateCmd.Flags().StringVarP(&allocOutputFormat, "output-format", "f", "console", "output format: console, json, csv")
	allocateCmd.Flags().StringVarP(&allocOutputFile, "output-file", "o", "", "output file path (default: stdout)")

	allocateCmd.MarkFlagRequired("trips")
	allocateCmd.MarkFlagRequired("employees")

	viper.BindPFlag("allocate-trips", allocateCmd.Flags().Lookup("trips"))
	viper.BindPFlag("allocate-employees", allocateCmd.Flags().Lookup("employees"))
	viper.BindPFlag("allocate-overlay", allocateCmd.Flags().Lookup("overlay"))
	viper.BindPFlag("allocate-output-format", allocateCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("allocate-output-file", allocateCmd.Flags().Lookup("output-file"))
}

func validateAllocateFlags(cmd *cobra.Command, args []string) error {
	if allocTripsFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "trips", nil, nil)
	}
	if allocEmployeesFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "employees", nil, nil)
	}
	if !reporter.OutputFormat(allocOutputFormat).IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "output-format", allocOutputFormat, nil)
	}
	return nil
}

func runAllocate(cmd *cobra.Command, args []string) error {
	trips, err := loadOverlayTrips(allocTripsFile, allocOverlayFile)
	if err != nil {
		return err
	}

	employees, _, err := loader.LoadEmployees(allocEmployeesFile)
	if err != nil {
		return err
	}

	allocation := allocator.Allocate(trips, directory.New(employees))

	rg, err := reporter.NewReportGenerator(config.CreateReportConfig(allocOutputFormat, false))
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(allocOutputFile)
	if err != nil {
		return err
	}
	defer closeOut()

	return rg.GenerateAllocationReport(allocation, out)
}
