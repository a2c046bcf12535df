package cmd

import (
	"fmt"
	"os"

	"trip-reconciliation-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd is the base command when triprecon is called without
// subcommands.
var rootCmd = &cobra.Command{
	Use:   "triprecon",
	Short: "Trip reconciliation and cost allocation tool",
	Long: `Triprecon reconciles the company ride log against supplier invoices
(Hori, Limor and Gett) and allocates trip costs across departments.

Examples:
  triprecon reconcile --trips trips.json --hori hori.json --limor limor.json --gett gett.json --employees employees.json
  triprecon reconcile --trips trips.json --gett gett.json --output-format json --output-file report.json
  triprecon allocate --trips trips.json --employees employees.json`,
	Version: getVersionString(),
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return NewCLIErrorHandler().HandleError(err)
	}
	return 0
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
	}

	viper.SetEnvPrefix("TRIPRECON")
	viper.AutomaticEnv()

	if viper.GetBool("verbose") {
		cfg := logger.DefaultConfig()
		cfg.Level = logger.DebugLevel
		if log, err := logger.NewLogger(cfg); err == nil {
			logger.SetGlobalLogger(log)
		}
	}
}

// SetVersionInfo sets the build-time version information.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
