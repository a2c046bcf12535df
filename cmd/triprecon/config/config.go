// Package config translates CLI flag values into engine
// configurations.
package config

import (
	"trip-reconciliation-service/internal/matcher"
	"trip-reconciliation-service/internal/reporter"
)

// CreateMatchConfig applies CLI overrides on top of the default
// matching configuration.
func CreateMatchConfig(timeToleranceMinutes float64, dayWindow int) *matcher.MatchConfig {
	cfg := matcher.DefaultMatchConfig()
	cfg.TimeToleranceMinutes = timeToleranceMinutes
	cfg.DayWindow = dayWindow
	return cfg
}

// CreateReportConfig builds a report configuration for the requested
// output format.
func CreateReportConfig(format string, includeMatched bool) *reporter.ReportConfig {
	cfg := reporter.DefaultReportConfig()
	cfg.Format = reporter.OutputFormat(format)
	cfg.IncludeMatched = includeMatched
	return cfg
}
