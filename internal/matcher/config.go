// Package matcher implements the per-supplier matching strategies of the
// trip reconciliation engine: exact-key matching for suppliers sharing
// the company trip identifier, and multi-criteria fuzzy matching for the
// supplier without a reliable shared key.
//
// Both matchers read the shared company-trip pool through a TripIndex and
// record claims in it, so a trip accepted by one supplier pass is not
// offered to the next. Every pass is total: each supplier row and each
// trip labeled for that supplier ends up in exactly one MatchResult.
package matcher

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Supplier keys used across configuration, results and reporting.
const (
	SupplierHori  = "hori"
	SupplierLimor = "limor"
	SupplierGett  = "gett"
)

// MatchConfig holds the documented thresholds the matching heuristics
// depend on. Tuning any of them is a one-line change covered by
// regression tests; the defaults reproduce the operational behavior.
type MatchConfig struct {
	// PriceTolerance is the maximum absolute price difference still
	// classified as agreement. Strictly greater differences become
	// price_difference results.
	PriceTolerance decimal.Decimal `json:"price_tolerance"`

	// TimeToleranceMinutes rejects fuzzy candidates whose resolved
	// times differ by more than this many minutes.
	TimeToleranceMinutes float64 `json:"time_tolerance_minutes"`

	// DayWindow extends the fuzzy candidate search this many calendar
	// days around the supplier row's date.
	DayWindow int `json:"day_window"`

	// FallbackConfidence is attached to matches inferred from weak
	// secondary signals instead of a shared identifier.
	FallbackConfidence float64 `json:"fallback_confidence"`

	// LenientTokenCountSlack bounds the token-count difference allowed
	// by the lenient destination comparison.
	LenientTokenCountSlack int `json:"lenient_token_count_slack"`

	// LimorFlatFare is the sentinel fare marking Limor rows eligible
	// for the same-price same-date fallback search.
	LimorFlatFare decimal.Decimal `json:"limor_flat_fare"`

	// Aliases maps a supplier key to the free-text labels recognized as
	// belonging to it, compared case-insensitively as substrings.
	Aliases map[string][]string `json:"aliases"`
}

// DefaultMatchConfig returns the configuration used in production runs.
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		PriceTolerance:         decimal.NewFromFloat(0.01),
		TimeToleranceMinutes:   30,
		DayWindow:              1,
		FallbackConfidence:     0.8,
		LenientTokenCountSlack: 2,
		LimorFlatFare:          decimal.NewFromInt(35),
		Aliases: map[string][]string{
			SupplierHori:  {"hori", "חורי"},
			SupplierLimor: {"limor", "לימור"},
			SupplierGett:  {"gett", "גט"},
		},
	}
}

// Validate checks the configuration for values the matchers cannot run with.
func (c *MatchConfig) Validate() error {
	if c.PriceTolerance.IsNegative() {
		return fmt.Errorf("price tolerance cannot be negative: %s", c.PriceTolerance.String())
	}
	if c.TimeToleranceMinutes <= 0 {
		return fmt.Errorf("time tolerance must be positive: %f", c.TimeToleranceMinutes)
	}
	if c.DayWindow < 0 {
		return fmt.Errorf("day window cannot be negative: %d", c.DayWindow)
	}
	if c.FallbackConfidence < 0 || c.FallbackConfidence > 1 {
		return fmt.Errorf("fallback confidence must be between 0.0 and 1.0: %f", c.FallbackConfidence)
	}
	if c.LenientTokenCountSlack < 0 {
		return fmt.Errorf("lenient token count slack cannot be negative: %d", c.LenientTokenCountSlack)
	}
	if len(c.Aliases) == 0 {
		return fmt.Errorf("supplier alias lists are required")
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *MatchConfig) Clone() *MatchConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Aliases = make(map[string][]string, len(c.Aliases))
	for k, v := range c.Aliases {
		clone.Aliases[k] = append([]string(nil), v...)
	}
	return &clone
}

// LabelBelongsTo reports whether a company trip's free-text supplier
// label belongs to the given supplier, by case-insensitive substring
// comparison against the alias list. Empty labels belong to no supplier.
func (c *MatchConfig) LabelBelongsTo(supplier, label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return false
	}
	for _, alias := range c.Aliases[supplier] {
		if strings.Contains(label, strings.ToLower(alias)) {
			return true
		}
	}
	return false
}

// PricesAgree classifies a price pair against the tolerance: a
// difference of exactly the tolerance still agrees, anything beyond is
// a discrepancy.
func (c *MatchConfig) PricesAgree(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(c.PriceTolerance)
}
