// Package directory holds the read-only employee directory and the
// passenger-identity resolution used by the fuzzy matcher: deciding
// whether a company trip's rider set and a supplier row's free-text
// passenger field share at least one person.
package directory

import (
	"regexp"
	"strconv"
	"strings"

	"trip-reconciliation-service/internal/models"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// Directory indexes employees by identifier. Loaded once per run,
// read-only afterwards.
type Directory struct {
	byID map[int]*models.Employee
	all  []models.Employee
}

// New builds a directory from an employee slice. Later duplicates of an
// ID override earlier ones, matching how refreshed exports are loaded.
func New(employees []models.Employee) *Directory {
	d := &Directory{
		byID: make(map[int]*models.Employee, len(employees)),
		all:  employees,
	}
	for i := range employees {
		d.byID[employees[i].ID] = &employees[i]
	}
	return d
}

// Get returns the employee for an identifier, or nil.
func (d *Directory) Get(id int) *models.Employee {
	if d == nil {
		return nil
	}
	return d.byID[id]
}

// Len returns the number of distinct employees.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.byID)
}

// Resolver decides passenger overlap between rider identifier sets and
// free-text passenger fields. Thresholds are explicit fields so tuning
// is a one-line change backed by regression tests.
type Resolver struct {
	dir *Directory

	// FirstNamePrefixLen is the number of leading characters a leftover
	// token must share with a resolved first name for a partial match.
	FirstNamePrefixLen int

	// MaxTokenDistance is the Levenshtein distance tolerated when
	// comparing a text token to a resolved last name, absorbing
	// transliteration and typing noise.
	MaxTokenDistance int
}

// NewResolver creates a resolver with the documented default thresholds.
// dir may be nil; the resolver then falls back to numeric identifiers only.
func NewResolver(dir *Directory) *Resolver {
	return &Resolver{
		dir:                dir,
		FirstNamePrefixLen: 2,
		MaxTokenDistance:   1,
	}
}

var (
	digitRuns = regexp.MustCompile(`\d+`)
	nonName   = regexp.MustCompile(`[^\p{L}\s]`)
	spaces    = regexp.MustCompile(`\s+`)
)

// SharesAnyRider reports whether at least one of the trip's riders
// appears in the supplier's free-text passenger field.
//
// Signals are checked strongest first: numeric identifiers embedded in
// the text, then resolved-name substring containment, then a partial
// last-name match tolerant of first-name misspellings. An empty rider
// list always yields false; callers decide whether that blocks a match.
func (r *Resolver) SharesAnyRider(pids []int, passengerText string) bool {
	if len(pids) == 0 {
		return false
	}

	if sharesNumericID(pids, passengerText) {
		return true
	}

	if r.dir == nil || r.dir.Len() == 0 {
		return false
	}

	cleaned := cleanNameText(passengerText)
	if cleaned == "" {
		return false
	}

	for _, pid := range pids {
		emp := r.dir.Get(pid)
		if emp == nil {
			continue
		}
		if r.nameAppears(emp, cleaned) {
			return true
		}
	}
	return false
}

// sharesNumericID extracts every digit run from the text and tests it
// against the rider identifier set.
func sharesNumericID(pids []int, text string) bool {
	runs := digitRuns.FindAllString(text, -1)
	if len(runs) == 0 {
		return false
	}

	set := make(map[int]struct{}, len(pids))
	for _, pid := range pids {
		set[pid] = struct{}{}
	}
	for _, run := range runs {
		n, err := strconv.Atoi(run)
		if err != nil {
			continue
		}
		if _, ok := set[n]; ok {
			return true
		}
	}
	return false
}

// nameAppears checks full/first/last substring containment, then the
// partial last-name rule.
func (r *Resolver) nameAppears(emp *models.Employee, cleaned string) bool {
	full := cleanNameText(emp.FullName())
	first := cleanNameText(emp.FirstName)
	last := cleanNameText(emp.LastName)

	if full != "" && strings.Contains(cleaned, full) {
		return true
	}
	if first != "" && last != "" {
		// Reversed "last first" order is common in invoice exports.
		if strings.Contains(cleaned, last+" "+first) {
			return true
		}
	}

	return r.partialNameMatch(first, last, cleaned)
}

// partialNameMatch applies the fallback rule: the last name appears as a
// whole token (within MaxTokenDistance), and either no other token is
// left to compare against the first name, or some remaining token shares
// FirstNamePrefixLen leading characters with it.
func (r *Resolver) partialNameMatch(first, last, cleaned string) bool {
	if last == "" {
		return false
	}

	tokens := strings.Fields(cleaned)
	lastIdx := -1
	for i, tok := range tokens {
		if r.tokensEqual(tok, last) {
			lastIdx = i
			break
		}
	}
	if lastIdx < 0 {
		return false
	}

	rest := make([]string, 0, len(tokens)-1)
	rest = append(rest, tokens[:lastIdx]...)
	rest = append(rest, tokens[lastIdx+1:]...)
	if len(rest) == 0 {
		return true
	}
	if first == "" {
		return false
	}

	prefix := leadingRunes(first, r.FirstNamePrefixLen)
	for _, tok := range rest {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

// tokensEqual compares a text token to a name token within the
// configured Levenshtein tolerance. Very short tokens must match
// exactly; distance on two-rune tokens matches nearly everything.
func (r *Resolver) tokensEqual(a, b string) bool {
	if a == b {
		return true
	}
	if len([]rune(a)) <= 2 || len([]rune(b)) <= 2 {
		return false
	}
	dist := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptionsWithSub)
	return dist <= r.MaxTokenDistance
}

// cleanNameText lowercases, NFC-normalizes and strips everything except
// letters and spaces, so containment checks survive punctuation noise.
func cleanNameText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = nonName.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// leadingRunes returns the first n runes of s (all of s when shorter).
func leadingRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
