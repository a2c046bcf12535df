// Package normalize canonicalizes the free-text fields the matchers
// compare: pickup/drop-off locations and the mixed date/time encodings
// of trip logs and supplier exports.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// transliterations maps English renderings of place names, as they
// appear in supplier exports, to the Hebrew form used in the trip log.
// Keys are matched case-insensitively.
var transliterations = map[string]string{
	"tel aviv":           "תל אביב",
	"tel-aviv":           "תל אביב",
	"jerusalem":          "ירושלים",
	"haifa":              "חיפה",
	"herzliya":           "הרצליה",
	"netanya":            "נתניה",
	"beer sheva":         "באר שבע",
	"ben gurion airport": "נתבג",
	"bgn airport":        "נתבג",
}

// countryNoise lists country-name tokens that add no place identity.
var countryNoise = []string{"israel", "ישראל"}

// airportShortForm is the abbreviated airport name left after quote
// stripping (נתב"ג loses its gershayim in the punctuation pass).
const airportShortForm = "נתבג"

// airportLongForm is the expansion used by the trip log.
const airportLongForm = "נמל תעופה בן גוריון"

// cityNames is the fixed city list used by the last-resort location
// equality check and by the airport over-expansion guard.
var cityNames = []string{
	"תל אביב",
	"ירושלים",
	"חיפה",
	"באר שבע",
	"רמת גן",
	"בני ברק",
	"חולון",
	"הרצליה",
	"פתח תקווה",
	"ראשון לציון",
	"רחובות",
	"נתניה",
	"לוד",
	"רמלה",
}

var (
	structuralPunct = regexp.MustCompile(`[|\\"'` + "`" + `“”„‘’]`)
	entranceLetter  = regexp.MustCompile(`(^|[\s,])(\d+)[\s]+([A-Za-zא-ת])($|[\s,])`)
	listSeparators  = regexp.MustCompile(`[;]+`)
	commaRuns       = regexp.MustCompile(`\s*,[\s,]*`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	numericToken    = regexp.MustCompile(`(^|\s)\d+($|\s)`)
	allDigits       = regexp.MustCompile(`^\d+$`)
)

// NormalizeLocation canonicalizes a free-text location so that textual
// comparison is robust to encoding noise. The pipeline order matters:
// punctuation stripping feeds the separator normalization, which feeds
// the dedup passes, and only then are names transliterated and expanded.
// Normalizing an already-normalized string returns it unchanged; empty
// or whitespace-only input yields an empty string.
func NormalizeLocation(s string) string {
	s = norm.NFC.String(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)
	s = structuralPunct.ReplaceAllString(s, "")
	s = collapseEntranceLetters(s)

	s = listSeparators.ReplaceAllString(s, ",")
	s = commaRuns.ReplaceAllString(s, ", ")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	s = strings.Trim(s, ", ")

	s = dedupeWordRuns(s)
	s = dedupeSegments(s)

	s = transliterate(s)
	s = dropCountryNoise(s)
	s = expandAbbreviations(s)

	s = whitespaceRuns.ReplaceAllString(s, " ")
	return strings.Trim(s, ", ")
}

// collapseEntranceLetters folds "12 a" into "12": an apartment or
// entrance letter after a house number does not affect place identity.
func collapseEntranceLetters(s string) string {
	for {
		next := entranceLetter.ReplaceAllString(s, "$1$2$4")
		if next == s {
			return s
		}
		s = next
	}
}

// dedupeWordRuns removes consecutive duplicated word sequences,
// longest sequences first ("tel aviv tel aviv" -> "tel aviv").
func dedupeWordRuns(s string) string {
	words := strings.Fields(s)
	for n := len(words) / 2; n >= 1; n-- {
		i := 0
		for i+2*n <= len(words) {
			if equalRun(words[i:i+n], words[i+n:i+2*n]) {
				words = append(words[:i+n], words[i+2*n:]...)
				continue
			}
			i++
		}
	}
	return strings.Join(words, " ")
}

func equalRun(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// dedupeSegments removes duplicated comma-separated segments, keeping
// the longer variant when one segment is a substring of another.
func dedupeSegments(s string) string {
	segments := strings.Split(s, ",")
	var kept []string
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		replaced := false
		for i, prev := range kept {
			if prev == seg || strings.Contains(prev, seg) {
				replaced = true
				break
			}
			if strings.Contains(seg, prev) {
				kept[i] = seg
				replaced = true
				break
			}
		}
		if !replaced {
			kept = append(kept, seg)
		}
	}
	return strings.Join(kept, ", ")
}

// transliterate replaces English renderings with the Hebrew forms.
func transliterate(s string) string {
	for _, eng := range transliterationKeysByLength() {
		s = strings.ReplaceAll(s, eng, transliterations[eng])
	}
	return s
}

// transliterationKeysByLength returns the map keys longest-first so
// "ben gurion airport" wins over any shorter overlapping key.
func transliterationKeysByLength() []string {
	keys := make([]string, 0, len(transliterations))
	for k := range transliterations {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && len(keys[j]) > len(keys[j-1]); j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// dropCountryNoise removes country-name tokens.
func dropCountryNoise(s string) string {
	words := strings.Fields(s)
	var kept []string
	for _, w := range words {
		trimmed := strings.Trim(w, ",")
		noise := false
		for _, c := range countryNoise {
			if trimmed == c {
				noise = true
				break
			}
		}
		if noise {
			// Preserve a trailing comma's segment boundary.
			if strings.HasSuffix(w, ",") && len(kept) > 0 && !strings.HasSuffix(kept[len(kept)-1], ",") {
				kept[len(kept)-1] += ","
			}
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// expandAbbreviations expands the airport short form, guarding against
// two over-expansions: a following house number means the token is a
// street name, and an immediately following known city name means the
// writer meant "<short form> <city>" as two separate stops.
func expandAbbreviations(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if strings.Trim(w, ",") != airportShortForm {
			continue
		}
		if i+1 < len(words) {
			next := strings.Trim(words[i+1], ",")
			if allDigits.MatchString(next) {
				continue
			}
			if startsKnownCity(words[i+1:]) {
				continue
			}
		}
		suffix := ""
		if strings.HasSuffix(w, ",") {
			suffix = ","
		}
		words[i] = airportLongForm + suffix
	}
	return strings.Join(words, " ")
}

// startsKnownCity reports whether the leading tokens spell a city name.
func startsKnownCity(words []string) bool {
	for _, city := range cityNames {
		cityWords := strings.Fields(city)
		if len(cityWords) > len(words) {
			continue
		}
		match := true
		for i, cw := range cityWords {
			if strings.Trim(words[i], ",") != cw {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// LocationsMatch reports whether two locations refer to the same place.
// Checks are ordered cheapest first: string equality, containment,
// shared-token overlap, and finally the fixed city-name comparison with
// numeric tokens stripped. Empty input on either side never matches.
func LocationsMatch(a, b string) bool {
	a = NormalizeLocation(a)
	b = NormalizeLocation(b)
	if a == "" || b == "" {
		return false
	}

	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	tokensA := significantTokens(a)
	tokensB := significantTokens(b)
	if len(tokensA) >= 2 && len(tokensB) >= 2 && sharedTokenCount(tokensA, tokensB) >= 2 {
		return true
	}

	return sameCity(a, b)
}

// significantTokens returns whitespace-delimited tokens longer than one rune.
func significantTokens(s string) []string {
	var tokens []string
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, ",")
		if len([]rune(w)) > 1 {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

func sharedTokenCount(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	count := 0
	seen := make(map[string]struct{})
	for _, t := range b {
		if _, ok := set[t]; ok {
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				count++
			}
		}
	}
	return count
}

// sameCity checks whether both strings, after stripping numeric tokens,
// contain the same entry from the fixed city list.
func sameCity(a, b string) bool {
	a = stripNumericTokens(a)
	b = stripNumericTokens(b)
	for _, city := range cityNames {
		if strings.Contains(a, city) && strings.Contains(b, city) {
			return true
		}
	}
	return false
}

func stripNumericTokens(s string) string {
	for {
		next := numericToken.ReplaceAllString(s, " ")
		if next == s {
			return strings.TrimSpace(whitespaceRuns.ReplaceAllString(s, " "))
		}
		s = next
	}
}

// LenientDestinationMatch is the relaxed drop-off comparison used by the
// fuzzy matcher: destinations match when their token sets are equal after
// removing short filler tokens, provided the raw token counts differ by
// at most tokenCountSlack.
func LenientDestinationMatch(a, b string, tokenCountSlack int) bool {
	a = NormalizeLocation(a)
	b = NormalizeLocation(b)
	if a == "" || b == "" {
		return false
	}

	rawA := strings.Fields(a)
	rawB := strings.Fields(b)
	diff := len(rawA) - len(rawB)
	if diff < 0 {
		diff = -diff
	}
	if diff > tokenCountSlack {
		return false
	}

	setA := fillerFreeTokenSet(rawA)
	setB := fillerFreeTokenSet(rawB)
	if len(setA) == 0 || len(setA) != len(setB) {
		return false
	}
	for t := range setA {
		if _, ok := setB[t]; !ok {
			return false
		}
	}
	return true
}

// fillerFreeTokenSet drops tokens of up to two runes (prepositions,
// entrance markers, stray initials).
func fillerFreeTokenSet(words []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range words {
		w = strings.Trim(w, ",")
		if len([]rune(w)) <= 2 {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}
