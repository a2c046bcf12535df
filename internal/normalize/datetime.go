package normalize

import (
	"strconv"
	"strings"
	"time"
)

// ResolveDateTime parses the heterogeneous date/time encodings found in
// trip logs and supplier exports into a single comparable instant.
//
// Accepted date forms:
//   - DD/MM/YYYY
//   - DD/MM/YYYY HH:MM (time combined into the date field)
//   - YYYY-MM-DD
//
// timeStr ("HH:MM" or "HH:MM:SS") is used when the date field carries no
// time of its own; absent time defaults to midnight. The function never
// panics or errors: any input that does not decompose into three numeric
// date components yields ok=false, which callers must treat as "cannot
// satisfy any time constraint".
func ResolveDateTime(dateStr, timeStr string) (time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, false
	}

	// Combined "DD/MM/YYYY HH:MM" form: the first field is the date,
	// the remainder wins over a separately supplied time.
	if idx := strings.IndexAny(dateStr, " \t"); idx >= 0 {
		rest := strings.TrimSpace(dateStr[idx+1:])
		dateStr = dateStr[:idx]
		if rest != "" {
			timeStr = rest
		}
	}

	year, month, day, ok := splitDate(dateStr)
	if !ok {
		return time.Time{}, false
	}

	hour, minute := 0, 0
	if t := strings.TrimSpace(timeStr); t != "" {
		hour, minute, ok = splitTime(t)
		if !ok {
			// Unparsable time degrades to midnight rather than failing
			// the whole instant; the date is still comparable.
			hour, minute = 0, 0
		}
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), true
}

// splitDate decomposes "DD/MM/YYYY" or "YYYY-MM-DD" into numeric parts.
func splitDate(s string) (year, month, day int, ok bool) {
	var parts []string
	var yearFirst bool

	switch {
	case strings.Contains(s, "/"):
		parts = strings.Split(s, "/")
	case strings.Contains(s, "-"):
		parts = strings.Split(s, "-")
		yearFirst = true
	default:
		return 0, 0, 0, false
	}

	if len(parts) != 3 {
		return 0, 0, 0, false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, false
		}
		nums[i] = n
	}

	if yearFirst {
		year, month, day = nums[0], nums[1], nums[2]
	} else {
		day, month, year = nums[0], nums[1], nums[2]
	}

	if year < 1000 || month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, 0, false
	}
	return year, month, day, true
}

// splitTime decomposes "HH:MM" (seconds tolerated and ignored).
func splitTime(s string) (hour, minute int, ok bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, false
	}

	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// MinutesBetween returns the absolute difference between two instants in minutes.
func MinutesBetween(a, b time.Time) float64 {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d.Minutes()
}

// DateKey returns the calendar-date bucket key for an instant.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
