package show

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OrUnknown trims s and substitutes Unknown when it is empty.
func OrUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}

// OrUnknownUpper trims and upper-cases s, substituting UNKNOWN when empty.
func OrUnknownUpper(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return UnknownUpper
	}
	return s
}

// DisplayName is the title-cased display projection of a city or state.
func DisplayName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return Unknown
	}
	// A Caser keeps state between calls, so one is built per call.
	return cases.Title(language.Und).String(s)
}

// GroupKey is the lower-cased grouping projection of a city or state.
func GroupKey(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	if s == "" {
		return strings.ToLower(Unknown)
	}
	return s
}

// Canonicalize fills defaults, clamps the seat counts and writes both
// city/state projections onto a copy of r. Sold is always recomputed as
// total - available. fallbackDate is used when the record carries no date.
func Canonicalize(r Record, fallbackDate string) Record {
	r.Movie = OrUnknown(r.Movie)
	r.Venue = OrUnknown(r.Venue)
	r.CityKey = GroupKey(r.City)
	r.StateKey = GroupKey(r.State)
	r.City = DisplayName(r.City)
	r.State = DisplayName(r.State)
	r.Language = OrUnknownUpper(r.Language)
	r.Dimension = OrUnknownUpper(r.Dimension)
	r.Source = OrUnknown(r.Source)
	r.Time = strings.TrimSpace(r.Time)
	if r.Time == "" {
		r.Time = UnparsedTime
	}
	if strings.TrimSpace(r.Date) == "" {
		r.Date = fallbackDate
	}
	total, avail, clamped := ClampSeats(r.TotalSeats, r.Available)
	if r.Sold != total-avail {
		clamped = true
	}
	r.TotalSeats, r.Available, r.Sold = total, avail, total-avail
	r.Clamped = r.Clamped || clamped
	if r.Gross < 0 {
		r.Gross, r.Clamped = 0, true
	}
	return r
}

var clockLayouts = []string{
	"03:04 PM",
	"3:04 PM",
	"03:04PM",
	"3:04PM",
	"15:04",
	"15:04:05",
}

var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Instant parses absolute timestamps: RFC 3339, ISO-8601 without offset
// (read as UTC) and epoch seconds or milliseconds. The result is in loc.
func Instant(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = ist
	}
	if isDigits(raw) {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		if n > 1e11 {
			return time.UnixMilli(n).In(loc), true
		}
		return time.Unix(n, 0).In(loc), true
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// CanonicalTime renders a vendor show time as a 12-hour clock string in
// loc. Clock-only inputs are assumed to be local already. Anything that no
// layout accepts becomes UnparsedTime.
func CanonicalTime(raw string, loc *time.Location) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return UnparsedTime
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeLayout)
		}
	}
	if t, ok := Instant(raw, loc); ok {
		return t.Format(TimeLayout)
	}
	return UnparsedTime
}

// MinutesLeft returns minutes from now until the canonical clock time on
// now's date, rounded to one decimal place. ok is false for UnparsedTime.
func MinutesLeft(clock string, now time.Time) (float64, bool) {
	t, err := time.Parse(TimeLayout, strings.TrimSpace(clock))
	if err != nil {
		return UnknownMinutes, false
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	mins := start.Sub(now).Minutes()
	return math.Round(mins*10) / 10, true
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
