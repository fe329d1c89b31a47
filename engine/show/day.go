package show

import "time"

// Date layouts used by the vendors.
const (
	CodeLayout = "20060102"
	ISOLayout  = "2006-01-02"
	// TimeLayout is the canonical time-of-day.
	TimeLayout = "03:04 PM"
)

// ist is used when the tz database has no Asia/Kolkata entry.
var ist = time.FixedZone("IST", 5*3600+30*60)

// Location loads the named zone, falling back to a fixed +05:30 zone.
func Location(name string) *time.Location {
	if name == "" {
		return ist
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return ist
	}
	return loc
}

// Day is the target date of a run in the run's location.
type Day struct {
	Date time.Time
	Code string
	ISO  string
}

// NewDay truncates t to its calendar day in loc.
func NewDay(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = ist
	}
	t = t.In(loc)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return Day{Date: d, Code: d.Format(CodeLayout), ISO: d.Format(ISOLayout)}
}

// ParseDay parses a date code (20060102) in loc.
func ParseDay(code string, loc *time.Location) (Day, error) {
	if loc == nil {
		loc = ist
	}
	t, err := time.ParseInLocation(CodeLayout, code, loc)
	if err != nil {
		return Day{}, err
	}
	return NewDay(t, loc), nil
}

// Loc returns the day's location.
func (d Day) Loc() *time.Location {
	if d.Date.IsZero() {
		return ist
	}
	return d.Date.Location()
}

// Contains reports whether t falls on the day.
func (d Day) Contains(t time.Time) bool {
	return t.In(d.Loc()).Format(CodeLayout) == d.Code
}
