// Package show defines the canonical show record produced by every vendor
// adapter, its identity key and the normalization helpers shared by the
// adapters, the merge engine and the aggregation engine.
package show

// Sentinels used for missing categorical fields.
const (
	Unknown      = "Unknown"
	UnknownUpper = "UNKNOWN"
	// UnparsedTime replaces a show time no layout could parse.
	UnparsedTime = "TBA"
	// UnknownMinutes is recorded as minutes_left when the time is UnparsedTime.
	UnknownMinutes = 9999
)

// Sources.
const (
	SourceBMS      = "BMS"
	SourceDistrict = "District"
)

// Record is one show at one venue on one date.
type Record struct {
	Movie       string   `json:"movie"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Venue       string   `json:"venue"`
	Address     string   `json:"address"`
	Language    string   `json:"language"`
	Dimension   string   `json:"dimension"`
	Chain       string   `json:"chain,omitempty"`
	Time        string   `json:"time"`
	Audi        string   `json:"audi"`
	SessionID   string   `json:"session_id"`
	TotalSeats  int      `json:"totalSeats"`
	Available   int      `json:"available"`
	Sold        int      `json:"sold"`
	Gross       float64  `json:"gross"`
	Source      string   `json:"source"`
	Date        string   `json:"date"`
	MinutesLeft *float64 `json:"minutes_left,omitempty"`
	Clamped     bool     `json:"clamped,omitempty"`
	CityKey     string   `json:"_city_key,omitempty"`
	StateKey    string   `json:"_state_key,omitempty"`
}

// Key identifies a physical show. The vendor session id alone is not
// trusted: vendors reuse it or leave it blank.
type Key struct {
	Venue     string
	Time      string
	SessionID string
	Audi      string
}

// Key returns the record's identity key.
func (r Record) Key() Key {
	return Key{Venue: r.Venue, Time: r.Time, SessionID: r.SessionID, Audi: r.Audi}
}

// String renders the key as a single stable token, used for graph and
// cache keys.
func (k Key) String() string {
	return k.Venue + "|" + k.Time + "|" + k.SessionID + "|" + k.Audi
}
