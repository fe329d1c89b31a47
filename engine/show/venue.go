package show

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Venue is static metadata for one venue in a shard.
type Venue struct {
	ID      string            `json:"id"`
	Name    string            `json:"name,omitempty"`
	Address string            `json:"address,omitempty"`
	City    string            `json:"city"`
	State   string            `json:"state"`
	Params  map[string]string `json:"params,omitempty"`
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// LoadVenuesFile opens path and calls LoadVenues.
func LoadVenuesFile(path string) ([]Venue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVenueList, err)
	}
	defer f.Close()
	return LoadVenues(f)
}

// LoadVenues reads either {"<code>": {...}} or [{"id": ...}] and keeps the
// file's order.
func LoadVenues(r io.Reader) ([]Venue, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVenueList, err)
	}
	data = bytes.TrimSpace(bytes.TrimPrefix(data, bom))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrVenueList)
	}

	var venues []Venue
	switch data[0] {
	case '[':
		var items []map[string]any
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVenueList, err)
		}
		for i, item := range items {
			v := venueFrom("", item)
			if v.ID == "" {
				return nil, fmt.Errorf("%w: entry %d has no id", ErrVenueList, i)
			}
			venues = append(venues, v)
		}
	case '{':
		dec := json.NewDecoder(bytes.NewReader(data))
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVenueList, err)
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrVenueList, err)
			}
			code, _ := tok.(string)
			var item map[string]any
			if err := dec.Decode(&item); err != nil {
				return nil, fmt.Errorf("%w: venue %s: %v", ErrVenueList, code, err)
			}
			venues = append(venues, venueFrom(code, item))
		}
	default:
		return nil, fmt.Errorf("%w: expected object or array", ErrVenueList)
	}
	return venues, nil
}

func venueFrom(code string, item map[string]any) Venue {
	v := Venue{ID: code}
	for k, raw := range item {
		val := scalar(raw)
		switch strings.ToLower(k) {
		case "id", "code", "cinema_id", "venuecode":
			if v.ID == "" {
				v.ID = val
			}
		case "name", "venuename":
			v.Name = val
		case "address", "venueadd":
			v.Address = val
		case "city":
			v.City = val
		case "state":
			v.State = val
		default:
			if v.Params == nil {
				v.Params = map[string]string{}
			}
			v.Params[k] = val
		}
	}
	v.City = OrUnknown(v.City)
	v.State = OrUnknown(v.State)
	return v
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
