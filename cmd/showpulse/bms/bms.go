package bms

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/WessleyAI/showpulse/engine/fetch"
	"github.com/WessleyAI/showpulse/engine/run"
	"github.com/WessleyAI/showpulse/engine/show"
)

const (
	// Name is the source label written on every record.
	Name    = show.SourceBMS
	baseURL = "https://in.bookmyshow.com/api/v2/mobile/showtimes/byvenue"
	origin  = "https://in.bookmyshow.com"
)

// Defaults are the fetch settings the BMS API tolerates.
func Defaults() run.Settings {
	return run.Settings{
		Strategy:       run.StrategySequential,
		Concurrency:    1,
		APITimeout:     12 * time.Second,
		HardTimeout:    15 * time.Second,
		MaxRetryRounds: fetch.DefaultMaxRounds,
		JitterMin:      400 * time.Millisecond,
		JitterMax:      time.Second,
		CutoffMinutes:  200,
		Origin:         origin,
	}
}

// Source returns the BMS adapter.
func Source() run.Source {
	return run.Source{Name: Name, URL: URL, Normalize: Normalize, Defaults: Defaults()}
}

// URL builds the by-venue URL for day.
func URL(day show.Day) fetch.URLFunc {
	return func(v show.Venue) string {
		q := url.Values{}
		q.Set("venueCode", v.ID)
		q.Set("dateCode", day.Code)
		return baseURL + "?" + q.Encode()
	}
}

// Normalize flattens a by-venue payload into one record per show on day.
// City and state come from the venue list; the payload has neither.
func Normalize(payload []byte, v show.Venue, day show.Day) ([]show.Record, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: bms venue %s: %v", show.ErrMalformedPayload, v.ID, err)
	}
	if len(p.ShowDetails) == 0 {
		return nil, nil
	}
	sd := p.ShowDetails[0]

	venueName := firstNonEmpty(sd.Venues.VenueName, v.Name, v.ID)
	address := firstNonEmpty(sd.Venues.VenueAdd, v.Address)
	chain := show.OrUnknown(sd.Venues.VenueCompName)

	var out []show.Record
	for _, ev := range sd.Event {
		for _, ch := range ev.ChildEvents {
			for _, st := range ch.ShowTimes {
				if strings.TrimSpace(st.ShowDateCode.String()) != day.Code {
					continue
				}
				tiers := make([]show.Tier, 0, len(st.Categories))
				for _, c := range st.Categories {
					tiers = append(tiers, show.Tier{
						Total:     int(c.MaxSeats),
						Available: int(c.SeatsAvail),
						Price:     c.CurPrice.Decimal,
					})
				}
				r := show.Record{
					Movie:     show.OrUnknown(ev.EventTitle),
					City:      v.City,
					State:     v.State,
					Venue:     venueName,
					Address:   address,
					Language:  show.OrUnknownUpper(ch.EventLanguage),
					Dimension: show.OrUnknownUpper(ch.EventDimension),
					Chain:     chain,
					Time:      show.CanonicalTime(st.ShowTime, day.Loc()),
					Audi:      strings.TrimSpace(st.Attributes),
					SessionID: strings.TrimSpace(st.SessionID.String()),
					Source:    Name,
					Date:      day.Code,
				}
				show.FoldTiers(tiers).Apply(&r)
				out = append(out, r)
			}
		}
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
