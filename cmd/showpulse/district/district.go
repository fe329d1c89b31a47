package district

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/WessleyAI/showpulse/engine/fetch"
	"github.com/WessleyAI/showpulse/engine/run"
	"github.com/WessleyAI/showpulse/engine/show"
)

const (
	Name    = show.SourceDistrict
	baseURL = "https://district.boxoffice24.workers.dev"
	origin  = "https://www.district.in"
)

// Defaults are the fetch settings for the District API.
func Defaults() run.Settings {
	return run.Settings{
		Strategy:       run.StrategyConcurrent,
		Concurrency:    20,
		APITimeout:     25 * time.Second,
		HardTimeout:    30 * time.Second,
		MaxRetryRounds: 2,
		Origin:         origin,
	}
}

// Source returns the District adapter.
func Source() run.Source {
	return run.Source{Name: Name, URL: URL, Normalize: Normalize, Defaults: Defaults()}
}

// URL builds the cinema URL for day.
func URL(day show.Day) fetch.URLFunc {
	return func(v show.Venue) string {
		q := url.Values{}
		q.Set("cinema_id", v.ID)
		q.Set("date", day.ISO)
		return baseURL + "?" + q.Encode()
	}
}

// Normalize maps the sessions of one cinema on day to records. A cinema
// that does not list day among its session dates has nothing to report.
func Normalize(payload []byte, v show.Venue, day show.Day) ([]show.Record, error) {
	var p Payload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: district venue %s: %v", show.ErrMalformedPayload, v.ID, err)
	}
	if !slices.Contains(p.Data.SessionDates, day.ISO) {
		return nil, nil
	}

	movies := make(map[string]Movie, len(p.Meta.Movies))
	for _, m := range p.Meta.Movies {
		movies[strings.TrimSpace(m.ID.String())] = m
	}

	venueName := show.OrUnknown(firstNonEmpty(p.Meta.Cinema.Name, v.Name))
	address := firstNonEmpty(p.Meta.Cinema.Address, v.Address)
	loc := day.Loc()

	var out []show.Record
	for _, s := range p.PageData.Sessions {
		m, ok := movies[strings.TrimSpace(s.MID.String())]
		if !ok {
			continue
		}
		if at, ok := show.Instant(s.ShowTime.String(), loc); ok && !day.Contains(at) {
			continue
		}

		tiers := make([]show.Tier, 0, len(s.Areas))
		for _, a := range s.Areas {
			tiers = append(tiers, show.Tier{Total: int(a.STotal), Available: int(a.SAvail), Price: a.Price.Decimal})
		}
		r := show.Record{
			Movie:     show.OrUnknown(m.Name),
			City:      v.City,
			State:     v.State,
			Venue:     venueName,
			Address:   address,
			Language:  show.OrUnknownUpper(firstNonEmpty(s.Lang, m.Lang)),
			Dimension: Format(s.ScrnFmt),
			Time:      show.CanonicalTime(s.ShowTime.String(), loc),
			Audi:      strings.TrimSpace(s.Audi.String()),
			SessionID: strings.TrimSpace(s.ID.String()),
			Source:    Name,
			Date:      day.Code,
		}
		show.FoldTiers(tiers).WithTotals(int(s.Total), int(s.Avail)).Apply(&r)
		out = append(out, r)
	}
	return out, nil
}

// Format turns "2d-atmos" into "2D | ATMOS".
func Format(raw string) string {
	f := show.OrUnknownUpper(raw)
	parts := strings.Split(f, "-")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, " | ")
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
