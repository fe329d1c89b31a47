// Package summary rolls show records up into per-movie box-office
// figures with city, language and format breakdowns.
package summary

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/WessleyAI/showpulse/engine/show"
	"github.com/WessleyAI/showpulse/pkg/fn"
)

// Status thresholds in percent.
const (
	HousefullPct   = 98
	FastFillingPct = 50
)

// Counters are the figures every bucket carries.
type Counters struct {
	Venues      int     `json:"venues"`
	Shows       int     `json:"shows"`
	Gross       float64 `json:"gross"`
	Sold        int     `json:"sold"`
	TotalSeats  int     `json:"totalSeats"`
	FastFilling int     `json:"fastfilling"`
	Housefull   int     `json:"housefull"`
	Occupancy   float64 `json:"occupancy"`
}

type CityDetail struct {
	City  string `json:"city"`
	State string `json:"state"`
	Counters
}

type LanguageDetail struct {
	Language string `json:"language"`
	Counters
}

type FormatDetail struct {
	Dimension string `json:"dimension"`
	Counters
}

// Movie is the summary bucket of one movie.
type Movie struct {
	Counters
	Cities          int              `json:"cities"`
	CityDetails     []CityDetail     `json:"City_details"`
	LanguageDetails []LanguageDetail `json:"Language_details"`
	FormatDetails   []FormatDetail   `json:"Format_details"`
}

// Summary maps movie title to its bucket.
type Summary map[string]Movie

// Titles returns the movie titles sorted by gross, highest first.
func (s Summary) Titles() []string {
	titles := make([]string, 0, len(s))
	for t := range s {
		titles = append(titles, t)
	}
	sort.Slice(titles, func(i, j int) bool {
		a, b := s[titles[i]], s[titles[j]]
		if a.Gross != b.Gross {
			return a.Gross > b.Gross
		}
		return titles[i] < titles[j]
	})
	return titles
}

// Occupancy is sold/total as a percentage rounded to 2 places, 0 when
// total is 0.
func Occupancy(sold, total int) float64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(sold) * 100).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		InexactFloat64()
}

// Classify applies the thresholds in integer arithmetic so that values
// like 49.995% never round across a boundary.
func Classify(sold, total int) (housefull, fastFilling bool) {
	if total <= 0 {
		return false, false
	}
	s, t := int64(sold)*100, int64(total)
	switch {
	case s >= HousefullPct*t:
		return true, false
	case s >= FastFillingPct*t:
		return false, true
	}
	return false, false
}

// Aggregate builds the summary. Records are canonicalized and
// de-duplicated by identity key first, so each show counts once.
func Aggregate(records []show.Record) Summary {
	canon := make([]show.Record, len(records))
	for i, r := range records {
		canon[i] = show.Canonicalize(r, r.Date)
	}
	canon = fn.UniqueBy(canon, show.Record.Key)

	movies := newGroup[string, movieAcc]()
	for _, r := range canon {
		m := movies.get(r.Movie, newMovieAcc)
		m.add(r)
	}

	out := make(Summary, len(movies.order))
	for _, title := range movies.order {
		out[title] = movies.m[title].result()
	}
	return out
}

// group keeps first-appearance order of its keys.
type group[K comparable, V any] struct {
	order []K
	m     map[K]*V
}

func newGroup[K comparable, V any]() *group[K, V] {
	return &group[K, V]{m: make(map[K]*V)}
}

func (g *group[K, V]) get(k K, mk func() *V) *V {
	if v, ok := g.m[k]; ok {
		return v
	}
	v := mk()
	g.m[k] = v
	g.order = append(g.order, k)
	return v
}

type acc struct {
	shows, sold, total int
	fast, house        int
	gross              decimal.Decimal
	venues             map[string]struct{}
}

func newAcc() *acc { return &acc{venues: map[string]struct{}{}, gross: decimal.Zero} }

func (a *acc) add(r show.Record) {
	total := max(r.TotalSeats, 0)
	a.shows++
	a.sold += r.Sold
	a.total += total
	a.gross = a.gross.Add(decimal.NewFromFloat(r.Gross))
	a.venues[r.Venue] = struct{}{}
	house, fast := Classify(r.Sold, total)
	if house {
		a.house++
	}
	if fast {
		a.fast++
	}
}

func (a *acc) counters() Counters {
	return Counters{
		Venues:      len(a.venues),
		Shows:       a.shows,
		Gross:       a.gross.Round(2).InexactFloat64(),
		Sold:        a.sold,
		TotalSeats:  a.total,
		FastFilling: a.fast,
		Housefull:   a.house,
		Occupancy:   Occupancy(a.sold, a.total),
	}
}

type cityKey struct{ city, state string }

type cityAcc struct {
	city, state string
	*acc
}

type movieAcc struct {
	*acc
	cities   map[string]struct{}
	byCity   *group[cityKey, cityAcc]
	byLang   *group[string, acc]
	byFormat *group[string, acc]
}

func newMovieAcc() *movieAcc {
	return &movieAcc{
		acc:      newAcc(),
		cities:   map[string]struct{}{},
		byCity:   newGroup[cityKey, cityAcc](),
		byLang:   newGroup[string, acc](),
		byFormat: newGroup[string, acc](),
	}
}

func (m *movieAcc) add(r show.Record) {
	m.acc.add(r)
	m.cities[r.CityKey] = struct{}{}

	c := m.byCity.get(cityKey{r.CityKey, r.StateKey}, func() *cityAcc {
		return &cityAcc{city: r.City, state: r.State, acc: newAcc()}
	})
	c.add(r)
	m.byLang.get(r.Language, newAcc).add(r)
	m.byFormat.get(r.Dimension, newAcc).add(r)
}

func (m *movieAcc) result() Movie {
	out := Movie{
		Counters:        m.counters(),
		Cities:          len(m.cities),
		CityDetails:     make([]CityDetail, 0, len(m.byCity.order)),
		LanguageDetails: make([]LanguageDetail, 0, len(m.byLang.order)),
		FormatDetails:   make([]FormatDetail, 0, len(m.byFormat.order)),
	}
	for _, k := range m.byCity.order {
		c := m.byCity.m[k]
		out.CityDetails = append(out.CityDetails, CityDetail{City: c.city, State: c.state, Counters: c.counters()})
	}
	for _, k := range m.byLang.order {
		out.LanguageDetails = append(out.LanguageDetails, LanguageDetail{Language: k, Counters: m.byLang.m[k].counters()})
	}
	for _, k := range m.byFormat.order {
		out.FormatDetails = append(out.FormatDetails, FormatDetail{Dimension: k, Counters: m.byFormat.m[k].counters()})
	}
	return out
}
