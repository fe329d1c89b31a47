package show

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldTiersTwoTiers(t *testing.T) {
	s := FoldTiers([]Tier{
		{Total: 50, Available: 10, Price: decimal.NewFromInt(200)},
		{Total: 30, Available: 30, Price: decimal.NewFromInt(150)},
	})
	assert.Equal(t, 80, s.Total)
	assert.Equal(t, 40, s.Available)
	assert.Equal(t, 40, s.Sold)
	assert.Equal(t, 8000.0, s.GrossValue())
	assert.False(t, s.Clamped)
}

func TestFoldTiersClampsOutOfRange(t *testing.T) {
	s := FoldTiers([]Tier{
		{Total: 10, Available: 12, Price: decimal.NewFromInt(100)},
		{Total: 10, Available: -3, Price: decimal.NewFromInt(100)},
	})
	assert.Equal(t, 20, s.Total)
	assert.Equal(t, 10, s.Sold)
	assert.Equal(t, 1000.0, s.GrossValue())
	assert.True(t, s.Clamped)
}

func TestSeatsWithTotals(t *testing.T) {
	s := FoldTiers([]Tier{{Total: 5, Available: 1, Price: decimal.RequireFromString("99.995")}})
	s = s.WithTotals(100, 60)
	assert.Equal(t, 40, s.Sold)
	assert.Equal(t, 399.98, s.GrossValue())

	var r Record
	s.Apply(&r)
	assert.Equal(t, 100, r.TotalSeats)
	assert.Equal(t, 60, r.Available)
}

func TestFlexScalars(t *testing.T) {
	var p struct {
		A FlexInt    `json:"a"`
		B FlexInt    `json:"b"`
		C FlexInt    `json:"c"`
		D FlexString `json:"d"`
		E FlexString `json:"e"`
		F Price      `json:"f"`
		G Price      `json:"g"`
		H FlexInt    `json:"h"`
	}
	err := json.Unmarshal([]byte(`{"a":"12","b":7.9,"c":"x","d":1736000000000,"e":"S1","f":"250.50","g":null,"h":null}`), &p)
	require.NoError(t, err)
	assert.Equal(t, FlexInt(12), p.A)
	assert.Equal(t, FlexInt(7), p.B)
	assert.Equal(t, FlexInt(0), p.C)
	assert.Equal(t, "1736000000000", p.D.String())
	assert.Equal(t, "S1", p.E.String())
	assert.Equal(t, "250.5", p.F.String())
	assert.True(t, p.G.IsZero())
	assert.Equal(t, FlexInt(0), p.H)
}

func TestCanonicalTime(t *testing.T) {
	loc := Location("Asia/Kolkata")
	cases := []struct {
		in, want string
	}{
		{"10:30 AM", "10:30 AM"},
		{"9:05 pm", "09:05 PM"},
		{"21:15", "09:15 PM"},
		{"2025-01-10T04:30", "10:00 AM"},
		{"2025-01-10T04:30:00Z", "10:00 AM"},
		{"2025-01-10T10:00:00+05:30", "10:00 AM"},
		{"1736483400000", "10:00 AM"},
		{"", UnparsedTime},
		{"soon", UnparsedTime},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanonicalTime(c.in, loc), c.in)
	}
}

func TestMinutesLeft(t *testing.T) {
	loc := Location("Asia/Kolkata")
	now := time.Date(2025, 1, 10, 9, 0, 30, 0, loc)

	m, ok := MinutesLeft("10:30 AM", now)
	require.True(t, ok)
	assert.Equal(t, 89.5, m)

	m, ok = MinutesLeft("08:00 AM", now)
	require.True(t, ok)
	assert.Less(t, m, 0.0)

	m, ok = MinutesLeft(UnparsedTime, now)
	assert.False(t, ok)
	assert.Equal(t, float64(UnknownMinutes), m)
}

func TestCanonicalize(t *testing.T) {
	r := Canonicalize(Record{City: "  mUMBAI ", State: "MAHARASHTRA", Language: "hindi", Sold: -2}, "20250110")
	assert.Equal(t, "Mumbai", r.City)
	assert.Equal(t, "mumbai", r.CityKey)
	assert.Equal(t, "Maharashtra", r.State)
	assert.Equal(t, "maharashtra", r.StateKey)
	assert.Equal(t, "HINDI", r.Language)
	assert.Equal(t, UnknownUpper, r.Dimension)
	assert.Equal(t, Unknown, r.Movie)
	assert.Equal(t, UnparsedTime, r.Time)
	assert.Equal(t, "20250110", r.Date)
	assert.Equal(t, 0, r.Sold)
	assert.True(t, r.Clamped)
}

func TestCanonicalizeClampsSeats(t *testing.T) {
	tests := []struct {
		name               string
		in                 Record
		total, avail, sold int
		clamped            bool
	}{
		{"consistent", Record{TotalSeats: 100, Available: 40, Sold: 60}, 100, 40, 60, false},
		{"negative available", Record{TotalSeats: 100, Available: -20, Sold: 120}, 100, 0, 100, true},
		{"available above total", Record{TotalSeats: 50, Available: 80, Sold: -30}, 50, 50, 0, true},
		{"negative total", Record{TotalSeats: -5, Available: 0, Sold: -5}, 0, 0, 0, true},
		{"stale sold", Record{TotalSeats: 100, Available: 10, Sold: 50}, 100, 10, 90, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Canonicalize(tt.in, "20250110")
			assert.Equal(t, tt.total, r.TotalSeats)
			assert.Equal(t, tt.avail, r.Available)
			assert.Equal(t, tt.sold, r.Sold)
			assert.Equal(t, tt.clamped, r.Clamped)
		})
	}
}

func TestLoadVenuesObjectForm(t *testing.T) {
	in := "\ufeff" + `{"PVRK": {"City": "Kochi", "State": "Kerala"}, "ABCD": {"City": "", "Extra": 3}}`
	venues, err := LoadVenues(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, venues, 2)
	assert.Equal(t, "PVRK", venues[0].ID)
	assert.Equal(t, "Kochi", venues[0].City)
	assert.Equal(t, "ABCD", venues[1].ID)
	assert.Equal(t, Unknown, venues[1].City)
	assert.Equal(t, "3", venues[1].Params["Extra"])
}

func TestLoadVenuesArrayForm(t *testing.T) {
	venues, err := LoadVenues(strings.NewReader(`[{"id": 1203, "name": "Cine One", "city": "Pune", "state": "MH"}]`))
	require.NoError(t, err)
	require.Len(t, venues, 1)
	assert.Equal(t, "1203", venues[0].ID)
	assert.Equal(t, "Cine One", venues[0].Name)
}

func TestLoadVenuesRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "nope", `[{"city":"x"}]`, `{"A": 3}`} {
		_, err := LoadVenues(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrVenueList, in)
	}
}

func TestDay(t *testing.T) {
	loc := Location("Asia/Kolkata")
	d := NewDay(time.Date(2025, 1, 9, 20, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, "20250110", d.Code)
	assert.Equal(t, "2025-01-10", d.ISO)
	assert.True(t, d.Contains(time.Date(2025, 1, 10, 18, 0, 0, 0, time.UTC)))
	assert.False(t, d.Contains(time.Date(2025, 1, 10, 19, 0, 0, 0, time.UTC)))

	p, err := ParseDay("20250110", loc)
	require.NoError(t, err)
	assert.Equal(t, d.Code, p.Code)
}

func TestKeyString(t *testing.T) {
	r := Record{Venue: "V", Time: "10:00 AM", SessionID: "1", Audi: "A"}
	assert.Equal(t, Key{"V", "10:00 AM", "1", "A"}, r.Key())
	assert.Equal(t, "V|10:00 AM|1|A", r.Key().String())
}
