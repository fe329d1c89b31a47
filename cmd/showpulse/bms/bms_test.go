package bms

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/showpulse/engine/run"
	"github.com/WessleyAI/showpulse/engine/show"
)

const payload = `{
  "ShowDetails": [{
    "Venues": {"VenueName": "PVR Phoenix", "VenueAdd": "Lower Parel", "VenueCompName": "PVR"},
    "Event": [{
      "EventTitle": "Jawan",
      "ChildEvents": [{
        "EventDimension": "2d",
        "EventLanguage": "Hindi",
        "ShowTimes": [
          {"ShowDateCode": "20250110", "ShowTime": "10:30 AM", "Attributes": "AUDI 1", "SessionId": 1201,
           "Categories": [
             {"MaxSeats": "50", "SeatsAvail": "10", "CurPrice": "200.00"},
             {"MaxSeats": 30, "SeatsAvail": 30, "CurPrice": 150}
           ]},
          {"ShowDateCode": "20250111", "ShowTime": "10:30 AM", "SessionId": "1202", "Categories": []},
          {"ShowDateCode": "20250110", "ShowTime": "late", "SessionId": "1203",
           "Categories": [{"MaxSeats": 10, "SeatsAvail": 12, "CurPrice": "oops"}]}
        ]
      }]
    }]
  }]
}`

func testDay(t *testing.T) show.Day {
	t.Helper()
	d, err := show.ParseDay("20250110", show.Location("Asia/Kolkata"))
	require.NoError(t, err)
	return d
}

func TestNormalize(t *testing.T) {
	v := show.Venue{ID: "PVPH", City: "Mumbai", State: "Maharashtra"}
	recs, err := Normalize([]byte(payload), v, testDay(t))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	r := recs[0]
	assert.Equal(t, "Jawan", r.Movie)
	assert.Equal(t, "PVR Phoenix", r.Venue)
	assert.Equal(t, "Lower Parel", r.Address)
	assert.Equal(t, "Mumbai", r.City)
	assert.Equal(t, "HINDI", r.Language)
	assert.Equal(t, "2D", r.Dimension)
	assert.Equal(t, "PVR", r.Chain)
	assert.Equal(t, "10:30 AM", r.Time)
	assert.Equal(t, "AUDI 1", r.Audi)
	assert.Equal(t, "1201", r.SessionID)
	assert.Equal(t, 80, r.TotalSeats)
	assert.Equal(t, 40, r.Available)
	assert.Equal(t, 40, r.Sold)
	assert.Equal(t, 8000.0, r.Gross)
	assert.Equal(t, "BMS", r.Source)
	assert.Equal(t, "20250110", r.Date)
	assert.False(t, r.Clamped)

	bad := recs[1]
	assert.Equal(t, show.UnparsedTime, bad.Time)
	assert.Equal(t, 0, bad.Sold)
	assert.Equal(t, 0.0, bad.Gross)
	assert.True(t, bad.Clamped)
}

func TestNormalizeEmptyAndMalformed(t *testing.T) {
	v := show.Venue{ID: "X"}
	recs, err := Normalize([]byte(`{"ShowDetails": []}`), v, testDay(t))
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = Normalize([]byte(`{"Other": 1}`), v, testDay(t))
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = Normalize([]byte(`{"ShowDetails": "nope"}`), v, testDay(t))
	assert.ErrorIs(t, err, show.ErrMalformedPayload)
}

func TestNormalizeVenueFallbacks(t *testing.T) {
	p := `{"ShowDetails":[{"Venues":{},"Event":[{"ChildEvents":[{"ShowTimes":[{"ShowDateCode":"20250110","ShowTime":"09:00 PM"}]}]}]}]}`
	recs, err := Normalize([]byte(p), show.Venue{ID: "CODE", Name: "Listed Name"}, testDay(t))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Listed Name", recs[0].Venue)
	assert.Equal(t, show.Unknown, recs[0].Movie)
	assert.Equal(t, show.Unknown, recs[0].Chain)
	assert.Equal(t, show.UnknownUpper, recs[0].Language)
}

func TestURL(t *testing.T) {
	u, err := url.Parse(URL(testDay(t))(show.Venue{ID: "PVPH"}))
	require.NoError(t, err)
	assert.Equal(t, "in.bookmyshow.com", u.Host)
	assert.Equal(t, "PVPH", u.Query().Get("venueCode"))
	assert.Equal(t, "20250110", u.Query().Get("dateCode"))
}

func TestDefaults(t *testing.T) {
	d := Source().Defaults
	assert.Equal(t, run.StrategySequential, d.Strategy)
	assert.Equal(t, 15*time.Second, d.HardTimeout)
	assert.Equal(t, 5, d.MaxRetryRounds)
	assert.Equal(t, 200, d.CutoffMinutes)
}
