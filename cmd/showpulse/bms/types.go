// Package bms adapts the BookMyShow "showtimes by venue" API.
package bms

import "github.com/WessleyAI/showpulse/engine/show"

// Payload is the subset of the by-venue response that is read.
type Payload struct {
	ShowDetails []ShowDetail `json:"ShowDetails"`
}

// ShowDetail holds the venue block and its events.
type ShowDetail struct {
	Venues VenueInfo `json:"Venues"`
	Event  []Event   `json:"Event"`
}

// VenueInfo describes the venue as the vendor knows it.
type VenueInfo struct {
	VenueName     string `json:"VenueName"`
	VenueAdd      string `json:"VenueAdd"`
	VenueCompName string `json:"VenueCompName"`
}

// Event is a movie.
type Event struct {
	EventTitle  string       `json:"EventTitle"`
	ChildEvents []ChildEvent `json:"ChildEvents"`
}

// ChildEvent is one language/format variant of a movie.
type ChildEvent struct {
	EventDimension string     `json:"EventDimension"`
	EventLanguage  string     `json:"EventLanguage"`
	ShowTimes      []ShowTime `json:"ShowTimes"`
}

// ShowTime is one show.
type ShowTime struct {
	ShowDateCode show.FlexString `json:"ShowDateCode"`
	ShowTime     string          `json:"ShowTime"`
	Attributes   string          `json:"Attributes"`
	SessionID    show.FlexString `json:"SessionId"`
	Categories   []Category      `json:"Categories"`
}

// Category is a seat/price tier.
type Category struct {
	MaxSeats   show.FlexInt `json:"MaxSeats"`
	SeatsAvail show.FlexInt `json:"SeatsAvail"`
	CurPrice   show.Price   `json:"CurPrice"`
}
