// Package district adapts the District cinema sessions API.
package district

import "github.com/WessleyAI/showpulse/engine/show"

// Payload is the subset of the cinema response that is read.
type Payload struct {
	Data     Data     `json:"data"`
	Meta     Meta     `json:"meta"`
	PageData PageData `json:"pageData"`
}

// Data lists the dates the cinema has sessions on (2006-01-02).
type Data struct {
	SessionDates []string `json:"sessionDates"`
}

// Meta describes the cinema and the movies its sessions reference.
type Meta struct {
	Cinema Cinema  `json:"cinema"`
	Movies []Movie `json:"movies"`
}

type Cinema struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Movie ids arrive as numbers or strings.
type Movie struct {
	ID   show.FlexString `json:"id"`
	Name string          `json:"name"`
	Lang string          `json:"lang"`
}

type PageData struct {
	Sessions []Session `json:"sessions"`
}

// Session is one show. ShowTime is an ISO-8601 UTC timestamp or epoch
// milliseconds.
type Session struct {
	ID       show.FlexString `json:"id"`
	MID      show.FlexString `json:"mid"`
	Lang     string          `json:"lang"`
	ScrnFmt  string          `json:"scrnFmt"`
	Total    show.FlexInt    `json:"total"`
	Avail    show.FlexInt    `json:"avail"`
	Areas    []Area          `json:"areas"`
	ShowTime show.FlexString `json:"showTime"`
	Audi     show.FlexString `json:"audi"`
}

// Area is a seat/price tier.
type Area struct {
	STotal show.FlexInt `json:"sTotal"`
	SAvail show.FlexInt `json:"sAvail"`
	Price  show.Price   `json:"price"`
}
