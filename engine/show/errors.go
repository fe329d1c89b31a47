package show

import "errors"

var (
	// ErrMalformedPayload is returned by a normalizer when a payload is JSON
	// but not the shape the vendor adapter expects. The venue still counts
	// as fetched; it just contributes no records.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrVenueList is returned when the venue list cannot be read or parsed.
	ErrVenueList = errors.New("invalid venue list")
)
