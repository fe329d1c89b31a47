package show

import "github.com/shopspring/decimal"

// Tier is one seat/price category of a show.
type Tier struct {
	Total     int
	Available int
	Price     decimal.Decimal
}

// Seats is the folded seat and revenue picture of a show.
type Seats struct {
	Total     int
	Available int
	Sold      int
	Gross     decimal.Decimal
	Clamped   bool
}

// ClampSeats forces total >= 0 and 0 <= available <= total so that
// sold = total - available is never negative.
func ClampSeats(total, available int) (int, int, bool) {
	clamped := false
	if total < 0 {
		total, clamped = 0, true
	}
	if available < 0 {
		available, clamped = 0, true
	}
	if available > total {
		available, clamped = total, true
	}
	return total, available, clamped
}

// FoldTiers sums tiers into a show's totals. Gross is sum of sold-in-tier
// times price-in-tier.
func FoldTiers(tiers []Tier) Seats {
	var s Seats
	s.Gross = decimal.Zero
	for _, t := range tiers {
		total, avail, clamped := ClampSeats(t.Total, t.Available)
		sold := total - avail
		s.Total += total
		s.Available += avail
		s.Sold += sold
		s.Gross = s.Gross.Add(t.Price.Mul(decimal.NewFromInt(int64(sold))))
		s.Clamped = s.Clamped || clamped
	}
	return s
}

// WithTotals overrides the seat counts with show-level totals reported by
// the vendor while keeping the tier-derived gross.
func (s Seats) WithTotals(total, available int) Seats {
	t, a, clamped := ClampSeats(total, available)
	s.Total = t
	s.Available = a
	s.Sold = t - a
	s.Clamped = s.Clamped || clamped
	return s
}

// GrossValue returns gross rounded to 2 decimal places.
func (s Seats) GrossValue() float64 {
	return s.Gross.Round(2).InexactFloat64()
}

// Apply copies the folded figures onto r.
func (s Seats) Apply(r *Record) {
	r.TotalSeats = s.Total
	r.Available = s.Available
	r.Sold = s.Sold
	r.Gross = s.GrossValue()
	r.Clamped = r.Clamped || s.Clamped
}
