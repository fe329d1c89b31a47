package show

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The vendor APIs send counts and prices as numbers, numeric strings, empty
// strings or null depending on the endpoint. The types below decode all of
// them and never fail, so one bad field degrades to zero instead of
// rejecting the whole payload.

// FlexInt is an int that decodes from a number or a numeric string.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := unquote(b)
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		*f = FlexInt(n)
		return nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexInt(int(v))
		return nil
	}
	*f = 0
	return nil
}

// FlexString is a string that also accepts numbers (session ids, epoch
// timestamps, movie ids).
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = ""
			return nil
		}
		*f = FlexString(s)
		return nil
	}
	if len(b) > 0 && (b[0] == '{' || b[0] == '[') {
		*f = ""
		return nil
	}
	// Numbers keep their literal form, so 1736000000000 stays digits.
	*f = FlexString(b)
	return nil
}

func (f FlexString) String() string { return string(f) }

// Price is a decimal amount that decodes from a number or numeric string.
type Price struct {
	decimal.Decimal
}

func (p *Price) UnmarshalJSON(b []byte) error {
	s := unquote(b)
	d, err := decimal.NewFromString(s)
	if err != nil {
		p.Decimal = decimal.Zero
		return nil
	}
	p.Decimal = d
	return nil
}

func unquote(b []byte) string {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return ""
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		var out string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return strings.TrimSpace(out)
		}
		return ""
	}
	return s
}
