package types

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the canonical date format used as the table key
const DateLayout = "2006-01-02"

var errInvalidDate = errors.New("invalid date")

type Currency string

func (c Currency) String() string {
	return string(c)
}

// DateRates maps an ISO date (YYYY-MM-DD) to per-unit rates by currency
type DateRates map[string]map[Currency]float64

// Quote is a resolved per-unit rate
type Quote struct {
	// The date that was asked for
	RequestedDate string `json:"date"`

	// The date whose fixing was actually used
	EffectiveDate string `json:"effective_date"`

	Currency Currency `json:"currency"`
	Rate     float64  `json:"rate"`
}

// DateKey converts an ISO date into a comparable integer (year*10000 + month*100 + day)
func DateKey(date string) (int, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("%w %q", errInvalidDate, date)
	}

	y, m, d := t.Date()

	return y*10000 + int(m)*100 + d, nil
}

// YearOf returns the 4-digit year prefix of an ISO date
func YearOf(date string) string {
	if len(date) < 4 {
		return date
	}

	return date[:4]
}
