package storage

import "github.com/sig-0/cnbrates/storage/types"

// Storage is an abstraction over the cached fixing table
type Storage interface {
	// HasYear returns true if any data for the year is present
	HasYear(year string) bool

	// HasDate returns true if the date is present in the year
	HasDate(year, date string) bool

	// Rate fetches the per-unit rate for the currency on the exact date
	Rate(year, date string, currency types.Currency) (float64, bool)

	// Merge writes the per-unit rates into the year (last writer wins)
	Merge(year string, rates types.DateRates)

	// SetUnitAmount saves the lot size the currency is quoted per
	SetUnitAmount(currency types.Currency, amount int)

	// Dates lists the loaded dates of the year, unordered
	Dates(year string) []string

	// Years lists the (even partially) loaded years, sorted
	Years() []string
}
