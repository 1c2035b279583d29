package memory

import (
	"sort"
	"sync"

	"github.com/sig-0/cnbrates/storage/types"
)

// Table is the in-memory rate cache:
// year -> date -> currency -> per-unit rate, plus the currency unit amounts.
// Stored rates are always already divided by the unit amount
type Table struct {
	years map[string]types.DateRates
	units map[types.Currency]int

	mu sync.RWMutex
}

// NewTable creates an empty rate table
func NewTable() *Table {
	return &Table{
		years: make(map[string]types.DateRates),
		units: make(map[types.Currency]int),
	}
}

// HasYear returns true if the year has a sub-map, even a partial one
func (t *Table) HasYear(year string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.years[year]

	return ok
}

// HasDate returns true if the date is present in the year
func (t *Table) HasDate(year, date string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.years[year][date]

	return ok
}

// Rate returns the stored per-unit rate, if any
func (t *Table) Rate(year, date string, currency types.Currency) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rate, ok := t.years[year][date][currency]

	return rate, ok
}

// Merge writes the given rates into the year, creating it if absent.
// The last writer wins for a given date and currency
func (t *Table) Merge(year string, rates types.DateRates) {
	t.mu.Lock()
	defer t.mu.Unlock()

	dates, ok := t.years[year]
	if !ok {
		dates = make(types.DateRates, len(rates))
		t.years[year] = dates
	}

	for date, byCurrency := range rates {
		stored, ok := dates[date]
		if !ok {
			stored = make(map[types.Currency]float64, len(byCurrency))
			dates[date] = stored
		}

		for currency, rate := range byCurrency {
			stored[currency] = rate
		}
	}
}

// SetUnitAmount records the lot size a currency is quoted per
func (t *Table) SetUnitAmount(currency types.Currency, amount int) {
	t.mu.Lock()
	t.units[currency] = amount
	t.mu.Unlock()
}

// UnitAmount returns the recorded lot size for the currency
func (t *Table) UnitAmount(currency types.Currency) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	amount, ok := t.units[currency]

	return amount, ok
}

// Dates returns the loaded dates of the year, in no particular order
func (t *Table) Dates(year string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.years[year]))
	for date := range t.years[year] {
		out = append(out, date)
	}

	return out
}

// Years returns the loaded years, sorted
func (t *Table) Years() []string {
	t.mu.RLock()

	out := make([]string, 0, len(t.years))
	for year := range t.years {
		out = append(out, year)
	}

	t.mu.RUnlock()

	sort.Strings(out)

	return out
}
