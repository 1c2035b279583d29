package rates

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/sig-0/cnbrates/metrics"
	"github.com/sig-0/cnbrates/storage/types"
)

// Resolve resolves the per-unit rate of the currency for the YYYY-MM-DD date.
//
// Lookup order:
//  1. load the date's year, if missing
//  2. exact date
//  3. closest cached date before it, within the year
//  4. single-date refetch, then exact match on the date the upstream reported
//  5. closest cached date before the reported one, within its year
func (s *Service) Resolve(
	ctx context.Context,
	date string,
	currency types.Currency,
) (*types.Quote, error) {
	if !s.isSupported(currency) {
		return nil, fmt.Errorf("%w: invalid currency %q", ErrValidation, currency)
	}

	requestedKey, err := types.DateKey(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	year := types.YearOf(date)

	if err = s.ensureYear(ctx, year); err != nil {
		s.metrics.ObserveResolution(metrics.ResolveError)

		return nil, err
	}

	newQuote := func(effective string, rate float64) *types.Quote {
		return &types.Quote{
			RequestedDate: date,
			EffectiveDate: effective,
			Currency:      currency,
			Rate:          rate,
		}
	}

	// Exact match
	if rate, ok := s.storage.Rate(year, date, currency); ok {
		s.metrics.ObserveResolution(metrics.ResolveExact)

		return newQuote(date, rate), nil
	}

	// Closest previous date
	if effective, rate, ok := s.nearestPrior(year, requestedKey, currency); ok {
		s.logger.Debug(
			"using exchange rate from an earlier date",
			"requested", date,
			"effective", effective,
			"currency", currency,
		)

		s.metrics.ObserveResolution(metrics.ResolveFallback)

		return newQuote(effective, rate), nil
	}

	// Nothing usable is cached, ask the upstream for the date
	responseDate, err := s.refetchDate(ctx, date)
	if err != nil {
		s.metrics.ObserveResolution(metrics.ResolveError)

		return nil, err
	}

	responseYear := types.YearOf(responseDate)

	if rate, ok := s.storage.Rate(responseYear, responseDate, currency); ok {
		s.logger.Debug(
			"using exchange rate from the reported date",
			"requested", date,
			"effective", responseDate,
			"currency", currency,
		)

		s.metrics.ObserveResolution(metrics.ResolveRefetch)

		return newQuote(responseDate, rate), nil
	}

	responseKey, err := types.DateKey(responseDate)
	if err == nil {
		if effective, rate, ok := s.nearestPrior(responseYear, responseKey, currency); ok {
			s.logger.Debug(
				"using exchange rate from an earlier date",
				"requested", date,
				"effective", effective,
				"currency", currency,
			)

			s.metrics.ObserveResolution(metrics.ResolveRefetch)

			return newQuote(effective, rate), nil
		}
	}

	s.metrics.ObserveResolution(metrics.ResolveNotFound)

	return nil, &NotFoundError{
		Currency: currency,
		Date:     date,
	}
}

// nearestPrior returns the latest cached date of the year, not after the bound,
// that has a rate for the currency
func (s *Service) nearestPrior(
	year string,
	bound int,
	currency types.Currency,
) (string, float64, bool) {
	type candidate struct {
		date string
		key  int
	}

	dates := s.storage.Dates(year)
	candidates := make([]candidate, 0, len(dates))

	for _, date := range dates {
		key, err := types.DateKey(date)
		if err != nil || key > bound {
			continue
		}

		candidates = append(candidates, candidate{
			date: date,
			key:  key,
		})
	}

	// Latest first
	slices.SortFunc(candidates, func(a, b candidate) int {
		return cmp.Compare(b.key, a.key)
	})

	for _, c := range candidates {
		if rate, ok := s.storage.Rate(year, c.date, currency); ok {
			return c.date, rate, true
		}
	}

	return "", 0, false
}
