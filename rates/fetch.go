package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/sig-0/cnbrates/metrics"
	"github.com/sig-0/cnbrates/provider/cnb"
	"github.com/sig-0/cnbrates/storage/types"
)

// ensureYear loads the year unless present, sharing one in-flight fetch
// between concurrent callers
func (s *Service) ensureYear(ctx context.Context, year string) error {
	if s.storage.HasYear(year) {
		return nil
	}

	// The shared fetch is detached from the caller that happens to start it,
	// every caller can still stop waiting on its own context
	ch := s.yearCalls.DoChan(year, func() (any, error) {
		return nil, s.fetchYearly(context.WithoutCancel(ctx), year)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

// refetchDate fetches the single-date feed, sharing one in-flight fetch per date
func (s *Service) refetchDate(ctx context.Context, date string) (string, error) {
	ch := s.dateCalls.DoChan(date, func() (any, error) {
		return s.fetchDate(context.WithoutCancel(ctx), date)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		responseDate, _ := res.Val.(string)

		return responseDate, nil
	}
}

// fetchYearly fetches, parses and merges the yearly feed.
// It is a no-op if the year is already present
func (s *Service) fetchYearly(ctx context.Context, year string) error {
	if s.storage.HasYear(year) {
		return nil
	}

	started := time.Now()

	feed, err := s.loadYearly(ctx, year)
	s.metrics.ObserveFetch(metrics.FeedYearly, started, err)

	if err != nil {
		s.logger.Error(
			"unable to fetch yearly exchange rates",
			"year", year,
			"err", err,
		)

		return fmt.Errorf("unable to fetch exchange rates for year %s: %w", year, err)
	}

	for currency, amount := range feed.Units {
		s.storage.SetUnitAmount(currency, amount)
	}

	s.storage.Merge(year, feed.Rates)

	if feed.Skipped > 0 {
		s.metrics.ObserveSkipped(metrics.FeedYearly, feed.Skipped)

		s.logger.Debug(
			"skipped non-numeric values",
			"year", year,
			"count", feed.Skipped,
		)
	}

	s.logger.Debug(
		"exchange rates for year fetched and stored",
		"year", year,
		"dates", len(feed.Rates),
		"cached_years", s.storage.Years(),
	)

	return nil
}

// fetchDate fetches, parses and merges the single-date feed, returning the
// date the upstream reported (which may differ from the requested one)
func (s *Service) fetchDate(ctx context.Context, date string) (string, error) {
	started := time.Now()

	feed, err := s.loadDaily(ctx, date)
	s.metrics.ObserveFetch(metrics.FeedDaily, started, err)

	if err != nil {
		s.logger.Error(
			"unable to fetch exchange rates for date",
			"date", date,
			"err", err,
		)

		return "", fmt.Errorf("unable to fetch exchange rates for date %s: %w", date, err)
	}

	for currency, amount := range feed.Units {
		s.storage.SetUnitAmount(currency, amount)
	}

	s.storage.Merge(types.YearOf(feed.Date), feed.Rates)

	if feed.Skipped > 0 {
		s.metrics.ObserveSkipped(metrics.FeedDaily, feed.Skipped)

		s.logger.Debug(
			"skipped malformed rows",
			"date", feed.Date,
			"count", feed.Skipped,
		)
	}

	s.logger.Debug(
		"exchange rates for date fetched and stored",
		"requested", date,
		"date", feed.Date,
		"cached_years", s.storage.Years(),
	)

	return feed.Date, nil
}

func (s *Service) loadYearly(ctx context.Context, year string) (*cnb.YearlyFeed, error) {
	text, err := s.source.FetchYearly(ctx, year)
	if err != nil {
		return nil, err
	}

	return cnb.ParseYearly(text)
}

func (s *Service) loadDaily(ctx context.Context, date string) (*cnb.DailyFeed, error) {
	text, err := s.source.FetchDaily(ctx, date)
	if err != nil {
		return nil, err
	}

	return cnb.ParseDaily(text)
}
