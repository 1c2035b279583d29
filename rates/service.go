package rates

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/sig-0/cnbrates/metrics"
	"github.com/sig-0/cnbrates/provider/currencies"
	"github.com/sig-0/cnbrates/storage"
	"github.com/sig-0/cnbrates/storage/memory"
	"github.com/sig-0/cnbrates/storage/types"
)

// Source performs the upstream GETs, returning the raw feed text
type Source interface {
	// FetchYearly fetches the bulk feed for the 4-digit year
	FetchYearly(ctx context.Context, year string) (string, error)

	// FetchDaily fetches the single-date feed for the YYYY-MM-DD date
	FetchDaily(ctx context.Context, date string) (string, error)
}

// Service caches CNB fixings and resolves per-unit rates with
// a nearest-prior-date fallback
type Service struct {
	source  Source
	storage storage.Storage
	logger  *slog.Logger
	metrics *metrics.Metrics

	currencies []types.Currency

	// in-flight fetches, keyed by year and by exact date
	yearCalls singleflight.Group
	dateCalls singleflight.Group
}

// New creates a new rate service on top of the given feed source
func New(source Source, opts ...Option) *Service {
	s := &Service{
		source:     source,
		storage:    memory.NewTable(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:    metrics.New(),
		currencies: currencies.All(),
	}

	// Apply the options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// LoadYear makes sure the yearly feed for the year is cached.
// It never refetches a year that is already (even partially) present
func (s *Service) LoadYear(ctx context.Context, year int) error {
	if year < 1000 || year > 9999 {
		return fmt.Errorf("%w: invalid year %d", ErrValidation, year)
	}

	return s.ensureYear(ctx, strconv.Itoa(year))
}

// Preload loads the given years concurrently, returning all encountered errors
func (s *Service) Preload(ctx context.Context, years ...int) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)

	for _, year := range years {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if err := s.LoadYear(ctx, year); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	return result.ErrorOrNil()
}

// Refresh fetches the single-date feed for the date, regardless of the cache.
// It returns the date the upstream actually reported
func (s *Service) Refresh(ctx context.Context, date string) (string, error) {
	if _, err := types.DateKey(date); err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return s.refetchDate(ctx, date)
}

// HasYear returns true if the year is (even partially) cached
func (s *Service) HasYear(year int) bool {
	return s.storage.HasYear(strconv.Itoa(year))
}

// Currencies returns the recognized currency set
func (s *Service) Currencies() []types.Currency {
	return slices.Clone(s.currencies)
}

// GetRate returns the per-unit rate of the currency on, or closest before, the date
func (s *Service) GetRate(ctx context.Context, date, currency string) (float64, error) {
	quote, err := s.Resolve(ctx, date, types.Currency(currency))
	if err != nil {
		return 0, err
	}

	return quote.Rate, nil
}

func (s *Service) isSupported(c types.Currency) bool {
	return slices.Contains(s.currencies, c)
}
