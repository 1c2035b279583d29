package rates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/cnbrates/metrics"
	"github.com/sig-0/cnbrates/provider/cnb"
	"github.com/sig-0/cnbrates/provider/currencies"
	"github.com/sig-0/cnbrates/storage/memory"
	"github.com/sig-0/cnbrates/storage/types"
)

const testYearly2021 = `Date|1 EUR|100 JPY|1 USD
04.01.2021|26,140|20,675|21,387
05.01.2021|26,225|20,618|
07.01.2021|26,180|20,660|21,300
`

// staticYearly returns a yearly delegate serving the given feed for every year,
// counting the calls
func staticYearly(text string, calls *atomic.Int32) fetchYearlyDelegate {
	return func(_ context.Context, _ string) (string, error) {
		calls.Add(1)

		return text, nil
	}
}

// unexpectedDaily fails the test if the single-date feed is requested
func unexpectedDaily(t *testing.T) fetchDailyDelegate {
	t.Helper()

	return func(_ context.Context, date string) (string, error) {
		t.Errorf("unexpected daily fetch for %s", date)

		return "", errors.New("unexpected daily fetch")
	}
}

func TestService_GetRate(t *testing.T) {
	t.Parallel()

	t.Run("exact match", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32

			s = New(&mockSource{
				fetchYearlyFn: staticYearly("H|1 EUR\n01.01.2021|25,06", &yearlyCalls),
				fetchDailyFn:  unexpectedDaily(t),
			})
		)

		rate, err := s.GetRate(context.Background(), "2021-01-01", "EUR")
		require.NoError(t, err)

		assert.Equal(t, 25.06, rate)
		assert.Equal(t, int32(1), yearlyCalls.Load())
	})

	t.Run("normalized by unit amount", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32
			table       = memory.NewTable()

			s = New(
				&mockSource{
					fetchYearlyFn: staticYearly("H|100 JPY\n04.01.2021|1500,00", &yearlyCalls),
					fetchDailyFn:  unexpectedDaily(t),
				},
				WithStorage(table),
			)
		)

		rate, err := s.GetRate(context.Background(), "2021-01-04", "JPY")
		require.NoError(t, err)

		assert.Equal(t, 15.0, rate)

		amount, ok := table.UnitAmount(currencies.JPY)
		require.True(t, ok)
		assert.Equal(t, 100, amount)
	})

	t.Run("later date falls back", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32

			s = New(&mockSource{
				fetchYearlyFn: staticYearly("H|1 EUR\n01.01.2021|25,06", &yearlyCalls),
				fetchDailyFn:  unexpectedDaily(t),
			})
		)

		rate, err := s.GetRate(context.Background(), "2021-01-02", "EUR")
		require.NoError(t, err)

		assert.Equal(t, 25.06, rate)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32

			s = New(&mockSource{
				fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
				fetchDailyFn:  unexpectedDaily(t),
			})
		)

		_, err := s.GetRate(context.Background(), "2021-01-04", "XXX")
		assert.ErrorIs(t, err, ErrValidation)

		_, err = s.GetRate(context.Background(), "2021-13-04", "EUR")
		assert.ErrorIs(t, err, ErrValidation)

		_, err = s.GetRate(context.Background(), "04.01.2021", "EUR")
		assert.ErrorIs(t, err, ErrValidation)

		assert.Zero(t, yearlyCalls.Load())
	})
}

func TestService_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("exact match skips fallback", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32
			m           = metrics.New()

			s = New(
				&mockSource{
					fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
					fetchDailyFn:  unexpectedDaily(t),
				},
				WithMetrics(m),
			)
		)

		quote, err := s.Resolve(context.Background(), "2021-01-05", currencies.EUR)
		require.NoError(t, err)

		assert.Equal(t, "2021-01-05", quote.EffectiveDate)
		assert.InDelta(t, 26.225, quote.Rate, 1e-9)

		assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues(metrics.ResolveExact)))
		assert.Zero(t, testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues(metrics.ResolveFallback)))
	})

	t.Run("nearest prior date", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32

			s = New(&mockSource{
				fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
				fetchDailyFn:  unexpectedDaily(t),
			})
		)

		// 04 < 05 < 07, nothing on the 9th
		quote, err := s.Resolve(context.Background(), "2021-01-09", currencies.EUR)
		require.NoError(t, err)

		assert.Equal(t, "2021-01-09", quote.RequestedDate)
		assert.Equal(t, "2021-01-07", quote.EffectiveDate)
		assert.InDelta(t, 26.18, quote.Rate, 1e-9)

		// Nothing on the 6th, the 5th is the closest prior date
		quote, err = s.Resolve(context.Background(), "2021-01-06", currencies.EUR)
		require.NoError(t, err)

		assert.Equal(t, "2021-01-05", quote.EffectiveDate)
	})

	t.Run("nearest prior date with the currency", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32

			s = New(&mockSource{
				fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
				fetchDailyFn:  unexpectedDaily(t),
			})
		)

		// USD is missing on the 5th, the 4th is used
		quote, err := s.Resolve(context.Background(), "2021-01-06", currencies.USD)
		require.NoError(t, err)

		assert.Equal(t, "2021-01-04", quote.EffectiveDate)
		assert.InDelta(t, 21.387, quote.Rate, 1e-9)
	})

	t.Run("refetch uses the reported date", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32
			dailyCalls  atomic.Int32
			table       = memory.NewTable()

			s = New(
				&mockSource{
					fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
					fetchDailyFn: func(_ context.Context, date string) (string, error) {
						dailyCalls.Add(1)

						assert.Equal(t, "2021-01-01", date)

						return "31.12.2020 #251\n" +
							"Country|Currency|Amount|Code|Rate\n" +
							"EMU|euro|1|EUR|26,245\n", nil
					},
				},
				WithStorage(table),
			)
		)

		// Nothing in 2021 before the 4th
		quote, err := s.Resolve(context.Background(), "2021-01-01", currencies.EUR)
		require.NoError(t, err)

		assert.Equal(t, "2020-12-31", quote.EffectiveDate)
		assert.InDelta(t, 26.245, quote.Rate, 1e-9)

		assert.Equal(t, int32(1), dailyCalls.Load())
		assert.Equal(t, int32(1), yearlyCalls.Load())

		// The reported date lands in its own (partial) year
		assert.True(t, table.HasYear("2020"))
		assert.True(t, table.HasDate("2020", "2020-12-31"))
	})

	t.Run("refetch falls back within the reported year", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32
			dailyCalls  atomic.Int32
			table       = memory.NewTable()
		)

		table.Merge("2020", types.DateRates{
			"2020-12-30": {currencies.USD: 21.5},
		})

		s := New(
			&mockSource{
				fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
				fetchDailyFn: func(_ context.Context, _ string) (string, error) {
					dailyCalls.Add(1)

					return "31.12.2020 #251\n" +
						"Country|Currency|Amount|Code|Rate\n" +
						"EMU|euro|1|EUR|26,245\n", nil
				},
			},
			WithStorage(table),
		)

		quote, err := s.Resolve(context.Background(), "2021-01-01", currencies.USD)
		require.NoError(t, err)

		assert.Equal(t, "2020-12-30", quote.EffectiveDate)
		assert.Equal(t, 21.5, quote.Rate)
		assert.Equal(t, int32(1), dailyCalls.Load())
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32
			dailyCalls  atomic.Int32

			s = New(&mockSource{
				fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
				fetchDailyFn: func(_ context.Context, _ string) (string, error) {
					dailyCalls.Add(1)

					return "08.01.2021 #5\n" +
						"Country|Currency|Amount|Code|Rate\n" +
						"EMU|euro|1|EUR|26,175\n", nil
				},
			})
		)

		_, err := s.Resolve(context.Background(), "2021-01-08", currencies.GBP)
		require.Error(t, err)

		assert.ErrorIs(t, err, ErrNotFound)

		var notFound *NotFoundError

		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, currencies.GBP, notFound.Currency)
		assert.Equal(t, "2021-01-08", notFound.Date)
		assert.Contains(t, err.Error(), "GBP")

		assert.Equal(t, int32(1), dailyCalls.Load())
	})

	t.Run("yearly network error", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32

			s = New(&mockSource{
				fetchYearlyFn: func(_ context.Context, _ string) (string, error) {
					if yearlyCalls.Add(1) == 1 {
						return "", fmt.Errorf("%w: connection refused", cnb.ErrNetwork)
					}

					return testYearly2021, nil
				},
				fetchDailyFn: unexpectedDaily(t),
			})
		)

		_, err := s.Resolve(context.Background(), "2021-01-04", currencies.EUR)
		require.ErrorIs(t, err, cnb.ErrNetwork)

		// The failed fetch is not remembered, the next caller retries
		quote, err := s.Resolve(context.Background(), "2021-01-04", currencies.EUR)
		require.NoError(t, err)

		assert.InDelta(t, 26.14, quote.Rate, 1e-9)
		assert.Equal(t, int32(2), yearlyCalls.Load())
	})

	t.Run("yearly parse error", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32

			s = New(&mockSource{
				fetchYearlyFn: staticYearly("garbage", &yearlyCalls),
				fetchDailyFn:  unexpectedDaily(t),
			})
		)

		_, err := s.Resolve(context.Background(), "2021-01-04", currencies.EUR)

		assert.ErrorIs(t, err, cnb.ErrParse)
		assert.False(t, s.HasYear(2021))
	})

	t.Run("daily network error", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32

			s = New(&mockSource{
				fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
				fetchDailyFn: func(_ context.Context, _ string) (string, error) {
					return "", fmt.Errorf("%w: timeout", cnb.ErrNetwork)
				},
			})
		)

		_, err := s.Resolve(context.Background(), "2021-01-02", currencies.EUR)

		assert.ErrorIs(t, err, cnb.ErrNetwork)
	})

	t.Run("concurrent callers share one fetch", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32
			release     = make(chan struct{})

			s = New(&mockSource{
				fetchYearlyFn: func(_ context.Context, _ string) (string, error) {
					yearlyCalls.Add(1)

					<-release

					return testYearly2021, nil
				},
				fetchDailyFn: unexpectedDaily(t),
			})
		)

		const callers = 10

		var (
			wg    sync.WaitGroup
			rates = make([]float64, callers)
			errs  = make([]error, callers)
		)

		for i := range callers {
			wg.Add(1)

			go func() {
				defer wg.Done()

				rates[i], errs[i] = s.GetRate(context.Background(), "2021-01-04", "EUR")
			}()
		}

		require.Eventually(t, func() bool {
			return yearlyCalls.Load() == 1
		}, 5*time.Second, time.Millisecond*5)

		close(release)
		wg.Wait()

		for i := range callers {
			require.NoError(t, errs[i])
			assert.InDelta(t, 26.14, rates[i], 1e-9)
		}

		assert.Equal(t, int32(1), yearlyCalls.Load())
	})

	t.Run("caller stops waiting on ctx", func(t *testing.T) {
		t.Parallel()

		var (
			release = make(chan struct{})

			s = New(&mockSource{
				fetchYearlyFn: func(_ context.Context, _ string) (string, error) {
					<-release

					return testYearly2021, nil
				},
				fetchDailyFn: unexpectedDaily(t),
			})
		)

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*20)
		defer cancel()

		_, err := s.Resolve(ctx, "2021-01-04", currencies.EUR)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		// The shared fetch still completes and populates the cache
		close(release)

		require.Eventually(t, func() bool {
			return s.HasYear(2021)
		}, 5*time.Second, time.Millisecond*5)
	})
}

func TestService_LoadYear(t *testing.T) {
	t.Parallel()

	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32
			requested   = make(chan string, 2)

			s = New(&mockSource{
				fetchYearlyFn: func(_ context.Context, year string) (string, error) {
					yearlyCalls.Add(1)
					requested <- year

					return testYearly2021, nil
				},
			})
		)

		require.NoError(t, s.LoadYear(context.Background(), 2021))
		require.NoError(t, s.LoadYear(context.Background(), 2021))

		assert.Equal(t, int32(1), yearlyCalls.Load())
		assert.Equal(t, "2021", <-requested)
		assert.True(t, s.HasYear(2021))
	})

	t.Run("logs the cached years", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32
			out         bytes.Buffer
			table       = memory.NewTable()

			logger = slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}))

			s = New(
				&mockSource{
					fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
				},
				WithStorage(table),
				WithLogger(logger),
			)
		)

		table.Merge("2019", types.DateRates{})

		require.NoError(t, s.LoadYear(context.Background(), 2021))

		assert.Contains(t, out.String(), "cached_years=\"[2019 2021]\"")
	})

	t.Run("invalid year", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32

			s = New(&mockSource{
				fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
			})
		)

		assert.ErrorIs(t, s.LoadYear(context.Background(), 21), ErrValidation)
		assert.ErrorIs(t, s.LoadYear(context.Background(), 20210), ErrValidation)
		assert.Zero(t, yearlyCalls.Load())
	})

	t.Run("partially loaded year is not refetched", func(t *testing.T) {
		t.Parallel()

		var (
			yearlyCalls atomic.Int32
			table       = memory.NewTable()

			s = New(
				&mockSource{
					fetchYearlyFn: staticYearly(testYearly2021, &yearlyCalls),
				},
				WithStorage(table),
			)
		)

		table.Merge("2021", types.DateRates{"2021-01-04": {currencies.EUR: 26.14}})

		require.NoError(t, s.LoadYear(context.Background(), 2021))
		assert.Zero(t, yearlyCalls.Load())
	})
}

func TestService_Preload(t *testing.T) {
	t.Parallel()

	t.Run("aggregates errors", func(t *testing.T) {
		t.Parallel()

		s := New(&mockSource{
			fetchYearlyFn: func(_ context.Context, year string) (string, error) {
				if year == "2020" {
					return testYearly2021, nil
				}

				return "", fmt.Errorf("%w: %s unavailable", cnb.ErrNetwork, year)
			},
		})

		err := s.Preload(context.Background(), 2019, 2020, 2021)
		require.Error(t, err)

		assert.ErrorIs(t, err, cnb.ErrNetwork)
		assert.Contains(t, err.Error(), "2019")
		assert.Contains(t, err.Error(), "2021")

		assert.True(t, s.HasYear(2020))
		assert.False(t, s.HasYear(2019))
	})

	t.Run("no years", func(t *testing.T) {
		t.Parallel()

		s := New(&mockSource{})

		assert.NoError(t, s.Preload(context.Background()))
	})
}

func TestService_Refresh(t *testing.T) {
	t.Parallel()

	t.Run("always fetches", func(t *testing.T) {
		t.Parallel()

		var (
			dailyCalls atomic.Int32
			table      = memory.NewTable()

			s = New(
				&mockSource{
					fetchDailyFn: func(_ context.Context, _ string) (string, error) {
						dailyCalls.Add(1)

						return "08.01.2021 #5\n" +
							"Country|Currency|Amount|Code|Rate\n" +
							"EMU|euro|1|EUR|26,175\n", nil
					},
				},
				WithStorage(table),
			)
		)

		for range 2 {
			date, err := s.Refresh(context.Background(), "2021-01-09")
			require.NoError(t, err)

			assert.Equal(t, "2021-01-08", date)
		}

		assert.Equal(t, int32(2), dailyCalls.Load())

		rate, ok := table.Rate("2021", "2021-01-08", currencies.EUR)
		require.True(t, ok)
		assert.InDelta(t, 26.175, rate, 1e-9)
	})

	t.Run("concurrent callers share one fetch", func(t *testing.T) {
		t.Parallel()

		var (
			dailyCalls atomic.Int32
			release    = make(chan struct{})

			s = New(&mockSource{
				fetchYearlyFn: func(_ context.Context, _ string) (string, error) {
					return testYearly2021, nil
				},
				fetchDailyFn: func(_ context.Context, _ string) (string, error) {
					dailyCalls.Add(1)

					<-release

					return "31.12.2020 #251\n" +
						"Country|Currency|Amount|Code|Rate\n" +
						"EMU|euro|1|EUR|26,245\n", nil
				},
			})
		)

		const callers = 10

		var (
			wg      sync.WaitGroup
			started sync.WaitGroup
			quotes  = make([]*types.Quote, callers)
			dates   = make([]string, callers)
			errs    = make([]error, callers)
		)

		// Half refresh the date, half resolve it with nothing cached before it
		for i := range callers {
			wg.Add(1)
			started.Add(1)

			go func() {
				defer wg.Done()

				started.Done()

				if i%2 == 0 {
					dates[i], errs[i] = s.Refresh(context.Background(), "2021-01-01")

					return
				}

				quotes[i], errs[i] = s.Resolve(context.Background(), "2021-01-01", currencies.EUR)
			}()
		}

		started.Wait()

		require.Eventually(t, func() bool {
			return dailyCalls.Load() == 1
		}, 5*time.Second, time.Millisecond*5)

		// Give the remaining callers time to join the in-flight fetch
		time.Sleep(time.Millisecond * 100)

		close(release)
		wg.Wait()

		for i := range callers {
			require.NoError(t, errs[i])

			if i%2 == 0 {
				assert.Equal(t, "2020-12-31", dates[i])

				continue
			}

			require.NotNil(t, quotes[i])
			assert.Equal(t, "2020-12-31", quotes[i].EffectiveDate)
		}

		assert.Equal(t, int32(1), dailyCalls.Load())
	})

	t.Run("failed fetch is retried", func(t *testing.T) {
		t.Parallel()

		var (
			dailyCalls atomic.Int32

			s = New(&mockSource{
				fetchDailyFn: func(_ context.Context, _ string) (string, error) {
					if dailyCalls.Add(1) == 1 {
						return "", fmt.Errorf("%w: connection reset", cnb.ErrNetwork)
					}

					return "08.01.2021 #5\n" +
						"Country|Currency|Amount|Code|Rate\n" +
						"EMU|euro|1|EUR|26,175\n", nil
				},
			})
		)

		_, err := s.Refresh(context.Background(), "2021-01-08")
		require.ErrorIs(t, err, cnb.ErrNetwork)

		date, err := s.Refresh(context.Background(), "2021-01-08")
		require.NoError(t, err)

		assert.Equal(t, "2021-01-08", date)
		assert.Equal(t, int32(2), dailyCalls.Load())

		// The refreshed date is served from the cache
		rate, err := s.GetRate(context.Background(), "2021-01-08", "EUR")
		require.NoError(t, err)

		assert.InDelta(t, 26.175, rate, 1e-9)
		assert.Equal(t, int32(2), dailyCalls.Load())
	})

	t.Run("invalid date", func(t *testing.T) {
		t.Parallel()

		s := New(&mockSource{
			fetchDailyFn: unexpectedDaily(t),
		})

		_, err := s.Refresh(context.Background(), "nope")

		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestService_Currencies(t *testing.T) {
	t.Parallel()

	t.Run("default set", func(t *testing.T) {
		t.Parallel()

		s := New(&mockSource{})

		assert.Len(t, s.Currencies(), 32)
		assert.Contains(t, s.Currencies(), currencies.EUR)
	})

	t.Run("custom set", func(t *testing.T) {
		t.Parallel()

		s := New(
			&mockSource{
				fetchDailyFn: unexpectedDaily(t),
			},
			WithCurrencies([]types.Currency{currencies.EUR}),
		)

		assert.Equal(t, []types.Currency{currencies.EUR}, s.Currencies())

		_, err := s.Resolve(context.Background(), "2021-01-04", currencies.USD)
		assert.ErrorIs(t, err, ErrValidation)
	})
}
