package rates

import "context"

type (
	fetchYearlyDelegate func(context.Context, string) (string, error)
	fetchDailyDelegate  func(context.Context, string) (string, error)
)

type mockSource struct {
	fetchYearlyFn fetchYearlyDelegate
	fetchDailyFn  fetchDailyDelegate
}

func (m *mockSource) FetchYearly(ctx context.Context, year string) (string, error) {
	if m.fetchYearlyFn != nil {
		return m.fetchYearlyFn(ctx, year)
	}

	return "", nil
}

func (m *mockSource) FetchDaily(ctx context.Context, date string) (string, error) {
	if m.fetchDailyFn != nil {
		return m.fetchDailyFn(ctx, date)
	}

	return "", nil
}
