package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sig-0/cnbrates/storage/types"
)

// Loader is the part of the rate service the jobs drive
type Loader interface {
	// LoadYear makes sure the yearly feed for the year is cached
	LoadYear(ctx context.Context, year int) error

	// HasYear returns true if the year is (even partially) cached
	HasYear(year int) bool

	// Refresh fetches the single-date feed for the date, regardless of the cache
	Refresh(ctx context.Context, date string) (string, error)
}

// pragueLocation returns the zone the CNB fixing is published in,
// falling back to UTC if the tz database is unavailable
func pragueLocation() *time.Location {
	loc, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		return time.UTC
	}

	return loc
}

// YearJob keeps the current year's yearly feed loaded.
// Once the year is present, the job is a no-op until the year rolls over
type YearJob struct {
	loader   Loader
	interval time.Duration
	now      func() time.Time
}

// NewYearJob creates a warm-up job for the current year
func NewYearJob(loader Loader, interval time.Duration) *YearJob {
	loc := pragueLocation()

	return &YearJob{
		loader:   loader,
		interval: interval,
		now: func() time.Time {
			return time.Now().In(loc)
		},
	}
}

func (j *YearJob) Name() string {
	return "cnb-year"
}

func (j *YearJob) Interval() time.Duration {
	return j.interval
}

func (j *YearJob) Run(ctx context.Context) error {
	year := j.now().Year()

	if err := j.loader.LoadYear(ctx, year); err != nil {
		return fmt.Errorf("unable to load year %d: %w", year, err)
	}

	return nil
}

// DailyJob refreshes today's fixing.
// It only runs once the current year is loaded, so a refresh never creates
// a partial year that would keep the full yearly feed from loading
type DailyJob struct {
	loader   Loader
	interval time.Duration
	now      func() time.Time
}

// NewDailyJob creates a refresh job for today's fixing
func NewDailyJob(loader Loader, interval time.Duration) *DailyJob {
	loc := pragueLocation()

	return &DailyJob{
		loader:   loader,
		interval: interval,
		now: func() time.Time {
			return time.Now().In(loc)
		},
	}
}

func (j *DailyJob) Name() string {
	return "cnb-daily"
}

func (j *DailyJob) Interval() time.Duration {
	return j.interval
}

func (j *DailyJob) Run(ctx context.Context) error {
	now := j.now()

	if !j.loader.HasYear(now.Year()) {
		return nil
	}

	date := now.Format(types.DateLayout)

	if _, err := j.loader.Refresh(ctx, date); err != nil {
		return fmt.Errorf("unable to refresh rates for %s: %w", date, err)
	}

	return nil
}
