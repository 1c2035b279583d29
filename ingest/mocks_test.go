package ingest

import (
	"context"
	"time"
)

type (
	nameDelegate     func() string
	intervalDelegate func() time.Duration
	runDelegate      func(context.Context) error
)

type mockJob struct {
	nameFn     nameDelegate
	intervalFn intervalDelegate
	runFn      runDelegate
}

func (m *mockJob) Name() string {
	if m.nameFn != nil {
		return m.nameFn()
	}

	return ""
}

func (m *mockJob) Interval() time.Duration {
	if m.intervalFn != nil {
		return m.intervalFn()
	}

	return 0
}

func (m *mockJob) Run(ctx context.Context) error {
	if m.runFn != nil {
		return m.runFn(ctx)
	}

	return nil
}

type (
	loadYearDelegate func(context.Context, int) error
	hasYearDelegate  func(int) bool
	refreshDelegate  func(context.Context, string) (string, error)
)

type mockLoader struct {
	loadYearFn loadYearDelegate
	hasYearFn  hasYearDelegate
	refreshFn  refreshDelegate
}

func (m *mockLoader) LoadYear(ctx context.Context, year int) error {
	if m.loadYearFn != nil {
		return m.loadYearFn(ctx, year)
	}

	return nil
}

func (m *mockLoader) HasYear(year int) bool {
	if m.hasYearFn != nil {
		return m.hasYearFn(year)
	}

	return false
}

func (m *mockLoader) Refresh(ctx context.Context, date string) (string, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, date)
	}

	return date, nil
}
