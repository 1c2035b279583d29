package mock

import (
	"context"

	"github.com/sig-0/cnbrates/storage/types"
)

type (
	LoadYearDelegate   func(context.Context, int) error
	ResolveDelegate    func(context.Context, string, types.Currency) (*types.Quote, error)
	CurrenciesDelegate func() []types.Currency
)

type Service struct {
	LoadYearFn   LoadYearDelegate
	ResolveFn    ResolveDelegate
	CurrenciesFn CurrenciesDelegate
}

func (m *Service) LoadYear(ctx context.Context, year int) error {
	if m.LoadYearFn != nil {
		return m.LoadYearFn(ctx, year)
	}

	return nil
}

func (m *Service) Resolve(
	ctx context.Context,
	date string,
	currency types.Currency,
) (*types.Quote, error) {
	if m.ResolveFn != nil {
		return m.ResolveFn(ctx, date, currency)
	}

	return nil, nil
}

func (m *Service) Currencies() []types.Currency {
	if m.CurrenciesFn != nil {
		return m.CurrenciesFn()
	}

	return nil
}
