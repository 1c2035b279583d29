package server

import (
	"context"

	"github.com/sig-0/cnbrates/storage/types"
)

// RateService is the rate lookup backing the API
type RateService interface {
	// LoadYear makes sure the yearly feed for the year is cached
	LoadYear(ctx context.Context, year int) error

	// Resolve resolves the per-unit rate of the currency for the YYYY-MM-DD date
	Resolve(ctx context.Context, date string, currency types.Currency) (*types.Quote, error)

	// Currencies returns the recognized currency set
	Currencies() []types.Currency
}

type CurrenciesResponse struct {
	Results []types.Currency `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
