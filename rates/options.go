package rates

import (
	"log/slog"

	"github.com/sig-0/cnbrates/metrics"
	"github.com/sig-0/cnbrates/storage"
	"github.com/sig-0/cnbrates/storage/types"
)

type Option func(s *Service)

// WithLogger specifies the logger for the service
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithStorage specifies the rate table for the service.
// Defaults to a fresh in-memory table
func WithStorage(st storage.Storage) Option {
	return func(s *Service) {
		s.storage = st
	}
}

// WithMetrics specifies the metrics the service reports to
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCurrencies overrides the recognized currency set.
// Defaults to the full CNB fixing set
func WithCurrencies(list []types.Currency) Option {
	return func(s *Service) {
		s.currencies = list
	}
}
