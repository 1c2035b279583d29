package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sig-0/cnbrates/provider/cnb"
	"github.com/sig-0/cnbrates/rates"
	"github.com/sig-0/cnbrates/storage/types"
)

var (
	errInvalidYear     = errors.New("invalid year (must be 4 digits)")
	errUpstream        = errors.New("unable to reach the CNB feed")
	errUpstreamTimeout = errors.New("timed out waiting for the CNB feed")
	errInternal        = errors.New("internal error")
)

// statusClientClosedRequest is written when the client goes away mid-request
const statusClientClosedRequest = 499

// LoadYear warms the cache with the yearly feed for the year
func (s *Server) LoadYear(w http.ResponseWriter, r *http.Request) {
	yearParam := chi.URLParam(r, "year")

	year, err := parseYear(yearParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	if err = s.rates.LoadYear(r.Context(), year); err != nil {
		s.writeServiceError(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Rate resolves the per-unit rate for the date and currency
func (s *Server) Rate(w http.ResponseWriter, r *http.Request) {
	var (
		dateParam     = chi.URLParam(r, "date")
		currencyParam = chi.URLParam(r, "currency")
	)

	currency := types.Currency(strings.ToUpper(strings.TrimSpace(currencyParam)))

	quote, err := s.rates.Resolve(r.Context(), strings.TrimSpace(dateParam), currency)
	if err != nil {
		s.writeServiceError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// Currencies lists the recognized currency codes
func (s *Server) Currencies(w http.ResponseWriter, _ *http.Request) {
	resp := &CurrenciesResponse{
		Results: s.rates.Currencies(),
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps a rate service error onto an HTTP response
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rates.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, rates.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, cnb.ErrNetwork), errors.Is(err, cnb.ErrParse):
		s.logger.Warn(
			"upstream feed failure",
			"err", err,
		)

		writeError(w, http.StatusBadGateway, errUpstream)
	case errors.Is(err, context.Canceled):
		s.logger.Debug(
			"client canceled the request",
			"err", err,
		)

		w.WriteHeader(statusClientClosedRequest)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, errUpstreamTimeout)
	default:
		s.logger.Error(
			"unable to resolve exchange rate",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errInternal)
	}
}

func parseYear(v string) (int, error) {
	s := strings.TrimSpace(v)
	if len(s) != 4 {
		return 0, errInvalidYear
	}

	year, err := strconv.Atoi(s)
	if err != nil || year < 1000 {
		return 0, errInvalidYear
	}

	return year, nil
}

// writeJSON encodes the body before writing the status,
// so an unencodable value still gets a proper 500
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(&ErrorResponse{Error: errInternal.Error()}) //nolint:errcheck // Static value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_, _ = w.Write(append(body, '\n')) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := &ErrorResponse{
		Error: err.Error(),
	}

	writeJSON(w, status, resp)
}
