package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sig-0/ratehub/query"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

var (
	errUnableToUpdate      = errors.New("unable to update rates")
	errUnableToFetchRates  = errors.New("unable to fetch rates")
	errUnableToLoadHistory = errors.New("unable to load history")

	errInvalidTop   = errors.New("invalid top")
	errInvalidLimit = errors.New("invalid limit")
)

func (s *Server) TriggerUpdate(w http.ResponseWriter, r *http.Request) {
	sourceParam := strings.TrimSpace(r.URL.Query().Get("source"))

	result, err := s.facade.UpdateRates(r.Context(), sourceParam)
	if err != nil {
		s.logger.Error(
			"unable to update rates",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToUpdate)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) Rates(w http.ResponseWriter, r *http.Request) {
	var (
		currencyParam = strings.TrimSpace(r.URL.Query().Get("currency"))
		topParam      = strings.TrimSpace(r.URL.Query().Get("top"))
		baseParam     = strings.TrimSpace(r.URL.Query().Get("base"))
	)

	top, err := parseTop(topParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	if baseParam == "" {
		baseParam = "USD"
	}

	view, err := s.facade.ShowRates(r.Context(), currencyParam, top, baseParam)
	if err != nil {
		var notFoundErr *query.CurrencyNotFoundError
		if errors.As(err, &notFoundErr) {
			writeError(w, http.StatusNotFound, err)

			return
		}

		s.logger.Debug(
			"unable to fetch rates",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchRates)

		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (s *Server) RateForPair(w http.ResponseWriter, r *http.Request) {
	var (
		fromParam = chi.URLParam(r, "from")
		toParam   = chi.URLParam(r, "to")
	)

	result, err := s.facade.GetRate(r.Context(), fromParam, toParam)
	if err != nil {
		writeFacadeError(w, s, err)

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) HistoryForPair(w http.ResponseWriter, r *http.Request) {
	var (
		fromParam  = chi.URLParam(r, "from")
		toParam    = chi.URLParam(r, "to")
		limitParam = strings.TrimSpace(r.URL.Query().Get("limit"))
	)

	limit, err := parseHistoryLimit(limitParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	entries, err := s.facade.PairHistory(r.Context(), fromParam, toParam, limit)
	if err != nil {
		var notFoundErr *query.CurrencyNotFoundError
		if errors.As(err, &notFoundErr) {
			writeError(w, http.StatusNotFound, err)

			return
		}

		s.logger.Debug(
			"unable to load history",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToLoadHistory)

		return
	}

	resp := &HistoryResponse{
		Results: entries,
		Total:   len(entries),
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) Freshness(w http.ResponseWriter, r *http.Request) {
	fresh, message := s.facade.Freshness(r.Context())

	resp := &FreshnessResponse{
		Fresh:   fresh,
		Message: message,
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeFacadeError maps facade lookup errors onto HTTP status codes
func writeFacadeError(w http.ResponseWriter, s *Server, err error) {
	var notFoundErr *query.CurrencyNotFoundError

	switch {
	case errors.As(err, &notFoundErr):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, query.ErrRateUnavailable):
		writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Debug(
			"unable to fetch rate",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchRates)
	}
}

func parseTop(topRaw string) (int, error) {
	if topRaw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(topRaw)
	if err != nil || n < 0 {
		return 0, errInvalidTop
	}

	return n, nil
}

func parseHistoryLimit(limitRaw string) (int, error) {
	limit := defaultHistoryLimit

	if limitRaw != "" {
		n, err := strconv.Atoi(limitRaw)
		if err != nil || n < 0 {
			return 0, errInvalidLimit
		}

		limit = n
	}

	if limit == 0 {
		limit = defaultHistoryLimit
	}

	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	return limit, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := &ErrorResponse{
		Error: err.Error(),
	}

	writeJSON(w, status, resp)
}
