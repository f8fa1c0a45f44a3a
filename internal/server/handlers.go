package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
)

// Service is what the HTTP layer needs from the gateway.
type Service interface {
	News(ctx context.Context, query string) (domain.NewsResult, error)
	Quotes(ctx context.Context, tag string, page, limit int) (domain.QuotesPage, error)
	Weather(ctx context.Context, city string) (domain.WeatherResult, error)
}

type handlers struct {
	svc       Service
	log       logger.Logger
	startedAt time.Time
	version   string
	env       string
}

type healthResponse struct {
	OK          bool    `json:"ok"`
	Uptime      float64 `json:"uptime"`
	Version     string  `json:"version,omitempty"`
	Environment string  `json:"environment,omitempty"`
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:          true,
		Uptime:      time.Since(h.startedAt).Seconds(),
		Version:     h.version,
		Environment: h.env,
	})
}

func (h *handlers) news(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	res, err := h.svc.News(r.Context(), query)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeData(w, res)
}

func (h *handlers) quotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var errs []FieldError
	page := intParam(q, "page", domain.MinPage, domain.MinPage, 0, &errs)
	limit := intParam(q, "limit", domain.DefaultLimit, domain.MinLimit, domain.MaxLimit, &errs)
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	res, err := h.svc.Quotes(r.Context(), q.Get("tag"), page, limit)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeData(w, res)
}

func (h *handlers) weather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	city := ""
	if q.Has("city") {
		city = strings.TrimSpace(q.Get("city"))
		if city == "" {
			writeValidation(w, []FieldError{{Path: "city", Message: "String must contain at least 1 character(s)"}})
			return
		}
	}

	res, err := h.svc.Weather(r.Context(), city)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeData(w, res)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, fmt.Sprintf("Not Found - %s %s", r.Method, r.URL.RequestURI()), nil)
}

// intParam reads an optional integer within [minV, maxV]; maxV <= 0 means unbounded.
// Problems are appended to errs and def is returned.
func intParam(q url.Values, name string, def, minV, maxV int, errs *[]FieldError) int {
	if !q.Has(name) {
		return def
	}
	raw := strings.TrimSpace(q.Get(name))
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		*errs = append(*errs, FieldError{Path: name, Message: fmt.Sprintf("Expected integer, received %q", raw)})
	case n < minV:
		*errs = append(*errs, FieldError{Path: name, Message: fmt.Sprintf("Number must be greater than or equal to %d", minV)})
	case maxV > 0 && n > maxV:
		*errs = append(*errs, FieldError{Path: name, Message: fmt.Sprintf("Number must be less than or equal to %d", maxV)})
	default:
		return n
	}
	return def
}
