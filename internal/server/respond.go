package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
	"github.com/Adda-Baaj/edgar-gateway/pkg/httpclient"
)

// successEnvelope wraps every successful payload.
type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// failureEnvelope is the single error shape the dashboard understands.
type failureEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// FieldError points at one invalid query parameter.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type upstreamDetails struct {
	Kind   string `json:"kind"`
	Status int    `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, successEnvelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, failureEnvelope{Message: message, Details: details})
}

func writeValidation(w http.ResponseWriter, errs []FieldError) {
	writeFailure(w, http.StatusBadRequest, "Validation error", errs)
}

// writeError maps an adapter failure onto a status and a safe message.
func writeError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)

	fields := map[string]any{
		"method":     r.Method,
		"path":       r.URL.Path,
		"kind":       kind.String(),
		"status":     status,
		"request_id": RequestIDFrom(r.Context()),
		"error":      err,
	}
	if status >= http.StatusInternalServerError {
		log.ErrorObj("request failed", "request_failed", fields)
	} else {
		log.InfoObj("request rejected", "request_rejected", fields)
	}

	var details any
	if up := httpclient.StatusOf(err); up != 0 || status >= http.StatusBadGateway {
		details = upstreamDetails{Kind: kind.String(), Status: up}
	}
	writeFailure(w, status, publicMessage(kind, err), details)
}

// StatusFor is the error-kind to HTTP status table.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindInvalidArgument:
		return http.StatusBadRequest
	case domain.KindCityNotFound, domain.KindUpstreamEmpty:
		return http.StatusNotFound
	case domain.KindMalformedUpstream, domain.KindScrapeFailure:
		return http.StatusBadGateway
	case domain.KindTransport, domain.KindWeatherUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(kind domain.Kind, err error) string {
	var de *domain.Error
	hasMsg := errors.As(err, &de) && de.Msg != ""

	switch kind {
	case domain.KindCityNotFound, domain.KindInvalidArgument:
		if hasMsg {
			return de.Msg
		}
		return kind.String()
	case domain.KindUpstreamEmpty:
		return "No stories found"
	case domain.KindTransport:
		return "External API error: news service unreachable"
	case domain.KindMalformedUpstream:
		return "External API error: malformed upstream response"
	case domain.KindScrapeFailure:
		return "Failed to scrape quotes"
	case domain.KindWeatherUnavailable:
		return "Weather service unavailable"
	default:
		return "Internal server error"
	}
}
