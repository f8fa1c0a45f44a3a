package domain

import (
	"errors"
	"fmt"
)

// Kind classifies adapter failures so the boundary can map them to distinct responses.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindUpstreamEmpty
	KindScrapeFailure
	KindCityNotFound
	KindMalformedUpstream
	KindWeatherUnavailable
	KindAdapterFailure
	KindInvalidArgument
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindTransport:          "transport_error",
	KindUpstreamEmpty:      "upstream_empty",
	KindScrapeFailure:      "scrape_failure",
	KindCityNotFound:       "city_not_found",
	KindMalformedUpstream:  "malformed_upstream_data",
	KindWeatherUnavailable: "weather_unavailable",
	KindAdapterFailure:     "adapter_failure",
	KindInvalidArgument:    "invalid_argument",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the typed failure returned by every adapter operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so sentinel comparisons like
// errors.Is(err, &Error{Kind: KindCityNotFound}) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// E builds an *Error.
func E(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the outermost kind found in err's chain.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// CityNotFound reports a geocode lookup with zero matches.
func CityNotFound(op, city string) *Error {
	return &Error{Kind: KindCityNotFound, Op: op, Msg: fmt.Sprintf("city not found: %s", city)}
}
