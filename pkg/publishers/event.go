package publishers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
)

// Event kinds, one per aggregation.
const (
	KindNews    = "news"
	KindQuotes  = "quotes"
	KindWeather = "weather"
)

// Logger is the logging surface publishers write to.
type Logger = logger.Logger

// Event describes one successful aggregation.
type Event struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Kind      string            `json:"kind"`
	Count     int               `json:"count"`
	Query     map[string]string `json:"query,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
	Payload   any               `json:"payload,omitempty"`
}

// NewEvent stamps a fresh id and the current UTC time.
func NewEvent(source, kind string, count int, query map[string]string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Source:    source,
		Kind:      kind,
		Count:     count,
		Query:     query,
		FetchedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// Attributes are the routing headers attached to queue messages.
func (e Event) Attributes() map[string]string {
	return map[string]string{
		"event_id": e.ID,
		"source":   e.Source,
		"kind":     e.Kind,
	}
}

// Publisher delivers events to one sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

func ensureLogger(log Logger) Logger {
	return logger.Ensure(log)
}
