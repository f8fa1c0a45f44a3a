package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
	"github.com/Adda-Baaj/edgar-gateway/pkg/httpclient"
)

// HTTPClient is the transport every adapter issues its upstream calls through.
type HTTPClient = httpclient.Client

// NewsSource serves ranked stories.
type NewsSource interface {
	ID() string
	TopStories(ctx context.Context, filter string) (domain.NewsResult, error)
}

// QuotesSource serves scraped quote pages.
type QuotesSource interface {
	ID() string
	Fetch(ctx context.Context, tag string, page, limit int) (domain.QuotesPage, error)
}

// WeatherSource serves current conditions plus a daily forecast for a city.
type WeatherSource interface {
	ID() string
	Fetch(ctx context.Context, city string) (domain.WeatherResult, error)
}

// Config carries the per-provider settings.
type Config struct {
	News    NewsConfig
	Quotes  QuotesConfig
	Weather WeatherConfig
}

// Set holds one constructed adapter per upstream.
type Set struct {
	News    NewsSource
	Quotes  QuotesSource
	Weather WeatherSource
}

// DefaultHTTPClient returns the shared resty transport with the default timeout.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(httpclient.DefaultTimeout) }

// New wires up the known provider adapters around a single shared client.
func New(client HTTPClient, cfg Config, log logger.Logger) *Set {
	if client == nil {
		client = DefaultHTTPClient()
	}
	log = logger.Ensure(log)

	return &Set{
		News:    NewHackerNews(client, cfg.News, log),
		Quotes:  NewQuotes(client, cfg.Quotes, log),
		Weather: NewWeather(client, cfg.Weather, log),
	}
}

// IDs lists the configured provider ids in a stable order.
func (s *Set) IDs() []string {
	if s == nil {
		return nil
	}
	var ids []string
	for _, src := range []interface{ ID() string }{s.News, s.Quotes, s.Weather} {
		if src != nil {
			ids = append(ids, strings.ToLower(src.ID()))
		}
	}
	return ids
}

// Validate checks that every adapter is present.
func (s *Set) Validate() error {
	switch {
	case s == nil:
		return fmt.Errorf("provider set is nil")
	case s.News == nil:
		return fmt.Errorf("news provider is not configured")
	case s.Quotes == nil:
		return fmt.Errorf("quotes provider is not configured")
	case s.Weather == nil:
		return fmt.Errorf("weather provider is not configured")
	}
	return nil
}

// orDefault returns v, or def when v is blank.
func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
