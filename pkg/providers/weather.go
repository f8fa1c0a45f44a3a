package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
	"github.com/Adda-Baaj/edgar-gateway/pkg/httpclient"
)

const (
	weatherProviderID = "weather"

	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"

	currentVariables = "temperature_2m,windspeed_10m,winddirection_10m,weathercode"
	dailyVariables   = "weathercode,temperature_2m_max,temperature_2m_min"
)

// WeatherConfig tunes the Open-Meteo adapter.
type WeatherConfig struct {
	GeocodingURL string
	ForecastURL  string
	DefaultCity  string
}

type geocodeResponse struct {
	Results []struct {
		ID        int64   `json:"id"`
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

// forecastResponse mirrors Open-Meteo's shape: a current block and column-oriented daily arrays.
type forecastResponse struct {
	Current *struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		WindSpeed     float64 `json:"windspeed_10m"`
		WindDirection float64 `json:"winddirection_10m"`
		WeatherCode   float64 `json:"weathercode"`
	} `json:"current"`
	Daily *struct {
		Time           []string  `json:"time"`
		WeatherCode    []float64 `json:"weathercode"`
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

// Weather resolves a city to coordinates, then fetches current conditions and a 7-day forecast.
type Weather struct {
	client HTTPClient
	cfg    WeatherConfig
	log    logger.Logger
}

// NewWeather builds the weather adapter.
func NewWeather(client HTTPClient, cfg WeatherConfig, log logger.Logger) *Weather {
	if client == nil {
		client = DefaultHTTPClient()
	}
	cfg.GeocodingURL = orDefault(cfg.GeocodingURL, DefaultGeocodingURL)
	cfg.ForecastURL = orDefault(cfg.ForecastURL, DefaultForecastURL)
	cfg.DefaultCity = orDefault(cfg.DefaultCity, domain.DefaultCity)
	return &Weather{client: client, cfg: cfg, log: logger.Ensure(log)}
}

func (w *Weather) ID() string {
	return weatherProviderID
}

// Fetch geocodes city (blank means the configured default) and returns its forecast.
// Zero geocode matches fail with KindCityNotFound before any forecast call is made.
func (w *Weather) Fetch(ctx context.Context, city string) (domain.WeatherResult, error) {
	const op = "weather.Fetch"

	city = orDefault(city, w.cfg.DefaultCity)

	loc, err := w.geocode(ctx, op, city)
	if err != nil {
		return domain.WeatherResult{}, err
	}

	w.log.InfoObj("fetching forecast", "weather_fetch_start", map[string]any{
		"provider_id": weatherProviderID,
		"city":        city,
		"latitude":    loc.Latitude,
		"longitude":   loc.Longitude,
	})

	resp, err := w.client.Do(ctx, httpclient.Request{
		URL: w.cfg.ForecastURL,
		Query: map[string]string{
			"latitude":      formatCoord(loc.Latitude),
			"longitude":     formatCoord(loc.Longitude),
			"current":       currentVariables,
			"daily":         dailyVariables,
			"timezone":      "auto",
			"forecast_days": strconv.Itoa(domain.ForecastDays),
		},
	})
	if err != nil {
		return domain.WeatherResult{}, domain.E(domain.KindWeatherUnavailable, op, "forecast request failed", err)
	}

	var raw forecastResponse
	if err := decodeJSON(resp.Body, &raw); err != nil {
		return domain.WeatherResult{}, domain.E(domain.KindMalformedUpstream, op,
			fmt.Sprintf("decode forecast: %s", httpclient.Snippet(resp.Body)), err)
	}

	current, daily, err := shapeForecast(raw)
	if err != nil {
		return domain.WeatherResult{}, domain.E(domain.KindMalformedUpstream, op, err.Error(), nil)
	}

	return domain.WeatherResult{
		City:      loc.Name,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Current:   current,
		Daily:     daily,
	}, nil
}

// geocode resolves city to the best-ranked match.
func (w *Weather) geocode(ctx context.Context, op, city string) (domain.GeoLocation, error) {
	w.log.InfoObj("geocoding city", "weather_geocode", map[string]any{
		"provider_id": weatherProviderID,
		"city":        city,
	})

	resp, err := w.client.Do(ctx, httpclient.Request{
		URL: w.cfg.GeocodingURL,
		Query: map[string]string{
			"name":     city,
			"count":    "1",
			"language": "en",
			"format":   "json",
		},
	})
	if err != nil {
		return domain.GeoLocation{}, domain.E(domain.KindWeatherUnavailable, op,
			fmt.Sprintf("geocode %q failed", city), err)
	}

	var raw geocodeResponse
	if err := decodeJSON(resp.Body, &raw); err != nil {
		return domain.GeoLocation{}, domain.E(domain.KindMalformedUpstream, op,
			fmt.Sprintf("decode geocoding response: %s", httpclient.Snippet(resp.Body)), err)
	}
	if len(raw.Results) == 0 {
		return domain.GeoLocation{}, domain.CityNotFound(op, city)
	}

	first := raw.Results[0]
	name := strings.TrimSpace(first.Name)
	if name == "" {
		name = city
	}
	return domain.GeoLocation{
		ID:        first.ID,
		Name:      name,
		Latitude:  first.Latitude,
		Longitude: first.Longitude,
		Country:   first.Country,
		Admin1:    first.Admin1,
	}, nil
}

// shapeForecast zips the daily columns into rows. Columns must all hold exactly ForecastDays entries.
func shapeForecast(raw forecastResponse) (domain.WeatherCurrent, []domain.WeatherDay, error) {
	if raw.Current == nil {
		return domain.WeatherCurrent{}, nil, fmt.Errorf("forecast has no current block")
	}
	if raw.Daily == nil {
		return domain.WeatherCurrent{}, nil, fmt.Errorf("forecast has no daily block")
	}

	d := raw.Daily
	n := len(d.Time)
	if n == 0 {
		return domain.WeatherCurrent{}, nil, fmt.Errorf("forecast daily series is empty")
	}
	if len(d.TemperatureMax) != n || len(d.TemperatureMin) != n || len(d.WeatherCode) != n {
		return domain.WeatherCurrent{}, nil, fmt.Errorf(
			"daily arrays misaligned: time=%d temperature_2m_max=%d temperature_2m_min=%d weathercode=%d",
			n, len(d.TemperatureMax), len(d.TemperatureMin), len(d.WeatherCode))
	}
	if n != domain.ForecastDays {
		return domain.WeatherCurrent{}, nil, fmt.Errorf("forecast has %d days, want %d", n, domain.ForecastDays)
	}

	days := make([]domain.WeatherDay, n)
	for i := range n {
		days[i] = domain.WeatherDay{
			Date:           d.Time[i],
			TemperatureMax: d.TemperatureMax[i],
			TemperatureMin: d.TemperatureMin[i],
			WeatherCode:    int(d.WeatherCode[i]),
		}
	}

	c := raw.Current
	current := domain.WeatherCurrent{
		Temperature:   c.Temperature,
		WindSpeed:     c.WindSpeed,
		WindDirection: c.WindDirection,
		WeatherCode:   int(c.WeatherCode),
		ObservedAt:    c.Time,
	}
	return current, days, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
