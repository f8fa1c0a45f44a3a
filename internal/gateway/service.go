// Package gateway composes the source adapters behind one service used by the HTTP server and the CLI.
package gateway

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
	"github.com/Adda-Baaj/edgar-gateway/pkg/httpclient"
	"github.com/Adda-Baaj/edgar-gateway/pkg/providers"
	"github.com/Adda-Baaj/edgar-gateway/pkg/publishers"
)

// Emitter receives an event after each successful aggregation. publishers.Dispatcher satisfies it.
type Emitter interface {
	Emit(evt publishers.Event)
}

// Service runs one adapter call per operation. It holds no state between calls.
type Service struct {
	sources *providers.Set
	emitter Emitter
	log     logger.Logger
}

// New validates the provider set. A nil emitter disables events.
func New(sources *providers.Set, emitter Emitter, log logger.Logger) (*Service, error) {
	if err := sources.Validate(); err != nil {
		return nil, err
	}
	return &Service{sources: sources, emitter: emitter, log: logger.Ensure(log)}, nil
}

// News returns the ranked top stories, optionally filtered by title.
func (s *Service) News(ctx context.Context, query string) (domain.NewsResult, error) {
	query = strings.TrimSpace(query)
	start := time.Now()

	res, err := s.sources.News.TopStories(ctx, query)
	if err != nil {
		err = classify("gateway.News", err)
		s.logFailure(s.sources.News.ID(), err, start)
		return domain.NewsResult{}, err
	}

	s.emit(s.sources.News.ID(), publishers.KindNews, res.Total, compactQuery(map[string]string{"query": query}), res, start)
	return res, nil
}

// Quotes returns one scraped page.
func (s *Service) Quotes(ctx context.Context, tag string, page, limit int) (domain.QuotesPage, error) {
	tag = strings.TrimSpace(tag)
	start := time.Now()

	res, err := s.sources.Quotes.Fetch(ctx, tag, page, limit)
	if err != nil {
		err = classify("gateway.Quotes", err)
		s.logFailure(s.sources.Quotes.ID(), err, start)
		return domain.QuotesPage{}, err
	}

	s.emit(s.sources.Quotes.ID(), publishers.KindQuotes, res.Total, compactQuery(map[string]string{
		"tag":   tag,
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(limit),
	}), res, start)
	return res, nil
}

// Weather returns current conditions and the daily forecast for city.
func (s *Service) Weather(ctx context.Context, city string) (domain.WeatherResult, error) {
	city = strings.TrimSpace(city)
	start := time.Now()

	res, err := s.sources.Weather.Fetch(ctx, city)
	if err != nil {
		err = classify("gateway.Weather", err)
		s.logFailure(s.sources.Weather.ID(), err, start)
		return domain.WeatherResult{}, err
	}

	s.emit(s.sources.Weather.ID(), publishers.KindWeather, len(res.Daily), compactQuery(map[string]string{"city": res.City}), res, start)
	return res, nil
}

func (s *Service) emit(source, kind string, count int, query map[string]string, payload any, start time.Time) {
	s.log.InfoObj("aggregation completed", "aggregation_done", map[string]any{
		"provider_id": source,
		"kind":        kind,
		"count":       count,
		"took_ms":     time.Since(start).Milliseconds(),
	})
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(publishers.NewEvent(source, kind, count, query, payload))
}

func (s *Service) logFailure(source string, err error, start time.Time) {
	s.log.WarnObj("aggregation failed", "aggregation_failed", map[string]any{
		"provider_id": source,
		"kind":        domain.KindOf(err).String(),
		"took_ms":     time.Since(start).Milliseconds(),
		"error":       err,
	})
}

// classify keeps typed failures as they are. A bare transport error becomes KindTransport
// and anything else KindAdapterFailure, so every failure reaching the boundary has a kind.
func classify(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	var he *httpclient.Error
	if errors.As(err, &he) {
		return domain.E(domain.KindTransport, op, "upstream call failed", err)
	}
	return domain.E(domain.KindAdapterFailure, op, "adapter failed", err)
}

// compactQuery drops blank values so events only carry the parameters that were set.
func compactQuery(q map[string]string) map[string]string {
	out := lo.OmitBy(q, func(_ string, v string) bool { return v == "" })
	if len(out) == 0 {
		return nil
	}
	return out
}
