package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
	"github.com/Adda-Baaj/edgar-gateway/pkg/httpclient"
	"github.com/Adda-Baaj/edgar-gateway/pkg/providers"
	"github.com/Adda-Baaj/edgar-gateway/pkg/publishers"
)

type stubNews struct {
	res       domain.NewsResult
	err       error
	gotFilter string
}

func (s *stubNews) ID() string { return "hackernews" }
func (s *stubNews) TopStories(_ context.Context, filter string) (domain.NewsResult, error) {
	s.gotFilter = filter
	return s.res, s.err
}

type stubQuotes struct {
	res domain.QuotesPage
	err error
}

func (s *stubQuotes) ID() string { return "quotes" }
func (s *stubQuotes) Fetch(_ context.Context, _ string, page, limit int) (domain.QuotesPage, error) {
	if s.err != nil {
		return domain.QuotesPage{}, s.err
	}
	res := s.res
	res.Page, res.Limit = page, limit
	return res, nil
}

type stubWeather struct {
	res     domain.WeatherResult
	err     error
	gotCity string
}

func (s *stubWeather) ID() string { return "weather" }
func (s *stubWeather) Fetch(_ context.Context, city string) (domain.WeatherResult, error) {
	s.gotCity = city
	return s.res, s.err
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []publishers.Event
}

func (r *recordingEmitter) Emit(evt publishers.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func newService(t *testing.T, set *providers.Set, em Emitter) (*Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	svc, err := New(set, em, logger.FromZap(zap.New(core)))
	require.NoError(t, err)
	return svc, logs
}

func TestNew_RequiresEverySource(t *testing.T) {
	_, err := New(&providers.Set{News: &stubNews{}, Quotes: &stubQuotes{}}, nil, nil)
	require.ErrorContains(t, err, "weather provider is not configured")

	_, err = New(nil, nil, nil)
	require.Error(t, err)
}

func TestService_NewsEmitsEvent(t *testing.T) {
	news := &stubNews{res: domain.NewsResult{
		Items: []domain.NewsItem{{ID: 1, Title: "Go"}, {ID: 2, Title: "Gopher"}},
		Total: 2,
	}}
	em := &recordingEmitter{}
	svc, logs := newService(t, &providers.Set{News: news, Quotes: &stubQuotes{}, Weather: &stubWeather{}}, em)

	res, err := svc.News(context.Background(), "  go ")
	require.NoError(t, err)
	require.Equal(t, 2, res.Total)
	require.Equal(t, "go", news.gotFilter)

	require.Len(t, em.events, 1)
	evt := em.events[0]
	require.Equal(t, "hackernews", evt.Source)
	require.Equal(t, publishers.KindNews, evt.Kind)
	require.Equal(t, 2, evt.Count)
	require.Equal(t, map[string]string{"query": "go"}, evt.Query)
	require.Equal(t, res, evt.Payload)

	require.Equal(t, 1, logs.FilterField(zap.String("event", "aggregation_done")).Len())
}

func TestService_QuotesAndWeather(t *testing.T) {
	quotes := &stubQuotes{res: domain.QuotesPage{Quotes: []domain.Quote{{Text: "x"}}, Total: 1}}
	weather := &stubWeather{res: domain.WeatherResult{City: "Belgrade", Daily: make([]domain.WeatherDay, 7)}}
	em := &recordingEmitter{}
	svc, _ := newService(t, &providers.Set{News: &stubNews{}, Quotes: quotes, Weather: weather}, em)

	page, err := svc.Quotes(context.Background(), "", 2, 5)
	require.NoError(t, err)
	require.Equal(t, 2, page.Page)
	require.Equal(t, 5, page.Limit)

	_, err = svc.Weather(context.Background(), " Belgrade ")
	require.NoError(t, err)
	require.Equal(t, "Belgrade", weather.gotCity)

	require.Len(t, em.events, 2)
	require.Equal(t, map[string]string{"page": "2", "limit": "5"}, em.events[0].Query)
	require.Equal(t, publishers.KindWeather, em.events[1].Kind)
	require.Equal(t, 7, em.events[1].Count)
}

func TestService_FailuresPropagateWithoutEvents(t *testing.T) {
	weather := &stubWeather{err: domain.CityNotFound("weather.Fetch", "Atlantis")}
	em := &recordingEmitter{}
	svc, logs := newService(t, &providers.Set{News: &stubNews{}, Quotes: &stubQuotes{}, Weather: weather}, em)

	_, err := svc.Weather(context.Background(), "Atlantis")
	require.Equal(t, domain.KindCityNotFound, domain.KindOf(err))
	require.Empty(t, em.events)

	failed := logs.FilterField(zap.String("event", "aggregation_failed")).All()
	require.Len(t, failed, 1)
	require.Equal(t, "city_not_found", failed[0].ContextMap()["kind"])
}

func TestService_NilEmitter(t *testing.T) {
	svc, _ := newService(t, &providers.Set{News: &stubNews{res: domain.NewsResult{Total: 0}}, Quotes: &stubQuotes{}, Weather: &stubWeather{}}, nil)
	_, err := svc.News(context.Background(), "")
	require.NoError(t, err)
}

func TestService_UntypedFailuresGetAKind(t *testing.T) {
	upstream := &httpclient.Error{Method: http.MethodGet, URL: "https://quotes.test", StatusCode: http.StatusBadGateway, Attempts: 2}
	typed := domain.E(domain.KindScrapeFailure, "quotes.Fetch", "fetch quotes page", upstream)

	cases := []struct {
		name string
		err  error
		want domain.Kind
	}{
		{"plain error", errors.New("nil map write"), domain.KindAdapterFailure},
		{"bare transport error", upstream, domain.KindTransport},
		{"typed error kept", typed, domain.KindScrapeFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, logs := newService(t, &providers.Set{News: &stubNews{}, Quotes: &stubQuotes{err: tc.err}, Weather: &stubWeather{}}, nil)

			_, err := svc.Quotes(context.Background(), "", 1, 10)
			require.Equal(t, tc.want, domain.KindOf(err))
			require.ErrorIs(t, err, tc.err)
			require.Equal(t, httpclient.StatusOf(tc.err), httpclient.StatusOf(err))

			failed := logs.FilterField(zap.String("event", "aggregation_failed")).All()
			require.Len(t, failed, 1)
			require.Equal(t, tc.want.String(), failed[0].ContextMap()["kind"])
		})
	}
}
