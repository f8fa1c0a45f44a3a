package publishers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	evt := NewEvent("hackernews", KindNews, 3, map[string]string{"query": "go"}, []int{1, 2, 3})

	require.Len(t, evt.ID, 36)
	require.Equal(t, "hackernews", evt.Source)
	require.Equal(t, KindNews, evt.Kind)
	require.Equal(t, 3, evt.Count)
	require.WithinDuration(t, time.Now(), evt.FetchedAt, time.Second)
	require.Equal(t, map[string]string{"event_id": evt.ID, "source": "hackernews", "kind": KindNews}, evt.Attributes())
	require.NotEqual(t, evt.ID, NewEvent("hackernews", KindNews, 0, nil, nil).ID)
}

func TestHTTPPublisher(t *testing.T) {
	var (
		mu      sync.Mutex
		gotEvt  Event
		gotAuth string
		gotID   string
		gotVerb string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		_ = json.Unmarshal(body, &gotEvt)
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get("X-Event-Id")
		gotVerb = r.Method
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := PublisherConfig{ID: "hook", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{
		URL:     srv.URL + "/events",
		Headers: map[string]string{"Authorization": "Bearer t"},
	}}.normalized()

	pub, err := newHTTPPublisher(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, "hook", pub.ID())
	require.Equal(t, TypeHTTP, pub.Type())

	evt := NewEvent("quotes", KindQuotes, 10, map[string]string{"tag": "life"}, nil)
	require.NoError(t, pub.Publish(context.Background(), evt))

	mu.Lock()
	require.Equal(t, http.MethodPost, gotVerb)
	require.Equal(t, "Bearer t", gotAuth)
	require.Equal(t, evt.ID, gotID)
	require.Equal(t, evt.ID, gotEvt.ID)
	require.Equal(t, "life", gotEvt.Query["tag"])
	mu.Unlock()

	cfg.HTTP.URL = srv.URL + "/fail"
	failing, err := newHTTPPublisher(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.ErrorContains(t, failing.Publish(context.Background(), evt), "status 502")
}

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

type fakeSNS struct {
	input *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{MessageId: aws.String("n-1")}, nil
}

func TestQueuePublisher_SQSAndSNS(t *testing.T) {
	evt := NewEvent("weather", KindWeather, 7, map[string]string{"city": "Belgrade"}, nil)

	sqsAPI := &fakeSQS{}
	pub := &queuePublisher{id: "q", provider: QueueProviderAWSSQS, sender: &sqsSender{queueURL: "https://sqs/q", client: sqsAPI}, log: ensureLogger(nil)}
	require.NoError(t, pub.Publish(context.Background(), evt))
	require.Equal(t, "https://sqs/q", aws.ToString(sqsAPI.input.QueueUrl))
	require.Equal(t, KindWeather, aws.ToString(sqsAPI.input.MessageAttributes["kind"].StringValue))

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(sqsAPI.input.MessageBody)), &decoded))
	require.Equal(t, evt.ID, decoded.ID)
	require.Equal(t, 7, decoded.Count)

	sqsAPI.err = errors.New("throttled")
	require.ErrorContains(t, pub.Publish(context.Background(), evt), "aws-sqs send")

	snsAPI := &fakeSNS{}
	pub = &queuePublisher{id: "t", provider: QueueProviderAWSSNS, sender: &snsSender{topicARN: "arn:aws:sns:t", client: snsAPI}, log: ensureLogger(nil)}
	require.NoError(t, pub.Publish(context.Background(), evt))
	require.Equal(t, "arn:aws:sns:t", aws.ToString(snsAPI.input.TopicArn))
	require.Equal(t, evt.ID, aws.ToString(snsAPI.input.MessageAttributes["event_id"].StringValue))
}

// recordingPublisher counts deliveries and can be told to fail or block.
type recordingPublisher struct {
	id     string
	fail   error
	delay  time.Duration
	count  atomic.Int32
	closed atomic.Bool
}

func (p *recordingPublisher) ID() string   { return p.id }
func (p *recordingPublisher) Type() string { return "test" }
func (p *recordingPublisher) Publish(ctx context.Context, _ Event) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.count.Add(1)
	return p.fail
}
func (p *recordingPublisher) Close() error {
	p.closed.Store(true)
	return nil
}

type countingObserver struct {
	mu      sync.Mutex
	results map[string][]error
}

func (o *countingObserver) ObservePublish(publisher string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.results == nil {
		o.results = map[string][]error{}
	}
	o.results[publisher] = append(o.results[publisher], err)
}

func TestRegistry_BuildScopesKinds(t *testing.T) {
	rec := &recordingPublisher{id: "rec"}
	reg := NewRegistry(map[string]Builder{
		"test": func(context.Context, PublisherConfig, Logger) (Publisher, error) { return rec, nil },
	})

	pub, err := reg.Build(context.Background(), PublisherConfig{ID: "rec", Type: "TEST", Kinds: []string{KindNews}}, nil)
	require.NoError(t, err)
	require.Equal(t, "rec", pub.ID())
	require.True(t, pub.(*scoped).Accepts(KindNews))
	require.False(t, pub.(*scoped).Accepts(KindWeather))

	_, err = reg.Build(context.Background(), PublisherConfig{ID: "x", Type: "kafka"}, nil)
	require.ErrorContains(t, err, `no publisher registered for type "kafka"`)
}

func TestRegistry_BuildAllClosesOnFailure(t *testing.T) {
	rec := &recordingPublisher{id: "first"}
	reg := NewRegistry(map[string]Builder{
		"ok":  func(context.Context, PublisherConfig, Logger) (Publisher, error) { return rec, nil },
		"bad": func(context.Context, PublisherConfig, Logger) (Publisher, error) { return nil, errors.New("no creds") },
	})

	_, err := reg.BuildAll(context.Background(), []PublisherConfig{
		{ID: "first", Type: "ok"},
		{ID: "second", Type: "bad"},
	}, nil)
	require.ErrorContains(t, err, `build publisher "second": no creds`)
	require.True(t, rec.closed.Load())
}

func TestDispatcher_RoutesByKindAndIsBestEffort(t *testing.T) {
	newsOnly := &recordingPublisher{id: "news-only"}
	broken := &recordingPublisher{id: "broken", fail: errors.New("sink down")}
	everything := &recordingPublisher{id: "everything"}

	obs := &countingObserver{}
	d := NewDispatcher([]Publisher{
		&scoped{Publisher: newsOnly, cfg: PublisherConfig{Kinds: []string{KindNews}}},
		&scoped{Publisher: broken, cfg: PublisherConfig{}},
		everything,
	}, DispatcherOptions{Observer: obs})
	require.Equal(t, 3, d.Len())

	d.Emit(NewEvent("hackernews", KindNews, 1, nil, nil))
	d.Emit(NewEvent("weather", KindWeather, 7, nil, nil))

	require.NoError(t, d.Close(context.Background()))

	require.EqualValues(t, 1, newsOnly.count.Load())
	require.EqualValues(t, 2, broken.count.Load())
	require.EqualValues(t, 2, everything.count.Load())
	require.True(t, newsOnly.closed.Load())
	require.True(t, everything.closed.Load())

	obs.mu.Lock()
	require.Len(t, obs.results["broken"], 2)
	require.Error(t, obs.results["broken"][0])
	require.Len(t, obs.results["everything"], 2)
	require.NoError(t, obs.results["everything"][0])
	obs.mu.Unlock()

	// Events after Close are dropped.
	d.Emit(NewEvent("hackernews", KindNews, 1, nil, nil))
	require.EqualValues(t, 2, everything.count.Load())
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_EmitDoesNotBlockAndCloseHonorsDeadline(t *testing.T) {
	slow := &recordingPublisher{id: "slow", delay: time.Second}
	d := NewDispatcher([]Publisher{slow}, DispatcherOptions{Timeout: 50 * time.Millisecond})

	start := time.Now()
	d.Emit(NewEvent("quotes", KindQuotes, 1, nil, nil))
	require.Less(t, time.Since(start), 20*time.Millisecond)

	// The per-delivery timeout cuts the slow publisher short.
	require.NoError(t, d.Close(context.Background()))
	require.Zero(t, slow.count.Load())
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDispatcher_NilAndEmpty(t *testing.T) {
	var d *Dispatcher
	require.NotPanics(t, func() { d.Emit(Event{}) })
	require.NoError(t, d.Close(context.Background()))
	require.Zero(t, d.Len())

	empty := NewDispatcher(nil, DispatcherOptions{})
	empty.Emit(NewEvent("x", KindNews, 0, nil, nil))
	require.NoError(t, empty.Close(context.Background()))
}
