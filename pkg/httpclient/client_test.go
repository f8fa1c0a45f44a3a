package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveAttempt(_, _, outcome string, _ time.Duration) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) all() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.outcomes...)
}

func TestDo_RetriesOnceAfterTimeout(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewRestyClient(time.Second, WithObserver(obs))

	resp, err := c.Do(context.Background(), Request{URL: srv.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(resp.Body))
	require.EqualValues(t, 2, hits.Load())
	require.Equal(t, []string{OutcomeRetry, OutcomeSuccess}, obs.all())
}

func TestDo_TwoTransientFailuresRaiseError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewRestyClient(time.Second)

	_, err := c.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var he *Error
	require.True(t, errors.As(err, &he))
	require.Equal(t, http.StatusBadGateway, he.StatusCode)
	require.Equal(t, 2, he.Attempts)
	require.Equal(t, "upstream down", he.Body)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
	require.EqualValues(t, 2, hits.Load())
}

func TestDo_NotFoundIsNeverRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewRestyClient(time.Second)

	_, err := c.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, StatusOf(err))
	require.EqualValues(t, 1, hits.Load())
}

func TestDo_ConnectionRefusedIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	obs := &recordingObserver{}
	c := NewRestyClient(time.Second, WithObserver(obs))

	_, err := c.Get(context.Background(), addr, nil)
	require.Error(t, err)

	var he *Error
	require.True(t, errors.As(err, &he))
	require.Equal(t, 1, he.Attempts)
	require.False(t, he.Transient())
	require.Equal(t, []string{OutcomeFailure}, obs.all())
}

func TestDo_CancelledCallerIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewRestyClient(time.Second)
	_, err := c.Get(ctx, srv.URL, nil)
	require.Error(t, err)
	require.EqualValues(t, 1, hits.Load())
}

func TestDo_SendsIdentifyingHeaders(t *testing.T) {
	var (
		mu                         sync.Mutex
		gotUA, gotAccept, gotQuery string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotQuery = r.URL.Query().Get("name")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewRestyClient(time.Second)

	_, err := c.Do(context.Background(), Request{URL: srv.URL, Query: map[string]string{"name": "Novi Sad"}})
	require.NoError(t, err)
	mu.Lock()
	require.Equal(t, DefaultUserAgent, gotUA)
	require.Equal(t, DefaultAccept, gotAccept)
	require.Equal(t, "Novi Sad", gotQuery)
	mu.Unlock()

	_, err = c.Do(context.Background(), Request{URL: srv.URL, Headers: map[string]string{"Accept": "text/html"}})
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "text/html", gotAccept)
}

func TestDo_EmptyURL(t *testing.T) {
	c := NewRestyClient(0)
	require.Equal(t, DefaultTimeout, c.Timeout())

	_, err := c.Do(context.Background(), Request{})
	require.Error(t, err)
}

func TestDo_BodyLimitFailsWithoutRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	c := NewRestyClient(time.Second)

	_, err := c.Do(context.Background(), Request{URL: srv.URL, MaxBodyBytes: 1024})
	require.ErrorIs(t, err, ErrBodyTooLarge)
	var he *Error
	require.True(t, errors.As(err, &he))
	require.False(t, he.Transient())
	require.Equal(t, 1, he.Attempts)
	require.EqualValues(t, 1, hits.Load())

	resp, err := c.Do(context.Background(), Request{URL: srv.URL, MaxBodyBytes: 8192})
	require.NoError(t, err)
	require.Len(t, resp.Body, 4096)
}

func TestSnippet(t *testing.T) {
	require.Equal(t, "<empty>", Snippet([]byte("  \n")))
	require.Equal(t, "upstream down", Snippet([]byte(" upstream down \n")))

	long := Snippet([]byte(strings.Repeat("a", 600)))
	require.Len(t, long, 515)
	require.True(t, strings.HasSuffix(long, "..."))
}
