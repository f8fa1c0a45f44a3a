package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
	"github.com/Adda-Baaj/edgar-gateway/pkg/httpclient"
)

// quotesFixture renders n quote blocks tagged tag, with a pager when next is set.
func quotesFixture(n int, tag string, next bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="container"><div class="col-md-8">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, `
<div class="quote" itemscope itemtype="http://schema.org/CreativeWork">
  <span class="text" itemprop="text">“Quote number %d.”</span>
  <span>by <small class="author" itemprop="author">Author %d</small></span>
  <div class="tags">Tags:
    <a class="tag" href="/tag/%s/page/1/">%s</a>
    <a class="tag" href="/tag/extra/page/1/">extra</a>
  </div>
</div>`, i, i, tag, tag)
	}
	b.WriteString(`<nav><ul class="pager">`)
	if next {
		b.WriteString(`<li class="next"><a href="/tag/` + tag + `/page/2/">Next <span aria-hidden="true">&rarr;</span></a></li>`)
	}
	b.WriteString(`</ul></nav></div></div></body></html>`)
	return b.String()
}

// quotesServer serves html for every path and records the requested paths.
type quotesServer struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newQuotesServer(t *testing.T, html string) *quotesServer {
	t.Helper()
	qs := &quotesServer{}
	qs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		qs.mu.Lock()
		qs.paths = append(qs.paths, r.URL.Path)
		qs.mu.Unlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(qs.Close)
	return qs
}

func (qs *quotesServer) lastPath() string {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if len(qs.paths) == 0 {
		return ""
	}
	return qs.paths[len(qs.paths)-1]
}

func TestQuotesFetch_LimitAndNextAffordance(t *testing.T) {
	srv := newQuotesServer(t, quotesFixture(12, "life", true))
	q := NewQuotes(httpclient.NewRestyClient(time.Second), QuotesConfig{BaseURL: srv.URL}, nil)

	page, err := q.Fetch(context.Background(), "life", 1, 10)
	require.NoError(t, err)

	require.Equal(t, "/tag/life/", srv.lastPath())
	require.Len(t, page.Quotes, 10)
	require.Equal(t, 10, page.Total)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 10, page.Limit)
	require.True(t, page.HasMore)

	for i, quote := range page.Quotes {
		require.Equal(t, fmt.Sprintf("Quote number %d.", i+1), quote.Text)
		require.Equal(t, fmt.Sprintf("Author %d", i+1), quote.Author)
		require.Contains(t, quote.Tags, "life")
	}
}

func TestQuotesFetch_NextLinkWithoutMoreContent(t *testing.T) {
	// The page advertises a next link even though it is short; hasMore follows the link.
	srv := newQuotesServer(t, quotesFixture(3, "love", true))
	q := NewQuotes(httpclient.NewRestyClient(time.Second), QuotesConfig{BaseURL: srv.URL}, nil)

	page, err := q.Fetch(context.Background(), "love", 4, 20)
	require.NoError(t, err)
	require.Equal(t, "/tag/love/page/4/", srv.lastPath())
	require.Len(t, page.Quotes, 3)
	require.True(t, page.HasMore)
}

func TestQuotesFetch_LastPageAndEmptyPage(t *testing.T) {
	srv := newQuotesServer(t, quotesFixture(2, "humor", false))
	q := NewQuotes(httpclient.NewRestyClient(time.Second), QuotesConfig{BaseURL: srv.URL + "/"}, nil)

	page, err := q.Fetch(context.Background(), "", 3, 20)
	require.NoError(t, err)
	require.Equal(t, "/page/3/", srv.lastPath())
	require.Len(t, page.Quotes, 2)
	require.False(t, page.HasMore)

	empty := newQuotesServer(t, quotesFixture(0, "x", false))
	q = NewQuotes(httpclient.NewRestyClient(time.Second), QuotesConfig{BaseURL: empty.URL}, nil)

	page, err = q.Fetch(context.Background(), "nothing-here", 1, 5)
	require.NoError(t, err)
	require.NotNil(t, page.Quotes)
	require.Empty(t, page.Quotes)
	require.Zero(t, page.Total)
	require.False(t, page.HasMore)
}

func TestQuotesFetch_InvalidArguments(t *testing.T) {
	fc := newFakeClient()
	q := NewQuotes(fc, QuotesConfig{BaseURL: "https://quotes.test"}, nil)

	cases := []struct {
		name        string
		page, limit int
	}{
		{"page zero", 0, 10},
		{"limit zero", 1, 0},
		{"limit above max", 1, domain.MaxLimit + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := q.Fetch(context.Background(), "", tc.page, tc.limit)
			require.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
		})
	}
	require.Empty(t, fc.calls)
}

func TestQuotesFetch_TransportFailureIsScrapeFailure(t *testing.T) {
	fc := newFakeClient()
	fc.errs["https://quotes.test/tag/life/"] = errors.New("dial tcp: connection refused")

	q := NewQuotes(fc, QuotesConfig{BaseURL: "https://quotes.test"}, nil)

	_, err := q.Fetch(context.Background(), "life", 1, 10)
	require.Error(t, err)
	require.Equal(t, domain.KindScrapeFailure, domain.KindOf(err))
}

func TestQuotesPageURL(t *testing.T) {
	q := NewQuotes(newFakeClient(), QuotesConfig{BaseURL: "https://quotes.test/"}, nil)

	require.Equal(t, "https://quotes.test", q.pageURL("", 1))
	require.Equal(t, "https://quotes.test/page/2/", q.pageURL("  ", 2))
	require.Equal(t, "https://quotes.test/tag/life/", q.pageURL("life", 1))
	require.Equal(t, "https://quotes.test/tag/life/page/3/", q.pageURL("life", 3))
	require.Equal(t, "https://quotes.test/tag/best%20friends/", q.pageURL("best friends", 1))
}

func TestStripQuoteGlyphs(t *testing.T) {
	cases := map[string]string{
		"“The world as we have created it.”": "The world as we have created it.",
		`"plain ascii"`:                      "plain ascii",
		"  «guillemets»  ":                   "guillemets",
		"no glyphs":                          "no glyphs",
		"“":                                  "",
		"“inner “nested” kept”":              "inner “nested” kept",
	}
	for in, want := range cases {
		require.Equal(t, want, stripQuoteGlyphs(in), "input %q", in)
	}
}

func TestQuotesFetch_OversizedPageIsScrapeFailure(t *testing.T) {
	padding := strings.Repeat("<p>filler</p>", maxHTMLBodyBytes/len("<p>filler</p>")+1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(padding + quotesFixture(3, "life", true)))
	}))
	defer srv.Close()

	q := NewQuotes(httpclient.NewRestyClient(time.Second), QuotesConfig{BaseURL: srv.URL}, nil)

	_, err := q.Fetch(context.Background(), "life", 1, 10)
	require.Equal(t, domain.KindScrapeFailure, domain.KindOf(err))
	require.ErrorIs(t, err, httpclient.ErrBodyTooLarge)
}
