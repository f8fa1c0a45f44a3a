package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
	"github.com/Adda-Baaj/edgar-gateway/pkg/httpclient"
)

const (
	quotesProviderID = "quotes"

	DefaultQuotesBaseURL = "https://quotes.toscrape.com"

	maxHTMLBodyBytes = 1 << 20 // 1 MiB
)

// quoteGlyphs are stripped once from each end of a quote's text.
var quoteGlyphs = []string{`"`, "“", "”", "«", "»"}

// QuotesConfig tunes the quotes scraper.
type QuotesConfig struct {
	BaseURL string
}

// Quotes scrapes one listing page per call.
type Quotes struct {
	client HTTPClient
	cfg    QuotesConfig
	log    logger.Logger
}

// NewQuotes builds the quotes adapter.
func NewQuotes(client HTTPClient, cfg QuotesConfig, log logger.Logger) *Quotes {
	if client == nil {
		client = DefaultHTTPClient()
	}
	cfg.BaseURL = orDefault(cfg.BaseURL, DefaultQuotesBaseURL)
	return &Quotes{client: client, cfg: cfg, log: logger.Ensure(log)}
}

func (q *Quotes) ID() string {
	return quotesProviderID
}

// Fetch scrapes the page for tag (optional) and page, extracting at most limit quotes.
// Total is the number of quotes extracted from this page; the site has no global count.
func (q *Quotes) Fetch(ctx context.Context, tag string, page, limit int) (domain.QuotesPage, error) {
	const op = "quotes.Fetch"

	if page < domain.MinPage {
		return domain.QuotesPage{}, domain.E(domain.KindInvalidArgument, op,
			fmt.Sprintf("page must be >= %d, got %d", domain.MinPage, page), nil)
	}
	if limit < domain.MinLimit || limit > domain.MaxLimit {
		return domain.QuotesPage{}, domain.E(domain.KindInvalidArgument, op,
			fmt.Sprintf("limit must be within [%d,%d], got %d", domain.MinLimit, domain.MaxLimit, limit), nil)
	}

	pageURL := q.pageURL(tag, page)
	q.log.InfoObj("scraping quotes", "quotes_fetch_start", map[string]any{
		"provider_id": quotesProviderID,
		"url":         pageURL,
		"limit":       limit,
	})

	resp, err := q.client.Do(ctx, httpclient.Request{
		URL:          pageURL,
		Headers:      map[string]string{"Accept": "text/html,application/xhtml+xml"},
		MaxBodyBytes: maxHTMLBodyBytes,
	})
	if err != nil {
		return domain.QuotesPage{}, domain.E(domain.KindScrapeFailure, op, "fetch quotes page", err)
	}

	quotes, hasMore, err := parseQuotesPage(resp.Body, limit)
	if err != nil {
		return domain.QuotesPage{}, domain.E(domain.KindScrapeFailure, op, "parse quotes page", err)
	}

	return domain.QuotesPage{
		Quotes:  quotes,
		Total:   len(quotes),
		Page:    page,
		Limit:   limit,
		HasMore: hasMore,
	}, nil
}

// pageURL builds {base}[/tag/{tag}][/page/{n}]/.
func (q *Quotes) pageURL(tag string, page int) string {
	var segments []string
	if tag = strings.TrimSpace(tag); tag != "" {
		segments = append(segments, "tag", url.PathEscape(tag))
	}
	if page > 1 {
		segments = append(segments, "page", strconv.Itoa(page))
	}
	if len(segments) == 0 {
		return strings.TrimRight(q.cfg.BaseURL, "/")
	}
	return joinURL(q.cfg.BaseURL, segments...) + "/"
}

// parseQuotesPage extracts up to limit quote blocks and reports whether a next-page link exists.
func parseQuotesPage(body []byte, limit int) ([]domain.Quote, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("parse html: %w", err)
	}

	quotes := make([]domain.Quote, 0, limit)
	doc.Find(".quote").EachWithBreak(func(_ int, block *goquery.Selection) bool {
		if len(quotes) >= limit {
			return false
		}

		tags := make([]string, 0)
		block.Find(".tags .tag").Each(func(_ int, t *goquery.Selection) {
			if label := strings.TrimSpace(t.Text()); label != "" {
				tags = append(tags, label)
			}
		})

		quotes = append(quotes, domain.Quote{
			Text:   stripQuoteGlyphs(block.Find(".text").First().Text()),
			Author: strings.TrimSpace(block.Find(".author").First().Text()),
			Tags:   tags,
		})
		return len(quotes) < limit
	})

	hasMore := doc.Find(".pager .next").Length() > 0

	return quotes, hasMore, nil
}

// stripQuoteGlyphs trims whitespace and one quotation glyph from each end.
func stripQuoteGlyphs(s string) string {
	s = strings.TrimSpace(s)
	for _, g := range quoteGlyphs {
		if strings.HasPrefix(s, g) {
			s = strings.TrimPrefix(s, g)
			break
		}
	}
	for _, g := range quoteGlyphs {
		if strings.HasSuffix(s, g) {
			s = strings.TrimSuffix(s, g)
			break
		}
	}
	return strings.TrimSpace(s)
}
