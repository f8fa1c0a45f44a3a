package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
	"github.com/Adda-Baaj/edgar-gateway/internal/fanout"
	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
	"github.com/Adda-Baaj/edgar-gateway/pkg/httpclient"
)

const (
	hackerNewsProviderID = "hackernews"

	DefaultHackerNewsBaseURL = "https://hacker-news.firebaseio.com/v0"
)

var (
	errItemMissing   = errors.New("item body is null")
	errItemMalformed = errors.New("item payload has no id")
)

// NewsConfig tunes the Hacker News adapter.
type NewsConfig struct {
	BaseURL string
	// MaxConcurrency caps the detail fan-out.
	MaxConcurrency int
	// MaxStories truncates the ranked index before fan-out; 0 keeps all of it.
	MaxStories int
	// RequestDelay spaces out detail calls when > 0.
	RequestDelay time.Duration
}

// hnItem is the item payload as served by the Firebase API.
type hnItem struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Descendants int    `json:"descendants"`
}

// HackerNews fetches the top stories index and fans out one detail call per id.
type HackerNews struct {
	client HTTPClient
	cfg    NewsConfig
	log    logger.Logger
}

// NewHackerNews builds the news adapter.
func NewHackerNews(client HTTPClient, cfg NewsConfig, log logger.Logger) *HackerNews {
	if client == nil {
		client = DefaultHTTPClient()
	}
	cfg.BaseURL = orDefault(cfg.BaseURL, DefaultHackerNewsBaseURL)
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = fanout.DefaultWorkers
	}
	return &HackerNews{client: client, cfg: cfg, log: logger.Ensure(log)}
}

func (h *HackerNews) ID() string {
	return hackerNewsProviderID
}

// TopStories returns the ranked stories in index order, optionally keeping only
// titles containing filter (case-insensitive). Items whose detail call fails are omitted.
func (h *HackerNews) TopStories(ctx context.Context, filter string) (domain.NewsResult, error) {
	const op = "hackernews.TopStories"

	h.log.InfoObj("fetching top stories", "news_fetch_start", map[string]any{
		"provider_id": hackerNewsProviderID,
		"filter":      filter,
	})

	ids, err := h.fetchIndex(ctx, op)
	if err != nil {
		return domain.NewsResult{}, err
	}

	// Detail calls ignore caller cancellation; each is bounded by the transport timeout only.
	results := fanout.Map(context.WithoutCancel(ctx), ids, fanout.Options{
		Workers: h.cfg.MaxConcurrency,
		Delay:   h.cfg.RequestDelay,
	}, h.fetchItem)

	for idx, res := range results {
		if res.OK() {
			continue
		}
		if errors.Is(res.Err, fanout.ErrNotDispatched) {
			return domain.NewsResult{}, domain.E(domain.KindAdapterFailure, op,
				fmt.Sprintf("story %d was never fetched", ids[idx]), res.Err)
		}
		h.log.WarnObj("story detail dropped", "news_item_dropped", map[string]any{
			"provider_id": hackerNewsProviderID,
			"item_id":     ids[idx],
			"error":       res.Err.Error(),
		})
	}

	items := filterByTitle(fanout.Present(results), filter)

	h.log.InfoObj("top stories fetched", "news_fetch_done", map[string]any{
		"provider_id": hackerNewsProviderID,
		"indexed":     len(ids),
		"returned":    len(items),
	})

	return domain.NewsResult{Items: items, Total: len(items)}, nil
}

// fetchIndex loads the ranked id list, de-duplicated in rank order.
func (h *HackerNews) fetchIndex(ctx context.Context, op string) ([]int64, error) {
	resp, err := h.client.Get(ctx, joinURL(h.cfg.BaseURL, "topstories.json"), nil)
	if err != nil {
		return nil, domain.E(domain.KindTransport, op, "fetch top stories index", err)
	}

	var ids []int64
	if err := decodeJSON(resp.Body, &ids); err != nil {
		return nil, domain.E(domain.KindMalformedUpstream, op,
			fmt.Sprintf("decode top stories index: %s", httpclient.Snippet(resp.Body)), err)
	}
	if len(ids) == 0 {
		return nil, domain.E(domain.KindUpstreamEmpty, op, "no stories found", nil)
	}

	ids = lo.Uniq(ids)
	if h.cfg.MaxStories > 0 && len(ids) > h.cfg.MaxStories {
		ids = ids[:h.cfg.MaxStories]
	}
	return ids, nil
}

// fetchItem loads a single story. Any error here only drops that story.
func (h *HackerNews) fetchItem(ctx context.Context, _ int, id int64) (domain.NewsItem, error) {
	resp, err := h.client.Get(ctx, joinURL(h.cfg.BaseURL, "item", fmt.Sprintf("%d.json", id)), nil)
	if err != nil {
		return domain.NewsItem{}, fmt.Errorf("fetch item %d: %w", id, err)
	}
	if isJSONNull(resp.Body) {
		return domain.NewsItem{}, fmt.Errorf("item %d: %w", id, errItemMissing)
	}

	var raw hnItem
	if err := decodeJSON(resp.Body, &raw); err != nil {
		return domain.NewsItem{}, fmt.Errorf("decode item %d: %w", id, err)
	}
	if raw.ID == 0 {
		return domain.NewsItem{}, fmt.Errorf("item %d: %w", id, errItemMalformed)
	}

	return domain.NewsItem{
		ID:               raw.ID,
		Title:            raw.Title,
		URL:              raw.URL,
		Score:            raw.Score,
		Author:           raw.By,
		TimestampSeconds: raw.Time,
		CommentCount:     raw.Descendants,
	}, nil
}

// filterByTitle keeps items whose title contains filter, ignoring case.
func filterByTitle(items []domain.NewsItem, filter string) []domain.NewsItem {
	if strings.TrimSpace(filter) == "" {
		return items
	}
	needle := strings.ToLower(filter)
	return lo.Filter(items, func(item domain.NewsItem, _ int) bool {
		return item.Title != "" && strings.Contains(strings.ToLower(item.Title), needle)
	})
}
