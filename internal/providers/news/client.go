package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"

	"orsi/internal/providers"
)

const (
	FailureText = "❌ Não foi possível carregar as notícias no momento."
	maxItems    = 5
)

type Config struct {
	FeedURL string
	// NewsAPIURL is used instead of the feed when the user has a NewsAPI key.
	NewsAPIURL string
	Fetcher    *providers.Fetcher
}

type Client struct {
	cfg Config
}

type headline struct {
	Title string
	Link  string
}

func New(cfg Config) *Client {
	if cfg.FeedURL == "" {
		cfg.FeedURL = "https://g1.globo.com/rss/g1/"
	}
	if cfg.NewsAPIURL == "" {
		cfg.NewsAPIURL = "https://newsapi.org/v2/top-headlines?country=br"
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = providers.NewFetcher(nil, 0)
	}
	return &Client{cfg: cfg}
}

var _ providers.Adapter = (*Client)(nil)

func (c *Client) Name() string { return "news" }

func (c *Client) Fetch(ctx context.Context, req providers.Request) providers.Result {
	var (
		items []headline
		err   error
	)
	if strings.TrimSpace(req.NewsAPIKey) != "" {
		items, err = c.fromNewsAPI(ctx, req.NewsAPIKey)
	} else {
		items, err = c.fromFeed(ctx)
	}
	if err != nil {
		return providers.Failure(FailureText, err)
	}
	if len(items) == 0 {
		return providers.Failure(FailureText, fmt.Errorf("%w: no headlines", providers.ErrEmptyResult))
	}
	return providers.Success(render(items))
}

func (c *Client) fromFeed(ctx context.Context) ([]headline, error) {
	body, err := c.cfg.Fetcher.Get(ctx, c.cfg.FeedURL)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrParse, err)
	}
	out := make([]headline, 0, maxItems)
	for _, item := range feed.Items {
		if len(out) == maxItems {
			break
		}
		if item == nil {
			continue
		}
		out = append(out, headline{Title: strings.TrimSpace(item.Title), Link: strings.TrimSpace(item.Link)})
	}
	return out, nil
}

func (c *Client) fromNewsAPI(ctx context.Context, apiKey string) ([]headline, error) {
	u, err := url.Parse(c.cfg.NewsAPIURL)
	if err != nil {
		return nil, fmt.Errorf("parse newsapi url: %w", err)
	}
	q := u.Query()
	q.Set("apiKey", apiKey)
	u.RawQuery = q.Encode()

	body, err := c.cfg.Fetcher.Get(ctx, u.String())
	if err != nil {
		return nil, err
	}
	var resp struct {
		Status   string `json:"status"`
		Articles []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", providers.ErrParse, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("%w: newsapi status %q", providers.ErrParse, resp.Status)
	}
	out := make([]headline, 0, maxItems)
	for _, a := range resp.Articles {
		if len(out) == maxItems {
			break
		}
		out = append(out, headline{Title: strings.TrimSpace(a.Title), Link: strings.TrimSpace(a.URL)})
	}
	return out, nil
}

func render(items []headline) string {
	var b strings.Builder
	b.WriteString("<strong>📰 Últimas Notícias:</strong><br><br>")
	for i, item := range items {
		fmt.Fprintf(&b, `%d. <a href="%s" target="_blank">%s</a><br><br>`,
			i+1, html.EscapeString(item.Link), html.EscapeString(item.Title))
	}
	return b.String()
}
