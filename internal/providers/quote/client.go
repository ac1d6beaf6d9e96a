package quote

import (
	"context"
	"fmt"
	"html"
	"math/rand"
	"strings"

	"orsi/internal/providers"
)

type Quote struct {
	Text   string
	Author string
}

var fallbackQuotes = []Quote{
	{Text: "O sucesso é a soma de pequenos esforços repetidos dia após dia.", Author: "Robert Collier"},
	{Text: "A única forma de fazer um excelente trabalho é amar o que você faz.", Author: "Steve Jobs"},
	{Text: "O futuro pertence àqueles que acreditam na beleza de seus sonhos.", Author: "Eleanor Roosevelt"},
}

type Config struct {
	URL     string
	Fetcher *providers.Fetcher
	// Pick returns an index in [0, n). Defaults to a uniform random pick.
	Pick func(n int) int
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = "https://api.quotable.io/random"
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = providers.NewFetcher(nil, 0)
	}
	if cfg.Pick == nil {
		cfg.Pick = rand.Intn
	}
	return &Client{cfg: cfg}
}

var _ providers.Adapter = (*Client)(nil)

func (c *Client) Name() string { return "quote" }

func (c *Client) Fetch(ctx context.Context, _ providers.Request) providers.Result {
	var resp struct {
		Content string `json:"content"`
		Author  string `json:"author"`
	}
	if err := c.cfg.Fetcher.GetJSON(ctx, c.cfg.URL, &resp); err != nil {
		return providers.Failure(c.fallback(), err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return providers.Failure(c.fallback(), fmt.Errorf("%w: quote content missing", providers.ErrEmptyResult))
	}
	return providers.Success(render(Quote{Text: resp.Content, Author: resp.Author}))
}

func (c *Client) fallback() string {
	return render(fallbackQuotes[c.cfg.Pick(len(fallbackQuotes))])
}

func render(q Quote) string {
	return fmt.Sprintf("💭 <strong>Citação Inspiradora:</strong><br><br>\"%s\"<br><br><em>— %s</em>",
		html.EscapeString(q.Text), html.EscapeString(q.Author))
}
