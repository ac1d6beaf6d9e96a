package search

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"orsi/internal/providers"
)

const EmptyQueryText = "O que você gostaria de buscar? 🔍"

var triggerWords = regexp.MustCompile(`(?i)busca|pesquisa|procura`)

type Config struct {
	BaseURL string
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.google.com/search"
	}
	return &Client{cfg: cfg}
}

var _ providers.Adapter = (*Client)(nil)

func (c *Client) Name() string { return "search" }

// Query strips every trigger word from the raw input.
func Query(input string) string {
	return strings.TrimSpace(triggerWords.ReplaceAllString(input, ""))
}

func (c *Client) URL(term string) string {
	sep := "?"
	if strings.Contains(c.cfg.BaseURL, "?") {
		sep = "&"
	}
	return c.cfg.BaseURL + sep + "q=" + url.QueryEscape(term)
}

func (c *Client) Fetch(ctx context.Context, req providers.Request) providers.Result {
	term := Query(req.Input)
	if term == "" {
		return providers.Success(EmptyQueryText)
	}

	link := c.URL(term)
	ack := fmt.Sprintf("🔍 Abrindo busca por: \"%s\"", html.EscapeString(term))
	if req.Opener == nil {
		return providers.Failure(
			fmt.Sprintf(`%s<br><a href="%s" target="_blank">%s</a>`, ack, html.EscapeString(link), html.EscapeString(link)),
			fmt.Errorf("%w: no browsing context", providers.ErrPermissionDenied),
		)
	}
	if err := req.Opener.Open(ctx, link); err != nil {
		return providers.Failure(
			fmt.Sprintf(`%s<br><a href="%s" target="_blank">%s</a>`, ack, html.EscapeString(link), html.EscapeString(link)),
			fmt.Errorf("open search url: %w", err),
		)
	}
	return providers.Success(ack)
}
