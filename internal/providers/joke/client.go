package joke

import (
	"context"
	"fmt"
	"html"
	"math/rand"
	"strings"

	"orsi/internal/providers"
)

var fallbackJokes = []string{
	"Por que o computador foi ao médico? Porque estava com vírus! 😄",
	"O que o processador disse para a memória RAM? Você me completa! 💾",
	"Por que a IA foi ao psicólogo? Para processar seus sentimentos! 🤖",
}

type Config struct {
	URL     string
	Fetcher *providers.Fetcher
	Pick    func(n int) int
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = "https://v2.jokeapi.dev/joke/Any?lang=pt&type=single"
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

func (c *Client) Name() string { return "joke" }

func (c *Client) Fetch(ctx context.Context, _ providers.Request) providers.Result {
	var resp struct {
		Joke string `json:"joke"`
	}
	if err := c.cfg.Fetcher.GetJSON(ctx, c.cfg.URL, &resp); err != nil {
		return providers.Failure(c.fallback(), err)
	}
	if strings.TrimSpace(resp.Joke) == "" {
		return providers.Failure(c.fallback(), fmt.Errorf("%w: joke payload empty", providers.ErrEmptyResult))
	}
	return providers.Success("😄 " + html.EscapeString(resp.Joke))
}

func (c *Client) fallback() string {
	return fallbackJokes[c.cfg.Pick(len(fallbackJokes))]
}
