package currency

import (
	"context"
	"fmt"
	"math"

	"orsi/internal/providers"
)

const FailureText = "❌ Não foi possível obter as cotações no momento."

type Config struct {
	URL     string
	Fetcher *providers.Fetcher
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = "https://api.exchangerate-api.com/v4/latest/USD"
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = providers.NewFetcher(nil, 0)
	}
	return &Client{cfg: cfg}
}

var _ providers.Adapter = (*Client)(nil)

func (c *Client) Name() string { return "currency" }

// Fetch reports BRL per USD, while EUR and GBP are shown as USD per unit
// (the inverse of the two-decimal rate). The mixed directions match the
// established output.
func (c *Client) Fetch(ctx context.Context, _ providers.Request) providers.Result {
	var resp struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := c.cfg.Fetcher.GetJSON(ctx, c.cfg.URL, &resp); err != nil {
		return providers.Failure(FailureText, err)
	}

	brl, okBRL := resp.Rates["BRL"]
	eur, okEUR := resp.Rates["EUR"]
	gbp, okGBP := resp.Rates["GBP"]
	if !okBRL || !okEUR || !okGBP {
		return providers.Failure(FailureText, fmt.Errorf("%w: BRL, EUR or GBP rate missing", providers.ErrParse))
	}
	eurInv, err := invert(eur)
	if err != nil {
		return providers.Failure(FailureText, err)
	}
	gbpInv, err := invert(gbp)
	if err != nil {
		return providers.Failure(FailureText, err)
	}

	return providers.Success(fmt.Sprintf(
		"💱 <strong>Cotações (USD):</strong><br><br>🇧🇷 Real: R$ %.2f<br>🇪🇺 Euro: € %.2f<br>🇬🇧 Libra: £ %.2f<br><small>Atualizado agora</small>",
		brl, eurInv, gbpInv,
	))
}

// invert divides one by the rate rounded to two decimals.
func invert(rate float64) (float64, error) {
	rounded := math.Round(rate*100) / 100
	if rounded <= 0 {
		return 0, fmt.Errorf("%w: non-positive rate %v", providers.ErrParse, rate)
	}
	return 1 / rounded, nil
}
