package worldtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"orsi/internal/providers"
)

const (
	clockLayout = "15:04:05"
	dateLayout  = "02/01/2006"
)

type Config struct {
	URL     string
	Label   string
	Fetcher *providers.Fetcher
	// Now is the device clock used for the fallback.
	Now func() time.Time
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = "https://worldtimeapi.org/api/timezone/America/Sao_Paulo"
	}
	if cfg.Label == "" {
		cfg.Label = "São Paulo"
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = providers.NewFetcher(nil, 0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{cfg: cfg}
}

var _ providers.Adapter = (*Client)(nil)

func (c *Client) Name() string { return "time" }

// Fetch falls back to the local clock rather than a fixed string.
func (c *Client) Fetch(ctx context.Context, _ providers.Request) providers.Result {
	var resp struct {
		Datetime string `json:"datetime"`
		Timezone string `json:"timezone"`
	}
	if err := c.cfg.Fetcher.GetJSON(ctx, c.cfg.URL, &resp); err != nil {
		return providers.Failure(c.localClock(), err)
	}
	at, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(resp.Datetime))
	if err != nil {
		return providers.Failure(c.localClock(), fmt.Errorf("%w: datetime %q", providers.ErrParse, resp.Datetime))
	}

	return providers.Success(fmt.Sprintf(
		"🌍 <strong>Hora Mundial:</strong><br><br>🇧🇷 %s: %s<br>📅 %s<br>🕐 Timezone: %s",
		c.cfg.Label, at.Format(clockLayout), at.Format(dateLayout), resp.Timezone,
	))
}

func (c *Client) localClock() string {
	now := c.cfg.Now()
	return fmt.Sprintf("🕐 <strong>Hora Local:</strong><br>%s<br>📅 %s", now.Format(clockLayout), now.Format(dateLayout))
}
