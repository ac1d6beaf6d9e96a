package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"orsi/internal/providers"
)

const FailureText = "❌ Não foi possível obter o clima. Verifique se a localização está ativada."

type Config struct {
	BaseURL string
	// CustomerURL is used instead of BaseURL when the user has an API key.
	CustomerURL   string
	Fetcher       *providers.Fetcher
	LocateTimeout time.Duration
}

type Client struct {
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if cfg.CustomerURL == "" {
		cfg.CustomerURL = "https://customer-api.open-meteo.com/v1/forecast"
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = providers.NewFetcher(nil, 0)
	}
	return &Client{cfg: cfg}
}

var _ providers.Adapter = (*Client)(nil)

func (c *Client) Name() string { return "weather" }

func (c *Client) Fetch(ctx context.Context, req providers.Request) providers.Result {
	pos, err := c.locate(ctx, req.Locator)
	if err != nil {
		return providers.Failure(FailureText, err)
	}

	var resp struct {
		CurrentWeather *struct {
			Temperature *float64 `json:"temperature"`
			WindSpeed   *float64 `json:"windspeed"`
			WeatherCode *int     `json:"weathercode"`
		} `json:"current_weather"`
	}
	if err := c.cfg.Fetcher.GetJSON(ctx, c.endpoint(pos, req.WeatherAPIKey), &resp); err != nil {
		return providers.Failure(FailureText, err)
	}
	cw := resp.CurrentWeather
	if cw == nil || cw.Temperature == nil || cw.WindSpeed == nil || cw.WeatherCode == nil {
		return providers.Failure(FailureText, fmt.Errorf("%w: current_weather fields missing", providers.ErrParse))
	}

	return providers.Success(fmt.Sprintf(
		"%s <strong>Clima Atual</strong><br>🌡️ Temperatura: %s°C<br>💨 Vento: %s km/h<br>📍 Sua localização",
		Emoji(*cw.WeatherCode), formatNumber(*cw.Temperature), formatNumber(*cw.WindSpeed),
	))
}

func (c *Client) locate(ctx context.Context, loc providers.Locator) (providers.Position, error) {
	if loc == nil {
		return providers.Position{}, fmt.Errorf("%w: no geolocation capability", providers.ErrPermissionDenied)
	}
	if c.cfg.LocateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.LocateTimeout)
		defer cancel()
	}
	pos, err := loc.Locate(ctx)
	if err != nil {
		return providers.Position{}, fmt.Errorf("locate: %w", err)
	}
	return pos, nil
}

func (c *Client) endpoint(pos providers.Position, apiKey string) string {
	base := c.cfg.BaseURL
	q := url.Values{}
	q.Set("latitude", formatNumber(pos.Latitude))
	q.Set("longitude", formatNumber(pos.Longitude))
	q.Set("current_weather", "true")
	q.Set("timezone", "auto")
	if apiKey != "" {
		base = c.cfg.CustomerURL
		q.Set("apikey", apiKey)
	}
	return base + "?" + q.Encode()
}

// Emoji maps a WMO weather code to its display bucket.
func Emoji(code int) string {
	switch {
	case code == 0:
		return "☀️"
	case code <= 3:
		return "⛅"
	case code <= 67:
		return "🌧️"
	case code <= 77:
		return "❄️"
	case code <= 82:
		return "🌦️"
	default:
		return "⛈️"
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
