package registry

import (
	"fmt"
	"net/http"

	"orsi/internal/config"
	"orsi/internal/providers"
	"orsi/internal/providers/currency"
	"orsi/internal/providers/custom_http"
	"orsi/internal/providers/joke"
	"orsi/internal/providers/news"
	"orsi/internal/providers/quote"
	"orsi/internal/providers/search"
	"orsi/internal/providers/weather"
	"orsi/internal/providers/worldtime"
)

type BuildOptions struct {
	Providers  config.ProvidersConfig
	HTTPClient *http.Client
}

// Build wires every built-in adapter to one shared fetcher.
func Build(opts BuildOptions) (providers.Set, *providers.Fetcher) {
	p := opts.Providers
	fetcher := providers.NewFetcher(opts.HTTPClient, p.Timeout)

	return providers.Set{
		Weather: weather.New(weather.Config{
			BaseURL:       p.WeatherURL,
			CustomerURL:   p.WeatherCustomerURL,
			Fetcher:       fetcher,
			LocateTimeout: p.LocateTimeout,
		}),
		News: news.New(news.Config{
			FeedURL:    p.NewsFeedURL,
			NewsAPIURL: p.NewsAPIURL,
			Fetcher:    fetcher,
		}),
		Currency: currency.New(currency.Config{URL: p.CurrencyURL, Fetcher: fetcher}),
		Time:     worldtime.New(worldtime.Config{URL: p.TimeURL, Label: p.TimeLabel, Fetcher: fetcher}),
		Joke:     joke.New(joke.Config{URL: p.JokeURL, Fetcher: fetcher}),
		Quote:    quote.New(quote.Config{URL: p.QuoteURL, Fetcher: fetcher}),
		Search:   search.New(search.Config{BaseURL: p.SearchURL}),
	}, fetcher
}

// CustomOptions carries the guarded transport shared by user-defined
// adapters. The zero value only reaches public addresses.
type CustomOptions struct {
	Fetcher *providers.Fetcher
	Guard   *custom_http.Guard
}

// NewCustomOptions builds a guarded fetcher from the operator settings.
func NewCustomOptions(p config.ProvidersConfig) CustomOptions {
	guard := &custom_http.Guard{
		AllowedHosts: p.CustomAllowedHosts,
		AllowPrivate: p.CustomAllowPrivate,
	}
	return CustomOptions{
		Fetcher: providers.NewFetcher(guard.HTTPClient(), p.Timeout),
		Guard:   guard,
	}
}

// BuildCustom turns the customApis setting text into adapters, in name order.
func BuildCustom(text string, opts CustomOptions) ([]*custom_http.Client, error) {
	defs, err := custom_http.ParseDefinitions(text)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, nil
	}
	if opts.Guard == nil {
		opts.Guard = &custom_http.Guard{}
	}
	if opts.Fetcher == nil {
		opts.Fetcher = providers.NewFetcher(opts.Guard.HTTPClient(), 0)
	}

	out := make([]*custom_http.Client, 0, len(defs))
	for _, def := range defs {
		c, err := custom_http.New(custom_http.Config{Definition: def, Fetcher: opts.Fetcher, Guard: opts.Guard})
		if err != nil {
			return nil, fmt.Errorf("build custom api: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}
