package providers

import (
	"context"
	"errors"
)

// Failure kinds. Adapters wrap one of these so operators can tell them
// apart in logs; the user sees the same fallback for all of them.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNetwork          = errors.New("network failure")
	ErrParse            = errors.New("parse failure")
	ErrEmptyResult      = errors.New("empty result")
)

// Result is either a success or a fallback. Text is always displayable.
type Result struct {
	Text     string
	Fallback bool
	// Err is the diagnostic cause of a fallback. Never shown to the user.
	Err error
}

func Success(text string) Result {
	return Result{Text: text}
}

func Failure(text string, err error) Result {
	return Result{Text: text, Fallback: true, Err: err}
}

type Position struct {
	Latitude  float64
	Longitude float64
}

// Locator is the geolocation capability of the current surface.
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// Opener opens a URL in a new browsing context on the current surface.
type Opener interface {
	Open(ctx context.Context, url string) error
}

type Request struct {
	// Input is the raw user text, before normalization.
	Input   string
	Locator Locator
	Opener  Opener

	WeatherAPIKey string
	NewsAPIKey    string
}

type Adapter interface {
	Name() string
	Fetch(ctx context.Context, req Request) Result
}

// Set holds the built-in adapters, one per intent that calls out.
type Set struct {
	Weather  Adapter
	News     Adapter
	Currency Adapter
	Time     Adapter
	Joke     Adapter
	Quote    Adapter
	Search   Adapter
}
