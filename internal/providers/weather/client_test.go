package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orsi/internal/providers"
)

type fixedLocator struct {
	pos providers.Position
	err error
}

func (l fixedLocator) Locate(context.Context) (providers.Position, error) { return l.pos, l.err }

type blockingLocator struct{}

func (blockingLocator) Locate(ctx context.Context) (providers.Position, error) {
	<-ctx.Done()
	return providers.Position{}, ctx.Err()
}

func TestEmojiBoundaries(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{0, "☀️"},
		{1, "⛅"},
		{3, "⛅"},
		{4, "🌧️"},
		{67, "🌧️"},
		{68, "❄️"},
		{77, "❄️"},
		{78, "🌦️"},
		{82, "🌦️"},
		{83, "⛈️"},
		{95, "⛈️"},
	}
	for _, tc := range cases {
		if got := Emoji(tc.code); got != tc.want {
			t.Fatalf("code %d: expected %s, got %s", tc.code, tc.want, got)
		}
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("latitude") != "-23.55" || q.Get("longitude") != "-46.63" || q.Get("current_weather") != "true" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"current_weather":{"temperature":21.5,"windspeed":10,"weathercode":2}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Fetcher: providers.NewFetcher(srv.Client(), time.Second)})
	res := c.Fetch(context.Background(), providers.Request{
		Locator: fixedLocator{pos: providers.Position{Latitude: -23.55, Longitude: -46.63}},
	})
	if res.Fallback {
		t.Fatalf("unexpected fallback: %v", res.Err)
	}
	for _, part := range []string{"⛅ <strong>Clima Atual</strong>", "Temperatura: 21.5°C", "Vento: 10 km/h"} {
		if !strings.Contains(res.Text, part) {
			t.Fatalf("expected %q in %q", part, res.Text)
		}
	}
}

func TestFetchUsesCustomerEndpointWithKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("apikey")
		_, _ = w.Write([]byte(`{"current_weather":{"temperature":1,"windspeed":1,"weathercode":0}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: "http://127.0.0.1:1/unused", CustomerURL: srv.URL, Fetcher: providers.NewFetcher(srv.Client(), time.Second)})
	res := c.Fetch(context.Background(), providers.Request{Locator: fixedLocator{}, WeatherAPIKey: "secret"})
	if res.Fallback || gotKey != "secret" {
		t.Fatalf("expected customer endpoint with key, fallback=%v key=%q err=%v", res.Fallback, gotKey, res.Err)
	}
}

func TestFetchFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"current_weather":{}}`))
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, Fetcher: providers.NewFetcher(srv.Client(), time.Second), LocateTimeout: 20 * time.Millisecond})

	cases := []struct {
		name string
		req  providers.Request
		want error
	}{
		{"no locator", providers.Request{}, providers.ErrPermissionDenied},
		{"denied", providers.Request{Locator: fixedLocator{err: providers.ErrPermissionDenied}}, providers.ErrPermissionDenied},
		{"locate timeout", providers.Request{Locator: blockingLocator{}}, context.DeadlineExceeded},
		{"missing fields", providers.Request{Locator: fixedLocator{}}, providers.ErrParse},
	}
	for _, tc := range cases {
		res := c.Fetch(context.Background(), tc.req)
		if !res.Fallback || res.Text != FailureText {
			t.Fatalf("%s: expected fallback text, got %+v", tc.name, res)
		}
		if !errors.Is(res.Err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, res.Err)
		}
	}
}
