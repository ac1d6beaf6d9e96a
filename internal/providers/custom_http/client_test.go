package custom_http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"orsi/internal/providers"
)

func TestParseDefinitionsYAMLAndJSON(t *testing.T) {
	yamlText := `
piada_dev:
  triggers: [dev joke]
  url: https://example.test/joke
cep:
  triggers: ["cep"]
  url: "https://viacep.test/ws/{{.Query}}/json/"
  field: logradouro
`
	defs, err := ParseDefinitions(yamlText)
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if len(defs) != 2 || defs[0].Name != "cep" || defs[1].Name != "piada_dev" {
		t.Fatalf("expected definitions sorted by name, got %+v", defs)
	}
	if defs[0].Field != "logradouro" {
		t.Fatalf("expected field, got %q", defs[0].Field)
	}

	jsonText := `{"status":{"triggers":["status"],"url":"https://example.test/s","method":"post"}}`
	defs, err = ParseDefinitions(jsonText)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if len(defs) != 1 || defs[0].Method != "post" {
		t.Fatalf("unexpected json definitions %+v", defs)
	}
}

func TestParseDefinitionsRejectsInvalid(t *testing.T) {
	if defs, err := ParseDefinitions("   "); err != nil || defs != nil {
		t.Fatalf("blank text should yield nothing, got %v %v", defs, err)
	}
	if _, err := ParseDefinitions("x:\n  url: https://a.test\n"); err == nil {
		t.Fatalf("expected error for missing triggers")
	}
	if _, err := ParseDefinitions("[1, 2"); err == nil {
		t.Fatalf("expected error for malformed text")
	}
}

func TestFetchRendersTemplatesAndField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/01001000/json/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"logradouro":"Praça da Sé","bairro":"Sé"}`))
	}))
	defer srv.Close()

	c, err := New(Config{
		Definition: Definition{
			Name:     "cep",
			Triggers: []string{"cep"},
			URL:      srv.URL + "/ws/{{.Query}}/json/",
			Field:    "logradouro",
		},
		Fetcher: providers.NewFetcher(srv.Client(), time.Second),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res := c.Fetch(context.Background(), providers.Request{Input: "CEP 01001000"})
	if res.Fallback {
		t.Fatalf("unexpected fallback: %v", res.Err)
	}
	if res.Text != "<strong>cep</strong><br>Praça da Sé" {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestFetchPostsBodyTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("X-Token") != "abc" {
			t.Errorf("expected custom header")
		}
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"q":"bom dia"}` {
			t.Errorf("unexpected body %s", b)
		}
		_, _ = w.Write([]byte(`{"data":{"items":[{"text":"ok"}]}}`))
	}))
	defer srv.Close()

	c, err := New(Config{
		Definition: Definition{
			Name:         "eco",
			Triggers:     []string{"eco"},
			URL:          srv.URL,
			Method:       "post",
			Headers:      map[string]string{"X-Token": "abc"},
			BodyTemplate: `{"q":"{{.Query}}"}`,
			Field:        "data.items.0.text",
		},
		Fetcher: providers.NewFetcher(srv.Client(), time.Second),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res := c.Fetch(context.Background(), providers.Request{Input: "eco bom dia"})
	if res.Fallback || res.Text != "<strong>eco</strong><br>ok" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestFetchFailureText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"other":1}`))
	}))
	defer srv.Close()

	c, err := New(Config{
		Definition: Definition{Name: "status", Triggers: []string{"status"}, URL: srv.URL, Field: "value"},
		Fetcher:    providers.NewFetcher(srv.Client(), time.Second),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res := c.Fetch(context.Background(), providers.Request{Input: "status"})
	if !res.Fallback || res.Text != "❌ Não foi possível consultar status no momento." {
		t.Fatalf("unexpected result %+v", res)
	}
	if !errors.Is(res.Err, providers.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", res.Err)
	}
}

func TestNewRejectsBadTemplate(t *testing.T) {
	if _, err := New(Config{Definition: Definition{Name: "x", Triggers: []string{"x"}, URL: "{{.Query"}}); err == nil {
		t.Fatalf("expected template parse error")
	}
	if _, err := New(Config{Definition: Definition{Name: "x", Triggers: []string{"x"}}}); err == nil {
		t.Fatalf("expected empty url error")
	}
}

func TestFetchRejectsNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("root:x:0:0:root:/root:/bin/bash"))
	}))
	defer srv.Close()

	c, err := New(Config{
		Definition: Definition{Name: "raw", Triggers: []string{"raw"}, URL: srv.URL},
		Fetcher:    providers.NewFetcher(srv.Client(), time.Second),
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res := c.Fetch(context.Background(), providers.Request{Input: "raw"})
	if !res.Fallback || strings.Contains(res.Text, "root:x") {
		t.Fatalf("raw body must not be reflected, got %+v", res)
	}
	if !errors.Is(res.Err, providers.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", res.Err)
	}
}

func TestGuardCheckURL(t *testing.T) {
	open := &Guard{}
	listed := &Guard{AllowedHosts: []string{"viacep.com.br", " API.Example.com "}}

	cases := []struct {
		guard *Guard
		url   string
		ok    bool
	}{
		{open, "https://viacep.com.br/ws/1/json/", true},
		{open, "http://127.0.0.1:8080/", false},
		{open, "http://[::1]/", false},
		{open, "http://169.254.169.254/latest/meta-data/", false},
		{open, "http://10.0.0.7/", false},
		{open, "http://[::ffff:192.168.0.1]/", false},
		{open, "http://100.64.1.1/", false},
		{open, "file:///etc/passwd", false},
		{open, "gopher://example.com/", false},
		{listed, "https://viacep.com.br/ws/1/json/", true},
		{listed, "https://v2.api.example.com/x", true},
		{listed, "https://example.com/", false},
		{listed, "https://viacep.com.br.evil.test/", false},
		{&Guard{AllowPrivate: true}, "http://127.0.0.1:8080/", true},
	}
	for _, tc := range cases {
		u, err := url.Parse(tc.url)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.url, err)
		}
		err = tc.guard.CheckURL(u)
		if tc.ok && err != nil {
			t.Fatalf("%s: expected allowed, got %v", tc.url, err)
		}
		if !tc.ok && !errors.Is(err, ErrBlockedHost) {
			t.Fatalf("%s: expected ErrBlockedHost, got %v", tc.url, err)
		}
	}
}

func TestGuardedFetchRefusesInternalAddresses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"text":"INTERNO"}`))
	}))
	defer srv.Close()
	port := srv.Listener.Addr().(*net.TCPAddr).Port

	guard := &Guard{}
	fetcher := providers.NewFetcher(guard.HTTPClient(), time.Second)
	for _, target := range []string{srv.URL, fmt.Sprintf("http://localhost:%d/", port)} {
		c, err := New(Config{
			Definition: Definition{Name: "interno", Triggers: []string{"interno"}, URL: target},
			Fetcher:    fetcher,
			Guard:      guard,
		})
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		res := c.Fetch(context.Background(), providers.Request{Input: "interno"})
		if !res.Fallback || strings.Contains(res.Text, "INTERNO") {
			t.Fatalf("%s: expected refusal, got %+v", target, res)
		}
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("internal server was contacted %d times", n)
	}
}

func TestGuardedFetchChecksRedirects(t *testing.T) {
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"text":"INTERNO"}`))
	}))
	defer internal.Close()
	port := internal.Listener.Addr().(*net.TCPAddr).Port

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, fmt.Sprintf("http://localhost:%d/", port), http.StatusFound)
	}))
	defer redirector.Close()

	guard := &Guard{AllowPrivate: true, AllowedHosts: []string{"127.0.0.1"}}
	c, err := New(Config{
		Definition: Definition{Name: "redir", Triggers: []string{"redir"}, URL: redirector.URL},
		Fetcher:    providers.NewFetcher(guard.HTTPClient(), time.Second),
		Guard:      guard,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	res := c.Fetch(context.Background(), providers.Request{Input: "redir"})
	if !res.Fallback || strings.Contains(res.Text, "INTERNO") {
		t.Fatalf("redirect off the allowlist must fail, got %+v", res)
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("redirect target was contacted %d times", n)
	}
}

func TestExtractTextPaths(t *testing.T) {
	body := []byte(`{"count":3,"ok":true,"items":[{"name":"a"},{"name":"b"}],"empty":null,"answer":"  "}`)
	cases := map[string]string{
		"count":                   "3",
		"ok":                      "true",
		"items.1.name":            "b",
		`items.#(name=="a").name`: "a",
	}
	for field, want := range cases {
		got, err := extractText(body, field)
		if err != nil || got != want {
			t.Fatalf("field %q: got %q, %v; want %q", field, got, err, want)
		}
	}
	if _, err := extractText(body, "empty"); !errors.Is(err, providers.ErrEmptyResult) {
		t.Fatalf("null field must be empty, got %v", err)
	}
	if _, err := extractText(body, "missing.path"); !errors.Is(err, providers.ErrParse) {
		t.Fatalf("missing field must be a parse error, got %v", err)
	}
	if got, err := extractText([]byte(`{"message":"","result":"pronto"}`), ""); err != nil || got != "pronto" {
		t.Fatalf("expected first non-empty known key, got %q, %v", got, err)
	}
	if got, err := extractText([]byte(`"direto"`), ""); err != nil || got != "direto" {
		t.Fatalf("expected top-level string, got %q, %v", got, err)
	}
}
