package custom_http

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"text/template"

	"github.com/tidwall/gjson"

	"orsi/internal/providers"
)

type Config struct {
	Definition Definition
	Fetcher    *providers.Fetcher
	// Guard is checked against every rendered URL. Nil skips the check;
	// registry.BuildCustom always sets one.
	Guard *Guard
}

type Client struct {
	def     Definition
	fetcher *providers.Fetcher
	guard   *Guard
	url     *template.Template
	body    *template.Template
	strip   *regexp.Regexp
}

// New compiles the URL and body templates of a definition.
func New(cfg Config) (*Client, error) {
	def := cfg.Definition
	if def.Method == "" {
		def.Method = http.MethodGet
	}
	def.Method = strings.ToUpper(def.Method)
	if strings.TrimSpace(def.URL) == "" {
		return nil, fmt.Errorf("custom api %q: url is empty", def.Name)
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = providers.NewFetcher(nil, 0)
	}

	c := &Client{def: def, fetcher: cfg.Fetcher, guard: cfg.Guard}
	var err error
	if c.url, err = template.New(def.Name + "_url").Option("missingkey=zero").Parse(def.URL); err != nil {
		return nil, fmt.Errorf("custom api %q: parse url template: %w", def.Name, err)
	}
	if strings.TrimSpace(def.BodyTemplate) != "" {
		if c.body, err = template.New(def.Name + "_body").Option("missingkey=zero").Parse(def.BodyTemplate); err != nil {
			return nil, fmt.Errorf("custom api %q: parse body template: %w", def.Name, err)
		}
	}
	quoted := make([]string, 0, len(def.Triggers))
	for _, t := range def.Triggers {
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	if len(quoted) > 0 {
		c.strip = regexp.MustCompile("(?i)" + strings.Join(quoted, "|"))
	}
	return c, nil
}

var _ providers.Adapter = (*Client)(nil)

func (c *Client) Name() string { return c.def.Name }

func (c *Client) Triggers() []string { return c.def.Triggers }

func (c *Client) FailureText() string {
	return fmt.Sprintf("❌ Não foi possível consultar %s no momento.", html.EscapeString(c.def.Name))
}

type templateData struct {
	Input string
	Query string
}

func (c *Client) Fetch(ctx context.Context, req providers.Request) providers.Result {
	data := templateData{Input: req.Input, Query: c.query(req.Input)}

	var u bytes.Buffer
	if err := c.url.Execute(&u, data); err != nil {
		return providers.Failure(c.FailureText(), fmt.Errorf("execute url template: %w", err))
	}
	target, err := url.Parse(strings.TrimSpace(u.String()))
	if err != nil {
		return providers.Failure(c.FailureText(), fmt.Errorf("parse rendered url: %w", err))
	}
	if c.guard != nil {
		if err := c.guard.CheckURL(target); err != nil {
			return providers.Failure(c.FailureText(), err)
		}
	}

	var body []byte
	if c.body != nil {
		var buf bytes.Buffer
		if err := c.body.Execute(&buf, data); err != nil {
			return providers.Failure(c.FailureText(), fmt.Errorf("execute body template: %w", err))
		}
		body = buf.Bytes()
	}

	headers := c.def.Headers
	if body != nil && len(headers) == 0 {
		headers = map[string]string{"Content-Type": "application/json"}
	}

	raw, err := c.fetcher.Do(ctx, c.def.Method, target.String(), headers, body)
	if err != nil {
		return providers.Failure(c.FailureText(), err)
	}
	text, err := extractText(raw, c.def.Field)
	if err != nil {
		return providers.Failure(c.FailureText(), err)
	}
	return providers.Success(fmt.Sprintf("<strong>%s</strong><br>%s",
		html.EscapeString(c.def.Name), html.EscapeString(text)))
}

// query is the input with every trigger removed, case-insensitively.
func (c *Client) query(input string) string {
	if c.strip != nil {
		input = c.strip.ReplaceAllString(input, "")
	}
	return strings.Join(strings.Fields(input), " ")
}

// extractText reads field (a gjson path such as "data.items.0.text") or
// the first non-empty well-known text key. Non-JSON bodies are rejected.
func extractText(body []byte, field string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: custom response is not JSON", providers.ErrParse)
	}

	if field != "" {
		v := gjson.GetBytes(body, field)
		if !v.Exists() {
			return "", fmt.Errorf("%w: field %q not found", providers.ErrParse, field)
		}
		text := v.String()
		if v.Type == gjson.Null || strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("%w: field %q is empty", providers.ErrEmptyResult, field)
		}
		return text, nil
	}

	doc := gjson.ParseBytes(body)
	if doc.IsObject() {
		for _, key := range []string{"text", "message", "result", "value", "content", "answer"} {
			if v := doc.Get(key); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
				return v.Str, nil
			}
		}
	}
	if doc.Type == gjson.String && strings.TrimSpace(doc.Str) != "" {
		return doc.Str, nil
	}
	return "", fmt.Errorf("%w: custom response does not contain text field", providers.ErrEmptyResult)
}
