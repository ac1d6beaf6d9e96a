package router

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"orsi/internal/providers"
)

type stubAdapter struct {
	name     string
	text     string
	fallback bool
	calls    int
	triggers []string
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Fetch(_ context.Context, _ providers.Request) providers.Result {
	s.calls++
	if s.fallback {
		return providers.Failure(s.text, errors.New("boom"))
	}
	return providers.Success(s.text)
}

func (s *stubAdapter) Triggers() []string { return s.triggers }

func newTestRouter(now time.Time) (*Router, map[string]*stubAdapter) {
	stubs := map[string]*stubAdapter{}
	mk := func(name string) providers.Adapter {
		s := &stubAdapter{name: name, text: name + " text"}
		stubs[name] = s
		return s
	}
	set := providers.Set{
		Weather:  mk("weather"),
		News:     mk("news"),
		Currency: mk("currency"),
		Time:     mk("time"),
		Joke:     mk("joke"),
		Quote:    mk("quote"),
		Search:   mk("search"),
	}
	return New(Config{Providers: set, Logger: zerolog.Nop(), Now: func() time.Time { return now }}), stubs
}

func TestWeatherTriggersIgnoreCaseAndContext(t *testing.T) {
	r, stubs := newTestRouter(time.Now())
	for _, in := range []string{"clima", "Qual o CLIMA hoje?", "  previsão do Tempo  ", "TEMPORADA"} {
		reply := r.Route(context.Background(), providers.Request{Input: in})
		if reply.Intent != IntentWeather || reply.Text != "weather text" {
			t.Fatalf("input %q routed to %+v", in, reply)
		}
	}
	if stubs["weather"].calls != 4 {
		t.Fatalf("expected 4 weather calls, got %d", stubs["weather"].calls)
	}
}

func TestPriorityOrder(t *testing.T) {
	cases := []struct {
		in   string
		want Intent
	}{
		{"que hora é? conte uma piada", IntentTime},
		{"piada sobre o clima", IntentWeather},
		{"notícias do euro", IntentNews},
		{"cotação do dólar", IntentCurrency},
		{"traduz esta frase", IntentTranslate},
		{"uma frase engraçada", IntentQuote},
		{"piada engraçada", IntentJoke},
		{"busca citação famosa", IntentQuote},
		{"pesquisa receitas", IntentSearch},
		{"Olá!", IntentGreeting},
		{"hey, preciso de ajuda", IntentGreeting},
		{"ajuda", IntentHelp},
		{"HELP", IntentHelp},
		{"xyz", IntentEcho},
	}
	r, _ := newTestRouter(time.Now())
	for _, c := range cases {
		if got := r.Route(context.Background(), providers.Request{Input: c.in}).Intent; got != c.want {
			t.Fatalf("input %q: expected %s, got %s", c.in, c.want, got)
		}
	}
}

func TestNormalizeComposesAccents(t *testing.T) {
	decomposed := "NOTI\u0301CIA"
	if got := Normalize(decomposed); got != "notícia" {
		t.Fatalf("expected composed lowercase, got %q", got)
	}
	if Match(Normalize("ÚLTIMAS NOTÍCIAS")) != IntentNews {
		t.Fatalf("expected news intent for uppercase accents")
	}
}

func TestCannedReplies(t *testing.T) {
	r, _ := newTestRouter(time.Date(2026, 10, 19, 9, 0, 0, 0, time.Local))
	if got := r.Route(context.Background(), providers.Request{Input: "traduzir"}).Text; got != TranslateText {
		t.Fatalf("unexpected translate text %q", got)
	}
	if got := r.Route(context.Background(), providers.Request{Input: "ajuda"}).Text; got != HelpText {
		t.Fatalf("unexpected help text %q", got)
	}
	if got := r.Route(context.Background(), providers.Request{Input: "oi"}).Text; !strings.HasPrefix(got, "Bom dia! 👋") {
		t.Fatalf("unexpected greeting %q", got)
	}
	want := "Entendi sua mensagem: \"&lt;b&gt;xyz&lt;/b&gt;\". Como posso ajudar? Use \"ajuda\" para ver os comandos disponíveis."
	if got := r.Route(context.Background(), providers.Request{Input: "<b>xyz</b>"}).Text; got != want {
		t.Fatalf("unexpected echo\nwant %q\ngot  %q", want, got)
	}
}

func TestGreetingBoundaries(t *testing.T) {
	cases := map[int]string{4: "Boa noite", 5: "Bom dia", 11: "Bom dia", 12: "Boa tarde", 17: "Boa tarde", 18: "Boa noite", 23: "Boa noite"}
	for hour, want := range cases {
		got := Greeting(time.Date(2026, 1, 1, hour, 30, 0, 0, time.Local))
		if !strings.HasPrefix(got, want+"!") {
			t.Fatalf("hour %d: expected %s, got %q", hour, want, got)
		}
	}
}

func TestFallbackIsReturnedAsText(t *testing.T) {
	r, stubs := newTestRouter(time.Now())
	stubs["joke"].fallback = true
	stubs["joke"].text = "local joke"
	reply := r.Route(context.Background(), providers.Request{Input: "piada"})
	if !reply.Fallback || reply.Text != "local joke" || reply.Provider != "joke" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestCustomRoutesAfterHelpBeforeEcho(t *testing.T) {
	r, _ := newTestRouter(time.Now())
	cep := &stubAdapter{name: "cep", text: "cep text", triggers: []string{"CEP"}}
	ajudaCustom := &stubAdapter{name: "z", text: "z text", triggers: []string{"ajuda"}}

	reply := r.Route(context.Background(), providers.Request{Input: "cep 01001000"}, cep, ajudaCustom)
	if reply.Intent != IntentCustom || reply.Text != "cep text" {
		t.Fatalf("expected custom route, got %+v", reply)
	}
	reply = r.Route(context.Background(), providers.Request{Input: "ajuda"}, cep, ajudaCustom)
	if reply.Intent != IntentHelp || ajudaCustom.calls != 0 {
		t.Fatalf("built-in help must win over custom triggers, got %+v", reply)
	}
	reply = r.Route(context.Background(), providers.Request{Input: "nada aqui"}, cep)
	if reply.Intent != IntentEcho {
		t.Fatalf("expected echo, got %+v", reply)
	}
}
