package router

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/rs/zerolog"

	"orsi/internal/metrics"
	"orsi/internal/providers"
)

const (
	TranslateText = "Use o Google Tradutor: https://translate.google.com 🌐"

	HelpText = "📚 <strong>Comandos Disponíveis:</strong><br><br>" +
		"🌤️ <strong>Clima:</strong> \"qual o clima?\" ou \"previsão do tempo\"<br>" +
		"📰 <strong>Notícias:</strong> \"últimas notícias\"<br>" +
		"💱 <strong>Moedas:</strong> \"converter moeda\" ou \"cotação dólar\"<br>" +
		"🌍 <strong>Hora:</strong> \"que horas são\" ou \"fuso horário\"<br>" +
		"😄 <strong>Piada:</strong> \"conte uma piada\"<br>" +
		"💭 <strong>Citação:</strong> \"frase inspiradora\"<br>" +
		"🔍 <strong>Busca:</strong> \"buscar [termo]\"<br><br>" +
		"⚙️ Ajuste voz, volume e chaves de API nas configurações."
)

// Custom is a user-defined adapter with its own triggers.
type Custom interface {
	providers.Adapter
	Triggers() []string
}

type Reply struct {
	Intent   Intent
	Provider string
	Text     string
	Fallback bool
}

type Config struct {
	Providers providers.Set
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

type Router struct {
	providers providers.Set
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(cfg Config) *Router {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Router{
		providers: cfg.Providers,
		logger:    cfg.Logger.With().Str("component", "router").Logger(),
		metrics:   m,
		now:       cfg.Now,
	}
}

// Route resolves one input to display text. It never fails: provider
// errors are logged and replaced by the provider's fallback text.
func (r *Router) Route(ctx context.Context, req providers.Request, custom ...Custom) Reply {
	normalized := Normalize(req.Input)
	intent := Match(normalized)

	if intent == IntentEcho {
		for _, c := range custom {
			if containsAny(normalized, normalizeAll(c.Triggers())) {
				return r.dispatch(ctx, IntentCustom, c, req)
			}
		}
	}

	var reply Reply
	switch intent {
	case IntentWeather:
		reply = r.dispatch(ctx, intent, r.providers.Weather, req)
	case IntentNews:
		reply = r.dispatch(ctx, intent, r.providers.News, req)
	case IntentCurrency:
		reply = r.dispatch(ctx, intent, r.providers.Currency, req)
	case IntentTime:
		reply = r.dispatch(ctx, intent, r.providers.Time, req)
	case IntentJoke:
		reply = r.dispatch(ctx, intent, r.providers.Joke, req)
	case IntentQuote:
		reply = r.dispatch(ctx, intent, r.providers.Quote, req)
	case IntentSearch:
		reply = r.dispatch(ctx, intent, r.providers.Search, req)
	case IntentTranslate:
		reply = Reply{Text: TranslateText}
	case IntentGreeting:
		reply = Reply{Text: Greeting(r.now())}
	case IntentHelp:
		reply = Reply{Text: HelpText}
	default:
		reply = Reply{Text: Echo(req.Input)}
	}
	reply.Intent = intent
	r.metrics.Intents.WithLabelValues(string(intent)).Inc()
	return reply
}

func (r *Router) dispatch(ctx context.Context, intent Intent, a providers.Adapter, req providers.Request) Reply {
	if a == nil {
		r.logger.Error().Str("intent", string(intent)).Msg("no adapter configured")
		return Reply{Intent: intent, Text: Echo(req.Input)}
	}
	res := a.Fetch(ctx, req)
	if res.Fallback {
		r.metrics.ProviderFallbacks.WithLabelValues(a.Name()).Inc()
		r.logger.Warn().Err(res.Err).Str("provider", a.Name()).Msg("provider fell back")
	}
	if intent == IntentCustom {
		r.metrics.Intents.WithLabelValues(string(intent)).Inc()
	}
	return Reply{Intent: intent, Provider: a.Name(), Text: res.Text, Fallback: res.Fallback}
}

// Greeting picks the salutation by local hour: 5-11 morning, 12-17
// afternoon, otherwise night.
func Greeting(now time.Time) string {
	salutation := "Boa noite"
	switch h := now.Hour(); {
	case h >= 5 && h < 12:
		salutation = "Bom dia"
	case h >= 12 && h < 18:
		salutation = "Boa tarde"
	}
	return salutation + "! 👋 Eu sou o ORSI, seu assistente pessoal. Como posso ajudá-lo hoje?"
}

func Echo(input string) string {
	return fmt.Sprintf("Entendi sua mensagem: \"%s\". Como posso ajudar? Use \"ajuda\" para ver os comandos disponíveis.",
		html.EscapeString(input))
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, t := range in {
		out = append(out, Normalize(t))
	}
	return out
}
