// Package terminal runs a local session as a line-editing REPL.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/rs/zerolog"

	"orsi/internal/conversation"
	"orsi/internal/providers"
	"orsi/internal/session"
	"orsi/internal/settings"
	"orsi/internal/voice"
)

const prompt = "você> "

// LineReader is the subset of liner.State the loop needs.
type LineReader interface {
	Prompt(p string) (string, error)
	AppendHistory(item string)
}

type Config struct {
	Session     session.Config
	Partition   string
	Locator     providers.Locator
	Opener      providers.Opener
	Synthesizer voice.Synthesizer
	HistoryFile string
	Out         io.Writer
	Logger      zerolog.Logger
}

type REPL struct {
	cfg   Config
	sess  *session.Session
	out   io.Writer
	draft *settings.Settings
}

func New(ctx context.Context, cfg Config) *REPL {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Partition == "" {
		cfg.Partition = "terminal"
	}
	r := &REPL{cfg: cfg, out: cfg.Out}
	r.sess = session.Open(ctx, cfg.Session, cfg.Partition, session.Capabilities{
		Locator:     cfg.Locator,
		Opener:      cfg.Opener,
		Synthesizer: cfg.Synthesizer,
		Sink:        session.SinkFunc(r.print),
	})
	return r
}

// Run reads from the terminal with history until /sair, EOF or Ctrl+C.
func (r *REPL) Run(ctx context.Context) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	if r.cfg.HistoryFile != "" {
		if f, err := os.Open(r.cfg.HistoryFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if err := os.MkdirAll(filepath.Dir(r.cfg.HistoryFile), 0o700); err != nil {
				r.cfg.Logger.Warn().Err(err).Msg("failed to create history dir")
				return
			}
			f, err := os.OpenFile(r.cfg.HistoryFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				r.cfg.Logger.Warn().Err(err).Msg("failed to write history")
				return
			}
			defer f.Close()
			_, _ = line.WriteHistory(f)
		}()
	}
	return r.Loop(ctx, line)
}

// Loop drives the session from any line source.
func (r *REPL) Loop(ctx context.Context, in LineReader) error {
	defer r.sess.Close()
	r.sess.Greet()
	fmt.Fprintln(r.out, "Digite /comandos para ver os comandos do terminal.")

	for {
		if ctx.Err() != nil {
			return nil
		}
		text, err := in.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		in.AppendHistory(text)

		if strings.HasPrefix(text, "/") {
			if !r.command(ctx, text) {
				return nil
			}
			continue
		}
		r.sess.Submit(ctx, text)
	}
}

func (r *REPL) print(e conversation.Entry) {
	if e.Role != conversation.RoleAssistant {
		return
	}
	fmt.Fprintf(r.out, "🤖 %s\n\n", conversation.PlainText(e.Content, true))
}

// command handles a slash command and reports whether the loop continues.
func (r *REPL) command(ctx context.Context, text string) bool {
	name, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/sair", "/exit", "/quit":
		return false
	case "/comandos":
		fmt.Fprintln(r.out, strings.Join([]string{
			"/config               mostra as configurações (e o rascunho)",
			"/set <campo> <valor>  altera o rascunho; customApis aceita @arquivo",
			"/salvar               salva o rascunho",
			"/descartar            descarta o rascunho",
			"/voz                  liga ou desliga a captura de voz",
			"/sair                 encerra",
		}, "\n"))
	case "/config":
		r.printSettings()
	case "/set":
		field, value, _ := strings.Cut(rest, " ")
		if r.draft == nil {
			cur := r.sess.Settings()
			r.draft = &cur
		}
		if err := setField(r.draft, field, strings.TrimSpace(value)); err != nil {
			fmt.Fprintf(r.out, "❌ %v\n", err)
			return true
		}
		r.printSettings()
	case "/salvar":
		if r.draft == nil {
			fmt.Fprintln(r.out, "Nada para salvar.")
			return true
		}
		if err := r.sess.SaveSettings(ctx, *r.draft); err != nil {
			r.cfg.Logger.Warn().Err(err).Str("partition", r.cfg.Partition).Msg("failed to save settings")
			return true
		}
		r.draft = nil
	case "/descartar":
		r.draft = nil
		fmt.Fprintln(r.out, "Alterações descartadas.")
	case "/voz":
		r.sess.ToggleCapture()
	default:
		fmt.Fprintf(r.out, "Comando desconhecido: %s\n", name)
	}
	return true
}

func (r *REPL) printSettings() {
	s := r.sess.Settings()
	label := "Configurações salvas"
	if r.draft != nil {
		s = *r.draft
		label = "Rascunho (use /salvar)"
	}
	fmt.Fprintf(r.out, "%s:\n  darkMode=%t animations=%t voiceResponse=%t volume=%d\n  weatherApiKey=%s newsApiKey=%s customApis=%d caracteres\n",
		label, s.DarkMode, s.Animations, s.VoiceResponse, s.Volume,
		maskKey(s.WeatherAPIKey), maskKey(s.NewsAPIKey), len([]rune(s.CustomAPIs)))
}

func setField(s *settings.Settings, field, value string) error {
	parseBool := func(dst *bool) error {
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s espera true ou false", field)
		}
		*dst = v
		return nil
	}

	switch field {
	case "darkMode":
		return parseBool(&s.DarkMode)
	case "animations":
		return parseBool(&s.Animations)
	case "voiceResponse":
		return parseBool(&s.VoiceResponse)
	case "volume":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 || n > 100 {
			return fmt.Errorf("volume espera um inteiro de 0 a 100")
		}
		s.Volume = n
	case "weatherApiKey":
		s.WeatherAPIKey = value
	case "newsApiKey":
		s.NewsAPIKey = value
	case "customApis":
		if path, ok := strings.CutPrefix(value, "@"); ok {
			b, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("ler %s: %w", path, err)
			}
			value = string(b)
		}
		s.CustomAPIs = value
	default:
		return fmt.Errorf("campo desconhecido %q", field)
	}
	return nil
}

func maskKey(key string) string {
	if key == "" {
		return "(vazia)"
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
