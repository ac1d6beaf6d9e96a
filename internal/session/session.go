// Package session owns one conversation: its log, its settings and the
// capabilities of the surface hosting it.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"orsi/internal/conversation"
	"orsi/internal/metrics"
	"orsi/internal/providers"
	"orsi/internal/providers/registry"
	"orsi/internal/router"
	"orsi/internal/settings"
	"orsi/internal/voice"
)

const (
	ListeningText       = "🎤 Estou ouvindo..."
	CaptureUnsupported  = "❌ Reconhecimento de voz não suportado neste dispositivo."
	SettingsSavedText   = "✅ Configurações salvas com sucesso!"
	SettingsInvalidText = "❌ Não foi possível salvar as configurações."
)

// Sink observes every entry appended to the log.
type Sink interface {
	Entry(e conversation.Entry)
}

type SinkFunc func(e conversation.Entry)

func (f SinkFunc) Entry(e conversation.Entry) { f(e) }

// Capabilities are supplied by the surface. Any of them may be nil.
type Capabilities struct {
	Locator     providers.Locator
	Opener      providers.Opener
	Recognizer  voice.Recognizer
	Synthesizer voice.Synthesizer
	Sink        Sink
}

type Config struct {
	Router         *router.Router
	Store          *settings.Store
	Custom         registry.CustomOptions
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
	Locale         string
	CaptureTimeout time.Duration
	Now            func() time.Time
}

type Session struct {
	id        uuid.UUID
	partition string

	router  *router.Router
	store   *settings.Store
	custopt registry.CustomOptions
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	caps   Capabilities
	log    *conversation.Log
	bridge *voice.Bridge

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	settings settings.Settings
	custom   []router.Custom
}

// Open loads the partition's settings and starts a session. A settings
// read failure is logged and the defaults are used.
func Open(ctx context.Context, cfg Config, partition string, caps Capabilities) *Session {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if partition == "" {
		partition = "default"
	}

	id := uuid.New()
	logger := cfg.Logger.With().Str("session", id.String()).Str("partition", partition).Logger()
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Session{
		id:        id,
		partition: partition,
		router:    cfg.Router,
		store:     cfg.Store,
		custopt:   cfg.Custom,
		logger:    logger,
		metrics:   m,
		now:       cfg.Now,
		caps:      caps,
		log:       conversation.NewLog(),
		ctx:       sctx,
		cancel:    cancel,
	}
	s.bridge = voice.NewBridge(voice.Config{
		Recognizer:     caps.Recognizer,
		Synthesizer:    caps.Synthesizer,
		Locale:         cfg.Locale,
		CaptureTimeout: cfg.CaptureTimeout,
		Logger:         logger,
	})

	loaded, err := cfg.Store.Load(ctx, partition)
	if err != nil {
		logger.Warn().Err(err).Msg("load settings, using defaults")
	}
	s.apply(loaded)
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Partition() string { return s.partition }

func (s *Session) Log() *conversation.Log { return s.log }

func (s *Session) Listening() bool { return s.bridge.Listening() }

func (s *Session) Settings() settings.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Greet appends the time-of-day greeting.
func (s *Session) Greet() conversation.Entry {
	return s.append(conversation.RoleAssistant, router.Greeting(s.now()))
}

// Submit routes one user message and appends both sides of the exchange.
// Blank input is ignored.
func (s *Session) Submit(ctx context.Context, text string) (router.Reply, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return router.Reply{}, false
	}
	s.metrics.Messages.Inc()
	s.append(conversation.RoleUser, text)

	s.mu.RLock()
	cur := s.settings
	custom := s.custom
	s.mu.RUnlock()

	reply := s.router.Route(ctx, providers.Request{
		Input:         text,
		Locator:       s.caps.Locator,
		Opener:        s.caps.Opener,
		WeatherAPIKey: cur.WeatherAPIKey,
		NewsAPIKey:    cur.NewsAPIKey,
	}, custom...)

	s.logger.Debug().Str("intent", string(reply.Intent)).Bool("fallback", reply.Fallback).Msg("routed")
	s.append(conversation.RoleAssistant, reply.Text)
	s.bridge.Speak(reply.Text, cur.VoiceResponse, cur.Volume)
	return reply, true
}

// SaveSettings persists the whole object and applies it on success.
func (s *Session) SaveSettings(ctx context.Context, v settings.Settings) error {
	if err := s.store.Save(ctx, s.partition, v); err != nil {
		s.logger.Warn().Err(err).Msg("save settings")
		s.append(conversation.RoleAssistant, SettingsInvalidText)
		return err
	}
	s.apply(v)
	s.append(conversation.RoleAssistant, SettingsSavedText)
	return nil
}

// ToggleCapture stops an active capture or starts a new one. The
// transcript is submitted as if typed.
func (s *Session) ToggleCapture() {
	if s.bridge.Listening() {
		s.bridge.StopCapture()
		return
	}
	if !s.bridge.CanCapture() {
		s.append(conversation.RoleAssistant, CaptureUnsupported)
		return
	}
	s.append(conversation.RoleAssistant, ListeningText)
	err := s.bridge.StartCapture(s.ctx, func(transcript string) {
		s.Submit(s.ctx, transcript)
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("start capture")
	}
}

// Close stops capture and waits for background speech to return.
func (s *Session) Close() {
	s.bridge.StopCapture()
	s.cancel()
	s.bridge.Wait()
}

func (s *Session) apply(v settings.Settings) {
	custom, err := registry.BuildCustom(v.CustomAPIs, s.custopt)
	if err != nil {
		s.logger.Warn().Err(err).Msg("custom apis ignored")
		custom = nil
	}
	routes := make([]router.Custom, 0, len(custom))
	for _, c := range custom {
		routes = append(routes, c)
	}

	s.mu.Lock()
	s.settings = v
	s.custom = routes
	s.mu.Unlock()
}

func (s *Session) append(role conversation.Role, content string) conversation.Entry {
	e := s.log.Append(role, content)
	if s.caps.Sink != nil {
		s.caps.Sink.Entry(e)
	}
	return e
}
