// Package telegram hosts one assistant session per Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"orsi/internal/conversation"
	"orsi/internal/metrics"
	"orsi/internal/providers"
	"orsi/internal/session"
)

// Shared locations older than this are requested again.
const locationMaxAge = 15 * time.Minute

const (
	defaultSessionTTL = 2 * time.Hour
	sweepInterval     = time.Minute
)

type Service struct {
	sessionCfg session.Config
	wizard     *wizardStore
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	sessionTTL time.Duration
	now        func() time.Time

	mu        sync.Mutex
	chats     map[int64]*chat
	lastSweep time.Time
}

type Config struct {
	Session   session.Config
	Redis     *redis.Client
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	WizardTTL time.Duration
	// SessionTTL closes chat sessions idle for longer. Defaults to 2h.
	SessionTTL time.Duration
}

func NewService(cfg Config) *Service {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.WizardTTL <= 0 {
		cfg.WizardTTL = 20 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	return &Service{
		sessionCfg: cfg.Session,
		wizard:     newWizardStore(cfg.Redis, cfg.WizardTTL),
		logger:     cfg.Logger.With().Str("component", "telegram").Logger(),
		metrics:    m,
		sessionTTL: cfg.SessionTTL,
		now:        time.Now,
		chats:      make(map[int64]*chat),
	}
}

func (s *Service) Register(d *ext.Dispatcher) {
	d.AddHandler(handlers.NewCommand("start", s.start))
	d.AddHandler(handlers.NewCommand("help", s.help))
	d.AddHandler(handlers.NewCommand("ajuda", s.help))
	d.AddHandler(handlers.NewCommand("config", s.config))
	d.AddHandler(handlers.NewCommand("menu", s.config))
	d.AddHandler(handlers.NewCommand("cancel", s.cancelDraft))
	d.AddHandler(handlers.NewCommand("orsi", s.ask))
	d.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbPrefix), s.onCallback))
	d.AddHandler(handlers.NewMessage(message.Location, s.onLocation))
	d.AddHandler(handlers.NewMessage(func(msg *gotgbot.Message) bool {
		return message.Private(msg) && message.Text(msg)
	}, s.privateText))
}

// Close ends every chat session.
func (s *Service) Close() {
	s.mu.Lock()
	chats := s.chats
	s.chats = make(map[int64]*chat)
	s.mu.Unlock()
	for _, c := range chats {
		c.sess.Close()
	}
}

type chat struct {
	sess     *session.Session
	out      *chatOutput
	loc      *chatLocator
	lastSeen time.Time
}

// chat returns the chat's session, opening one on first contact. Settings
// live in the store, so an evicted chat comes back with its preferences.
func (s *Service) chat(b *gotgbot.Bot, chatID int64) *chat {
	s.mu.Lock()
	now := s.now()
	idle := s.sweepLocked(now)
	c, ok := s.chats[chatID]
	if !ok {
		out := &chatOutput{bot: b, chatID: chatID, logger: s.logger.With().Int64("chat_id", chatID).Logger()}
		loc := newChatLocator(out.requestLocation)
		c = &chat{out: out, loc: loc}
		c.sess = session.Open(context.Background(), s.sessionCfg, partitionFor(chatID), session.Capabilities{
			Locator: loc,
			Opener:  out,
			Sink:    out,
		})
		s.chats[chatID] = c
	}
	c.lastSeen = now
	s.mu.Unlock()

	for _, old := range idle {
		old.sess.Close()
	}
	return c
}

// sweepLocked removes chats idle for longer than the session TTL, at most
// once per sweepInterval. The caller closes the returned sessions.
func (s *Service) sweepLocked(now time.Time) []*chat {
	if now.Sub(s.lastSweep) < sweepInterval {
		return nil
	}
	s.lastSweep = now
	var idle []*chat
	for id, c := range s.chats {
		if now.Sub(c.lastSeen) > s.sessionTTL {
			delete(s.chats, id)
			idle = append(idle, c)
		}
	}
	if len(idle) > 0 {
		s.logger.Debug().Int("evicted", len(idle)).Int("open", len(s.chats)).Msg("idle chat sessions closed")
	}
	return idle
}

func partitionFor(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

// chatOutput renders assistant entries and links into one chat.
type chatOutput struct {
	bot    *gotgbot.Bot
	chatID int64
	logger zerolog.Logger
}

var (
	_ session.Sink      = (*chatOutput)(nil)
	_ providers.Opener  = (*chatOutput)(nil)
	_ providers.Locator = (*chatLocator)(nil)
)

func (o *chatOutput) Entry(e conversation.Entry) {
	if e.Role != conversation.RoleAssistant {
		return
	}
	_, err := o.bot.SendMessage(o.chatID, conversation.TelegramHTML(e.Content), &gotgbot.SendMessageOpts{
		ParseMode: parseModeHTML,
	})
	if err == nil {
		return
	}
	o.logger.Warn().Err(err).Msg("html reply rejected, sending plain text")
	if _, err := o.bot.SendMessage(o.chatID, conversation.PlainText(e.Content, true), nil); err != nil {
		o.logger.Error().Err(err).Msg("send reply")
	}
}

// Open offers the URL as an inline button; Telegram opens it in the
// user's browser.
func (o *chatOutput) Open(_ context.Context, url string) error {
	_, err := o.bot.SendMessage(o.chatID, "🔗 Toque para abrir:", &gotgbot.SendMessageOpts{
		ReplyMarkup: gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
			{{Text: "Abrir no navegador", Url: url}},
		}},
	})
	if err != nil {
		return fmt.Errorf("send link button: %w", err)
	}
	return nil
}

func (o *chatOutput) requestLocation() error {
	_, err := o.bot.SendMessage(o.chatID, "📍 Compartilhe sua localização para ver o clima.", &gotgbot.SendMessageOpts{
		ReplyMarkup: locationKeyboard(),
	})
	return err
}

// chatLocator answers with the last shared location or asks for one and
// waits for the next location message.
type chatLocator struct {
	prompt func() error
	now    func() time.Time

	mu      sync.Mutex
	last    *providers.Position
	lastAt  time.Time
	waiters []chan providers.Position
}

func newChatLocator(prompt func() error) *chatLocator {
	return &chatLocator{prompt: prompt, now: time.Now}
}

func (l *chatLocator) Locate(ctx context.Context) (providers.Position, error) {
	l.mu.Lock()
	if l.last != nil && l.now().Sub(l.lastAt) < locationMaxAge {
		pos := *l.last
		l.mu.Unlock()
		return pos, nil
	}
	ch := make(chan providers.Position, 1)
	first := len(l.waiters) == 0
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	if first {
		if err := l.prompt(); err != nil {
			l.drop(ch)
			return providers.Position{}, fmt.Errorf("%w: ask for location: %v", providers.ErrPermissionDenied, err)
		}
	}

	select {
	case pos := <-ch:
		return pos, nil
	case <-ctx.Done():
		l.drop(ch)
		return providers.Position{}, fmt.Errorf("%w: no location shared: %v", providers.ErrPermissionDenied, ctx.Err())
	}
}

// Deliver records a shared location and reports whether a request was
// waiting for it.
func (l *chatLocator) Deliver(pos providers.Position) bool {
	l.mu.Lock()
	l.last = &pos
	l.lastAt = l.now()
	waiters := l.waiters
	l.waiters = nil
	l.mu.Unlock()
	for _, ch := range waiters {
		ch <- pos
	}
	return len(waiters) > 0
}

func (l *chatLocator) drop(ch chan providers.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w == ch {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
}
