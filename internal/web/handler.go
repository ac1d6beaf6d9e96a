// Package web serves the browser front-end over a websocket. Each
// connection hosts one session.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"orsi/internal/metrics"
	"orsi/internal/providers"
	"orsi/internal/session"
	"orsi/internal/settings"
)

const (
	defaultWriteTimeout = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = pongWait * 9 / 10
	maxFrameBytes       = 64 << 10
	maxClientIDLen      = 128
	partitionPrefix     = "web:"
)

type Config struct {
	Session        session.Config
	AllowedOrigins []string
	WriteTimeout   time.Duration
	Logger         zerolog.Logger
	Metrics        *metrics.Metrics
}

type Handler struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(cfg Config) *Handler {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	h := &Handler{
		cfg:     cfg,
		logger:  cfg.Logger.With().Str("component", "web").Logger(),
		metrics: m,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// checkOrigin accepts any origin when no allow list is configured.
// Requests without an Origin header come from non-browser clients.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.cfg.AllowedOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request. client_id selects the settings
// partition; a connection without one gets a fresh id, announced in the
// first frame. speech=0 tells the server the page cannot recognize speech.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(maxFrameBytes)

	c := newConn(ws, h.cfg.WriteTimeout)
	defer c.close()

	h.metrics.WSConnections.Inc()
	defer h.metrics.WSConnections.Dec()

	q := r.URL.Query()
	clientID := strings.TrimSpace(q.Get("client_id"))
	if clientID == "" || len(clientID) > maxClientIDLen {
		clientID = uuid.NewString()
	}
	caps := session.Capabilities{
		Locator:     c,
		Opener:      c,
		Synthesizer: c,
		Sink:        c,
	}
	if q.Get("speech") != "0" {
		caps.Recognizer = c
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := session.Open(ctx, h.cfg.Session, partitionPrefix+clientID, caps)
	logger := h.logger.With().Str("session", sess.ID().String()).Logger()
	logger.Info().Str("partition", sess.Partition()).Msg("websocket connected")

	// Pending submits may be parked on a locate or capture; cancel and
	// close release them before the session goes away.
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		c.close()
		inflight.Wait()
		sess.Close()
		logger.Info().Msg("websocket disconnected")
	}()

	_ = c.send(sessionFrame{Type: FrameSession, ClientID: clientID})
	_ = c.send(settingsFrame{Type: FrameSettings, Settings: sess.Settings()})
	sess.Greet()

	go h.keepAlive(c)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	submit := func(text string) {
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			sess.Submit(ctx, text)
		}()
	}

	for {
		var in Inbound
		if err := ws.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		switch in.Type {
		case FrameMessage:
			submit(in.Content)
		case FrameTranscript:
			if !c.resolveCapture(captureResult{text: in.Content}) {
				submit(in.Content)
			}
		case FrameCaptureEnd:
			c.resolveCapture(captureResult{})
		case FrameCaptureError:
			c.resolveCapture(captureResult{err: fmt.Errorf("browser recognition: %s", in.Error)})
		case FrameVoiceToggle:
			sess.ToggleCapture()
		case FrameLocation:
			c.resolveLocate(locateResult{pos: providers.Position{Latitude: in.Latitude, Longitude: in.Longitude}})
		case FrameLocationError:
			c.resolveLocate(locateResult{err: fmt.Errorf("%w: %s", providers.ErrPermissionDenied, in.Error)})
		case FrameSettingsGet:
			_ = c.send(settingsFrame{Type: FrameSettings, Settings: sess.Settings()})
		case FrameSettingsSave:
			h.saveSettings(ctx, sess, c, in.Settings, logger)
		default:
			logger.Debug().Str("type", in.Type).Msg("unknown frame")
		}
	}
}

func (h *Handler) saveSettings(ctx context.Context, sess *session.Session, c *conn, raw json.RawMessage, logger zerolog.Logger) {
	next, err := settings.Decode(raw)
	if err != nil {
		logger.Warn().Err(err).Msg("settings frame rejected")
		return
	}
	if err := sess.SaveSettings(ctx, next); err != nil && !errors.Is(err, settings.ErrInvalid) {
		logger.Error().Err(err).Msg("save settings")
	}
	_ = c.send(settingsFrame{Type: FrameSettings, Settings: sess.Settings()})
}

func (h *Handler) keepAlive(c *conn) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.ping(); err != nil {
				c.close()
				return
			}
		}
	}
}
