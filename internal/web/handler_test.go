package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"orsi/internal/providers"
	"orsi/internal/router"
	"orsi/internal/session"
	"orsi/internal/settings"
)

type locatingAdapter struct{}

func (locatingAdapter) Name() string { return "weather" }

func (locatingAdapter) Fetch(ctx context.Context, req providers.Request) providers.Result {
	pos, err := req.Locator.Locate(ctx)
	if err != nil {
		return providers.Failure("sem localização", err)
	}
	return providers.Success(fmt.Sprintf("lat %.1f lon %.1f", pos.Latitude, pos.Longitude))
}

type staticAdapter string

func (s staticAdapter) Name() string { return string(s) }

func (s staticAdapter) Fetch(context.Context, providers.Request) providers.Result {
	return providers.Success(string(s))
}

type frame struct {
	Type     string            `json:"type"`
	ClientID string            `json:"client_id"`
	URL      string            `json:"url"`
	Text     string            `json:"text"`
	Lang     string            `json:"lang"`
	Volume   float64           `json:"volume"`
	Settings settings.Settings `json:"settings"`
	Entry    struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"entry"`
}

func newTestServer(t *testing.T, kv settings.KV) *httptest.Server {
	t.Helper()
	set := providers.Set{
		Weather:  locatingAdapter{},
		News:     staticAdapter("news"),
		Currency: staticAdapter("currency"),
		Time:     staticAdapter("time"),
		Joke:     staticAdapter("joke"),
		Quote:    staticAdapter("quote"),
		Search:   staticAdapter("search"),
	}
	h := NewHandler(Config{
		Session: session.Config{
			Router: router.New(router.Config{Providers: set, Logger: zerolog.Nop()}),
			Store:  settings.NewStore(kv),
			Logger: zerolog.Nop(),
		},
		Logger: zerolog.Nop(),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// next reads frames until one of the wanted type arrives.
func next(t *testing.T, ws *websocket.Conn, typ string) frame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f frame
		if err := ws.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if f.Type == typ {
			return f
		}
	}
}

func TestConnectSendsSettingsAndGreeting(t *testing.T) {
	srv := newTestServer(t, settings.NewMemoryKV())
	ws := dial(t, srv, "client_id=a")

	if f := next(t, ws, FrameSettings); f.Settings != settings.Defaults() {
		t.Fatalf("expected default settings, got %+v", f.Settings)
	}
	f := next(t, ws, FrameEntry)
	if f.Entry.Role != "assistant" || !strings.Contains(f.Entry.Content, "Eu sou o ORSI") {
		t.Fatalf("expected greeting entry, got %+v", f.Entry)
	}
}

func TestMessageProducesEntriesAndSpeech(t *testing.T) {
	srv := newTestServer(t, settings.NewMemoryKV())
	ws := dial(t, srv, "client_id=a")
	next(t, ws, FrameEntry)

	if err := ws.WriteJSON(Inbound{Type: FrameMessage, Content: "ajuda"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := next(t, ws, FrameEntry); f.Entry.Role != "user" || f.Entry.Content != "ajuda" {
		t.Fatalf("expected user entry, got %+v", f.Entry)
	}
	if f := next(t, ws, FrameEntry); f.Entry.Content != router.HelpText {
		t.Fatalf("expected help entry, got %+v", f.Entry)
	}
	f := next(t, ws, FrameSpeak)
	if f.Lang != "pt-BR" || f.Volume != 0.8 || !strings.HasPrefix(f.Text, "📚 Comandos Disponíveis:") {
		t.Fatalf("unexpected speak frame %+v", f)
	}
}

func TestWeatherRequestsLocation(t *testing.T) {
	srv := newTestServer(t, settings.NewMemoryKV())
	ws := dial(t, srv, "")
	next(t, ws, FrameEntry)

	_ = ws.WriteJSON(Inbound{Type: FrameMessage, Content: "clima"})
	next(t, ws, FrameLocate)
	_ = ws.WriteJSON(Inbound{Type: FrameLocation, Latitude: -23.5, Longitude: -46.6})

	for {
		f := next(t, ws, FrameEntry)
		if f.Entry.Role == "assistant" {
			if f.Entry.Content != "lat -23.5 lon -46.6" {
				t.Fatalf("unexpected weather entry %q", f.Entry.Content)
			}
			break
		}
	}

	_ = ws.WriteJSON(Inbound{Type: FrameMessage, Content: "tempo"})
	next(t, ws, FrameLocate)
	_ = ws.WriteJSON(Inbound{Type: FrameLocationError, Error: "denied"})
	for {
		f := next(t, ws, FrameEntry)
		if f.Entry.Role == "assistant" {
			if f.Entry.Content != "sem localização" {
				t.Fatalf("expected fallback entry, got %q", f.Entry.Content)
			}
			return
		}
	}
}

func TestVoiceToggleCapturesTranscript(t *testing.T) {
	srv := newTestServer(t, settings.NewMemoryKV())
	ws := dial(t, srv, "")
	next(t, ws, FrameEntry)

	_ = ws.WriteJSON(Inbound{Type: FrameVoiceToggle})
	if f := next(t, ws, FrameEntry); f.Entry.Content != session.ListeningText {
		t.Fatalf("expected listening entry, got %q", f.Entry.Content)
	}
	if f := next(t, ws, FrameCaptureStart); f.Lang != "pt-BR" {
		t.Fatalf("unexpected capture lang %q", f.Lang)
	}
	_ = ws.WriteJSON(Inbound{Type: FrameTranscript, Content: "conte uma piada"})
	if f := next(t, ws, FrameEntry); f.Entry.Role != "user" || f.Entry.Content != "conte uma piada" {
		t.Fatalf("expected transcript as user entry, got %+v", f.Entry)
	}
	if f := next(t, ws, FrameEntry); f.Entry.Content != "joke" {
		t.Fatalf("expected joke entry, got %+v", f.Entry)
	}
}

func TestSpeechDisabledReportsUnsupported(t *testing.T) {
	srv := newTestServer(t, settings.NewMemoryKV())
	ws := dial(t, srv, "speech=0")
	next(t, ws, FrameEntry)

	_ = ws.WriteJSON(Inbound{Type: FrameVoiceToggle})
	if f := next(t, ws, FrameEntry); f.Entry.Content != session.CaptureUnsupported {
		t.Fatalf("expected unsupported entry, got %q", f.Entry.Content)
	}
}

func TestSettingsSavePersistsPerClient(t *testing.T) {
	kv := settings.NewMemoryKV()
	srv := newTestServer(t, kv)
	ws := dial(t, srv, "client_id=alice")
	next(t, ws, FrameEntry)

	raw := []byte(`{"darkMode":false,"animations":true,"voiceResponse":false,"volume":"40","weatherApiKey":"k","newsApiKey":"","customApis":""}`)
	if err := ws.WriteJSON(Inbound{Type: FrameSettingsSave, Settings: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := next(t, ws, FrameEntry); f.Entry.Content != session.SettingsSavedText {
		t.Fatalf("expected save acknowledgement, got %q", f.Entry.Content)
	}
	f := next(t, ws, FrameSettings)
	if f.Settings.DarkMode || f.Settings.VoiceResponse || f.Settings.Volume != 40 || f.Settings.WeatherAPIKey != "k" {
		t.Fatalf("unexpected saved settings %+v", f.Settings)
	}

	other := dial(t, srv, "client_id=bob")
	if f := next(t, other, FrameSettings); f.Settings != settings.Defaults() {
		t.Fatalf("partitions must be isolated, got %+v", f.Settings)
	}
	again := dial(t, srv, "client_id=alice")
	if f := next(t, again, FrameSettings); f.Settings.Volume != 40 {
		t.Fatalf("expected persisted settings for alice, got %+v", f.Settings)
	}
}

func TestClientsWithoutIDGetOwnPartition(t *testing.T) {
	srv := newTestServer(t, settings.NewMemoryKV())

	first := dial(t, srv, "")
	id := next(t, first, FrameSession).ClientID
	if id == "" {
		t.Fatalf("expected a generated client id")
	}
	next(t, first, FrameEntry)

	raw := []byte(`{"darkMode":true,"animations":true,"voiceResponse":true,"volume":"80","weatherApiKey":"chave-secreta","newsApiKey":"","customApis":""}`)
	if err := first.WriteJSON(Inbound{Type: FrameSettingsSave, Settings: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if f := next(t, first, FrameSettings); f.Settings.WeatherAPIKey != "chave-secreta" {
		t.Fatalf("expected saved key, got %+v", f.Settings)
	}

	second := dial(t, srv, "")
	if other := next(t, second, FrameSession).ClientID; other == "" || other == id {
		t.Fatalf("expected a distinct client id, got %q and %q", id, other)
	}
	if f := next(t, second, FrameSettings); f.Settings != settings.Defaults() {
		t.Fatalf("id-less clients must not share settings, got %+v", f.Settings)
	}

	back := dial(t, srv, "client_id="+id)
	if got := next(t, back, FrameSession).ClientID; got != id {
		t.Fatalf("expected client id %q echoed, got %q", id, got)
	}
	if f := next(t, back, FrameSettings); f.Settings.WeatherAPIKey != "chave-secreta" {
		t.Fatalf("expected settings restored by client id, got %+v", f.Settings)
	}
}

func TestCustomAPIRefusesInternalURL(t *testing.T) {
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"text":"INTERNAL-ONLY-SECRET"}`))
	}))
	defer internal.Close()

	srv := newTestServer(t, settings.NewMemoryKV())
	ws := dial(t, srv, "")
	next(t, ws, FrameEntry)

	updated := settings.Defaults()
	updated.CustomAPIs = "segredo:\n  triggers: [segredo]\n  url: " + internal.URL + "\n"
	raw, err := json.Marshal(updated)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := ws.WriteJSON(Inbound{Type: FrameSettingsSave, Settings: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
	next(t, ws, FrameSettings)

	if err := ws.WriteJSON(Inbound{Type: FrameMessage, Content: "segredo"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		f := next(t, ws, FrameEntry)
		if f.Entry.Role != "assistant" {
			continue
		}
		if strings.Contains(f.Entry.Content, "INTERNAL-ONLY-SECRET") ||
			!strings.Contains(f.Entry.Content, "Não foi possível consultar segredo") {
			t.Fatalf("expected refusal, got %q", f.Entry.Content)
		}
		break
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("internal server was contacted %d times", n)
	}
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(Config{AllowedOrigins: []string{"https://orsi.example"}, Logger: zerolog.Nop()})
	r := httptest.NewRequest("GET", "/ws", nil)
	if !h.checkOrigin(r) {
		t.Fatalf("missing origin must be accepted")
	}
	r.Header.Set("Origin", "https://evil.example")
	if h.checkOrigin(r) {
		t.Fatalf("unlisted origin must be rejected")
	}
	r.Header.Set("Origin", "https://ORSI.example")
	if !h.checkOrigin(r) {
		t.Fatalf("listed origin must be accepted")
	}
}
