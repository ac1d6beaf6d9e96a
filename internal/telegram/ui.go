package telegram

import (
	"fmt"
	"html"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"orsi/internal/settings"
)

const (
	cbPrefix = "orsi:"

	cbMenu       = cbPrefix + "menu"
	cbDarkMode   = cbPrefix + "dark"
	cbAnimations = cbPrefix + "anim"
	cbVoice      = cbPrefix + "voice"
	cbVolumeUp   = cbPrefix + "vol_up"
	cbVolumeDown = cbPrefix + "vol_down"
	cbWeatherKey = cbPrefix + "weather_key"
	cbNewsKey    = cbPrefix + "news_key"
	cbCustomAPIs = cbPrefix + "custom"
	cbSave       = cbPrefix + "save"
	cbDiscard    = cbPrefix + "discard"
	cbHelp       = cbPrefix + "help"

	volumeStep    = 10
	keyPromptHint = "Envie o valor agora ou '-' para limpar."
	parseModeHTML = "HTML"
)

// applyAction mutates the draft for one menu button. It reports whether
// the button is a draft edit.
func applyAction(d *settingsDraft, action string) bool {
	s := &d.Settings
	switch action {
	case cbDarkMode:
		s.DarkMode = !s.DarkMode
	case cbAnimations:
		s.Animations = !s.Animations
	case cbVoice:
		s.VoiceResponse = !s.VoiceResponse
	case cbVolumeUp:
		s.Volume = min(100, s.Volume+volumeStep)
	case cbVolumeDown:
		s.Volume = max(0, s.Volume-volumeStep)
	case cbWeatherKey:
		d.Awaiting = awaitWeatherKey
	case cbNewsKey:
		d.Awaiting = awaitNewsKey
	case cbCustomAPIs:
		d.Awaiting = awaitCustomAPIs
	default:
		return false
	}
	return true
}

// applyText stores free text into the awaited field. "-" clears it.
func applyText(d *settingsDraft, text string) bool {
	text = strings.TrimSpace(text)
	if text == "-" {
		text = ""
	}
	switch d.Awaiting {
	case awaitWeatherKey:
		d.Settings.WeatherAPIKey = text
	case awaitNewsKey:
		d.Settings.NewsAPIKey = text
	case awaitCustomAPIs:
		d.Settings.CustomAPIs = text
	default:
		return false
	}
	d.Awaiting = ""
	return true
}

func awaitingPrompt(field string) string {
	switch field {
	case awaitWeatherKey:
		return "🔑 Chave da API de clima. " + keyPromptHint
	case awaitNewsKey:
		return "🔑 Chave da API de notícias. " + keyPromptHint
	case awaitCustomAPIs:
		return "🔌 APIs personalizadas em YAML ou JSON. " + keyPromptHint
	default:
		return ""
	}
}

func menuText(d settingsDraft) string {
	return summaryText(d.Settings) + "\n\n<i>As alterações só valem depois de Salvar.</i>"
}

func summaryText(s settings.Settings) string {
	return strings.Join([]string{
		"⚙️ <b>Configurações</b>",
		"",
		fmt.Sprintf("Modo escuro: %s", onOff(s.DarkMode)),
		fmt.Sprintf("Animações: %s", onOff(s.Animations)),
		fmt.Sprintf("Resposta por voz: %s", onOff(s.VoiceResponse)),
		fmt.Sprintf("Volume: %d%%", s.Volume),
		fmt.Sprintf("API de clima: %s", masked(s.WeatherAPIKey)),
		fmt.Sprintf("API de notícias: %s", masked(s.NewsAPIKey)),
		fmt.Sprintf("APIs personalizadas: %s", customSummary(s.CustomAPIs)),
	}, "\n")
}

func menuKeyboard(d settingsDraft) *gotgbot.InlineKeyboardMarkup {
	s := d.Settings
	return &gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
		{
			{Text: "🌙 Modo escuro " + onOff(s.DarkMode), CallbackData: cbDarkMode},
			{Text: "✨ Animações " + onOff(s.Animations), CallbackData: cbAnimations},
		},
		{
			{Text: "🔊 Voz " + onOff(s.VoiceResponse), CallbackData: cbVoice},
		},
		{
			{Text: "➖ Volume", CallbackData: cbVolumeDown},
			{Text: fmt.Sprintf("%d%%", s.Volume), CallbackData: cbMenu},
			{Text: "➕ Volume", CallbackData: cbVolumeUp},
		},
		{
			{Text: "🔑 Clima", CallbackData: cbWeatherKey},
			{Text: "🔑 Notícias", CallbackData: cbNewsKey},
			{Text: "🔌 APIs", CallbackData: cbCustomAPIs},
		},
		{
			{Text: "💾 Salvar", CallbackData: cbSave},
			{Text: "✖️ Descartar", CallbackData: cbDiscard},
		},
	}}
}

func startKeyboard() *gotgbot.InlineKeyboardMarkup {
	return &gotgbot.InlineKeyboardMarkup{InlineKeyboard: [][]gotgbot.InlineKeyboardButton{
		{
			{Text: "📚 Comandos", CallbackData: cbHelp},
			{Text: "⚙️ Configurações", CallbackData: cbMenu},
		},
	}}
}

func locationKeyboard() gotgbot.ReplyKeyboardMarkup {
	return gotgbot.ReplyKeyboardMarkup{
		Keyboard:        [][]gotgbot.KeyboardButton{{{Text: "📍 Enviar localização", RequestLocation: true}}},
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}
}

func onOff(v bool) string {
	if v {
		return "✅"
	}
	return "❌"
}

func masked(key string) string {
	if strings.TrimSpace(key) == "" {
		return "não definida"
	}
	if len(key) <= 4 {
		return "••••"
	}
	return "••••" + html.EscapeString(key[len(key)-4:])
}

func customSummary(text string) string {
	if strings.TrimSpace(text) == "" {
		return "nenhuma"
	}
	return fmt.Sprintf("%d caracteres", len([]rune(text)))
}

func (s *Service) replyWithMarkup(ctx *ext.Context, b *gotgbot.Bot, text string, markup *gotgbot.InlineKeyboardMarkup) error {
	if ctx == nil || ctx.EffectiveChat == nil {
		return nil
	}
	opts := &gotgbot.SendMessageOpts{ParseMode: parseModeHTML}
	if markup != nil {
		opts.ReplyMarkup = *markup
	}
	_, err := b.SendMessage(ctx.EffectiveChat.Id, text, opts)
	return err
}

func (s *Service) editOrReplyCallback(ctx *ext.Context, b *gotgbot.Bot, text string, markup *gotgbot.InlineKeyboardMarkup) error {
	if ctx != nil && ctx.CallbackQuery != nil && ctx.CallbackQuery.Message != nil {
		opts := &gotgbot.EditMessageTextOpts{ParseMode: parseModeHTML}
		if markup != nil {
			opts.ReplyMarkup = *markup
		}
		_, _, err := ctx.CallbackQuery.Message.EditText(b, text, opts)
		if err == nil {
			return nil
		}
		if strings.Contains(strings.ToLower(err.Error()), "message is not modified") {
			return nil
		}
	}
	return s.replyWithMarkup(ctx, b, text, markup)
}
