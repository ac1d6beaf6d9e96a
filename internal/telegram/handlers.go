package telegram

import (
	"context"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"orsi/internal/providers"
)

func (s *Service) start(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveChat == nil {
		return nil
	}
	c := s.chat(b, ctx.EffectiveChat.Id)
	c.sess.Greet()
	return s.replyWithMarkup(ctx, b, "Escreva sua mensagem ou use os botões abaixo.", startKeyboard())
}

func (s *Service) help(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveChat == nil {
		return nil
	}
	s.chat(b, ctx.EffectiveChat.Id).sess.Submit(context.Background(), "ajuda")
	return nil
}

// ask routes "/orsi <text>", the way to talk to the assistant in groups.
func (s *Service) ask(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	if msg == nil || ctx.EffectiveChat == nil {
		return nil
	}
	text := strings.TrimSpace(commandRemainder(msg.GetText()))
	if text == "" {
		return s.reply(ctx, b, "Uso: /orsi <mensagem>")
	}
	s.chat(b, ctx.EffectiveChat.Id).sess.Submit(context.Background(), text)
	return nil
}

func (s *Service) privateText(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveChat == nil || ctx.EffectiveMessage == nil || ctx.EffectiveChat.Type != "private" {
		return nil
	}
	text := strings.TrimSpace(ctx.EffectiveMessage.GetText())
	if text == "" || strings.HasPrefix(text, "/") {
		return nil
	}
	chatID := ctx.EffectiveChat.Id

	draft, err := s.wizard.Get(context.Background(), chatID)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("draft load failed")
	}
	if draft != nil && draft.Awaiting != "" {
		applyText(draft, text)
		if err := s.wizard.Set(context.Background(), chatID, *draft); err != nil {
			return s.reply(ctx, b, "Não foi possível guardar a alteração. Tente /config novamente.")
		}
		return s.replyWithMarkup(ctx, b, menuText(*draft), menuKeyboard(*draft))
	}

	s.chat(b, chatID).sess.Submit(context.Background(), text)
	return nil
}

func (s *Service) onLocation(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	if msg == nil || msg.Location == nil || ctx.EffectiveChat == nil {
		return nil
	}
	c := s.chat(b, ctx.EffectiveChat.Id)
	waiting := c.loc.Deliver(providers.Position{Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude})
	if waiting {
		return nil
	}
	_, err := b.SendMessage(ctx.EffectiveChat.Id, "📍 Localização recebida. Pergunte sobre o clima!", &gotgbot.SendMessageOpts{
		ReplyMarkup: gotgbot.ReplyKeyboardRemove{RemoveKeyboard: true},
	})
	return err
}

func (s *Service) config(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveChat == nil {
		return nil
	}
	draft, err := s.openDraft(b, ctx.EffectiveChat.Id)
	if err != nil {
		s.logger.Error().Err(err).Msg("open settings draft")
		return s.reply(ctx, b, "Não foi possível abrir as configurações agora.")
	}
	return s.replyWithMarkup(ctx, b, menuText(draft), menuKeyboard(draft))
}

func (s *Service) cancelDraft(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveChat == nil {
		return nil
	}
	if err := s.wizard.Clear(context.Background(), ctx.EffectiveChat.Id); err != nil {
		return s.reply(ctx, b, "Não foi possível descartar as alterações agora.")
	}
	return s.reply(ctx, b, "Alterações descartadas.")
}

// openDraft returns the pending draft or starts one from the saved settings.
func (s *Service) openDraft(b *gotgbot.Bot, chatID int64) (settingsDraft, error) {
	existing, err := s.wizard.Get(context.Background(), chatID)
	if err != nil {
		return settingsDraft{}, err
	}
	if existing != nil {
		existing.Awaiting = ""
		return *existing, s.wizard.Set(context.Background(), chatID, *existing)
	}
	draft := settingsDraft{Settings: s.chat(b, chatID).sess.Settings()}
	return draft, s.wizard.Set(context.Background(), chatID, draft)
}

func (s *Service) reply(ctx *ext.Context, b *gotgbot.Bot, text string) error {
	if ctx.EffectiveChat == nil {
		return nil
	}
	_, err := b.SendMessage(ctx.EffectiveChat.Id, text, nil)
	return err
}

func commandRemainder(text string) string {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
