package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"orsi/internal/settings"
)

func (s *Service) onCallback(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx == nil || ctx.CallbackQuery == nil {
		return nil
	}
	chatID, ok := s.callbackChatID(ctx)
	if !ok {
		s.answerCallback(b, ctx, "Chat indisponível para esta ação.", true)
		return nil
	}

	data := strings.TrimSpace(ctx.CallbackQuery.Data)
	switch data {
	case cbHelp:
		s.answerCallback(b, ctx, "", false)
		s.chat(b, chatID).sess.Submit(context.Background(), "ajuda")
		return nil

	case cbMenu:
		s.answerCallback(b, ctx, "", false)
		draft, err := s.openDraft(b, chatID)
		if err != nil {
			s.logger.Error().Err(err).Msg("open settings draft")
			return nil
		}
		return s.editOrReplyCallback(ctx, b, menuText(draft), menuKeyboard(draft))

	case cbSave:
		return s.saveDraft(b, ctx, chatID)

	case cbDiscard:
		s.answerCallback(b, ctx, "", false)
		_ = s.wizard.Clear(context.Background(), chatID)
		return s.editOrReplyCallback(ctx, b, "Alterações descartadas.", nil)
	}

	draft, err := s.wizard.Get(context.Background(), chatID)
	if err != nil || draft == nil {
		s.answerCallback(b, ctx, "O menu expirou. Use /config.", true)
		return nil
	}
	if !applyAction(draft, data) {
		s.answerCallback(b, ctx, "Ação desconhecida.", true)
		return nil
	}
	if err := s.wizard.Set(context.Background(), chatID, *draft); err != nil {
		s.logger.Error().Err(err).Msg("persist settings draft")
		s.answerCallback(b, ctx, "Não foi possível guardar a alteração.", true)
		return nil
	}
	s.answerCallback(b, ctx, "", false)
	if draft.Awaiting != "" {
		_, err := b.SendMessage(chatID, awaitingPrompt(draft.Awaiting), nil)
		return err
	}
	return s.editOrReplyCallback(ctx, b, menuText(*draft), menuKeyboard(*draft))
}

// saveDraft persists the draft wholesale. Nothing is saved before this.
func (s *Service) saveDraft(b *gotgbot.Bot, ctx *ext.Context, chatID int64) error {
	draft, err := s.wizard.Get(context.Background(), chatID)
	if err != nil || draft == nil {
		s.answerCallback(b, ctx, "Nada para salvar. Use /config.", true)
		return nil
	}
	if err := s.chat(b, chatID).sess.SaveSettings(context.Background(), draft.Settings); err != nil {
		if errors.Is(err, settings.ErrInvalid) {
			s.answerCallback(b, ctx, "Configurações inválidas.", true)
		} else {
			s.answerCallback(b, ctx, "Falha ao salvar.", true)
		}
		return nil
	}
	s.answerCallback(b, ctx, "", false)
	_ = s.wizard.Clear(context.Background(), chatID)
	return s.editOrReplyCallback(ctx, b, summaryText(draft.Settings), nil)
}

func (s *Service) answerCallback(b *gotgbot.Bot, ctx *ext.Context, text string, alert bool) {
	if ctx == nil || ctx.CallbackQuery == nil {
		return
	}
	opts := &gotgbot.AnswerCallbackQueryOpts{ShowAlert: alert}
	if text != "" {
		opts.Text = text
	}
	_, _ = b.AnswerCallbackQuery(ctx.CallbackQuery.Id, opts)
}

func (s *Service) callbackChatID(ctx *ext.Context) (int64, bool) {
	if ctx != nil && ctx.EffectiveChat != nil {
		return ctx.EffectiveChat.Id, true
	}
	if ctx != nil && ctx.CallbackQuery != nil && ctx.CallbackQuery.Message != nil {
		chat := ctx.CallbackQuery.Message.GetChat()
		return chat.Id, true
	}
	return 0, false
}
