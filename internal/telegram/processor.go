package telegram

import (
	"context"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/rs/zerolog"

	"orsi/internal/metrics"
	"orsi/internal/redisstore"
)

// Redis is consulted with this budget; past it the update is handled anyway.
const dedupeTimeout = 2 * time.Second

// DedupeProcessor keeps a chat from getting two answers when Telegram
// redelivers an update, e.g. after a webhook timeout.
type DedupeProcessor struct {
	Base    ext.BaseProcessor
	Dedupe  *redisstore.UpdateDeduplicator
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

func (p DedupeProcessor) ProcessUpdate(d *ext.Dispatcher, b *gotgbot.Bot, ctx *ext.Context) error {
	if p.Metrics != nil {
		p.Metrics.UpdatesTotal.Inc()
	}
	if !p.firstDelivery(ctx) {
		return nil
	}
	return p.Base.ProcessUpdate(d, b, ctx)
}

func (p DedupeProcessor) firstDelivery(ctx *ext.Context) bool {
	if p.Dedupe == nil {
		return true
	}
	logger := p.Logger.With().Int64("update_id", ctx.UpdateId).Logger()
	if ctx.EffectiveChat != nil {
		logger = logger.With().Int64("chat_id", ctx.EffectiveChat.Id).Logger()
	}

	rctx, cancel := context.WithTimeout(context.Background(), dedupeTimeout)
	defer cancel()
	first, err := p.Dedupe.MarkFirst(rctx, ctx.UpdateId)
	if err != nil {
		logger.Warn().Err(err).Msg("update dedupe unavailable, handling anyway")
		return true
	}
	if !first {
		logger.Debug().Msg("redelivered update skipped")
		if p.Metrics != nil {
			p.Metrics.DuplicateUpdates.Inc()
		}
	}
	return first
}
