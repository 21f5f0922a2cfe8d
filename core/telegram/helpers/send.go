package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/warnbot/core/logger"
	"github.com/m3rciful/warnbot/core/telegram/sender"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes helper replies through d; nil sends inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// enqueue hands run to the dispatcher, running it inline when there is none
// or the queue refuses it. Queued replies count as sent once accepted.
func enqueue(c tele.Context, action, endpoint string, run func() error) error {
	ctx := BuildContext(c)
	inline := func() error {
		if err := run(); err != nil {
			return err
		}
		CountReply(ctx, false)
		return nil
	}

	d := dispatcher.Load()
	if d == nil {
		return inline()
	}
	switch err := d.Enqueue(ctx, action, endpoint, run); {
	case err == nil:
		CountReply(ctx, false)
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warning(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return inline()
	default:
		return err
	}
}

// ReplyMDV2 answers the current message with MarkdownV2 text.
func ReplyMDV2(c tele.Context, text string) error {
	opts := &tele.SendOptions{ReplyTo: c.Message(), ParseMode: tele.ModeMarkdownV2}
	return enqueue(c, "reply.mdv2", "sendMessage", func() error {
		return c.Send(text, opts)
	})
}
