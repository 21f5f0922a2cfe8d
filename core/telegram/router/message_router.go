package router

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/warnbot/core/logger"
	tg "github.com/m3rciful/warnbot/core/telegram"
	tghelpers "github.com/m3rciful/warnbot/core/telegram/helpers"
)

// FSM is a conversation that consumes free text of the chats it is running in.
type FSM interface {
	InProgress(ctx context.Context, chatID int64) (bool, error)
	ManagerHandler(c tele.Context) error
}

// TextOptions controls handling of text outside conversations.
type TextOptions struct {
	// UnknownText handles text outside any conversation; nil ignores it.
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the plain text route. Text goes to the conversation of
// its chat when one is running.
func TextRoutes(fsm FSM, opts TextOptions) []tg.Route {
	conversation := summary{handler: "fsm"}
	unknown := summary{handler: "unknown_text"}

	handler := func(c tele.Context) error {
		if fsm != nil && c.Chat() != nil {
			active, err := fsm.InProgress(tghelpers.BuildContext(c), c.Chat().ID)
			if err != nil {
				return observe(c, conversation, func() error { return err })
			}
			if active {
				return observe(c, conversation, func() error { return fsm.ManagerHandler(c) })
			}
		}

		if opts.UnknownText != nil {
			return observe(c, unknown, func() error { return opts.UnknownText(c) })
		}
		// group chats are chatty; sample the skips
		if logger.ShouldSampleDebug() {
			skipped := unknown
			skipped.status = "skip"
			return observe(c, skipped, nil)
		}
		return nil
	}
	return []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
}
