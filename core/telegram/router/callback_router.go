package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/warnbot/core/telegram"
	"github.com/m3rciful/warnbot/core/telegram/callbacks"
)

// CallbackRoute routes every inline button press by its unique key.
// Handlers answer the callback themselves.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key := callbacks.CallbackKey(c)
		s := summary{
			handler: "callback." + handlerName(key),
			extras:  []slog.Attr{slog.String("cb_key", key)},
		}

		h, ok := reg.Callback(key)
		if !ok {
			s.status = "skip"
			s.extras = append(s.extras, slog.String("reason", "not_found"))
		}
		return observe(c, s, func() error { return h(c) })
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
