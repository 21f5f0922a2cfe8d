package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/warnbot/core/logger"
	tg "github.com/m3rciful/warnbot/core/telegram"
	"github.com/m3rciful/warnbot/core/telegram/commands"
	"github.com/m3rciful/warnbot/core/telegram/middleware"
)

// CommandRouteOptions configures access checks of command routes.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	// Members resolves chat owners for OwnerOnly commands; nil disables the
	// check. Non-owners are ignored silently.
	Members middleware.MemberLookup
}

// CommandRoutes binds every registered command and its aliases.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	defs := reg.Commands()
	var routes []tg.Route
	for _, def := range defs {
		h := guard(def, opts)(commandHandler(def))
		for _, endpoint := range def.Endpoints() {
			routes = append(routes, tg.Route{Endpoint: endpoint, Handler: h})
		}
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "commands.routed"),
		slog.Int("commands", len(defs)),
		slog.Int("routes", len(routes)),
		slog.Int("callbacks", reg.CallbackCount()),
	)
	return routes
}

func commandHandler(def commands.Command) tele.HandlerFunc {
	s := summary{handler: handlerName(def.Name)}
	return func(c tele.Context) error {
		return observe(c, s, func() error { return def.Handler(c) })
	}
}

// guard stacks the access checks def asks for; the admin check runs first.
func guard(def commands.Command, opts CommandRouteOptions) tele.MiddlewareFunc {
	return func(h tele.HandlerFunc) tele.HandlerFunc {
		if def.OwnerOnly && opts.Members != nil {
			h = middleware.ChatOwnerMiddleware(middleware.OwnerOptions{
				Members: opts.Members,
				AdminID: opts.AdminID,
			})(h)
		}
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(middleware.AdminOptions{
				AdminID:  opts.AdminID,
				OnReject: opts.OnAdminReject,
			})(h)
		}
		return h
	}
}
