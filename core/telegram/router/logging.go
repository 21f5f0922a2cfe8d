// Package router turns the registry and the conversation manager into bot
// routes, logging one summary line per handled update.
package router

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/warnbot/core/logger"
	tghelpers "github.com/m3rciful/warnbot/core/telegram/helpers"
	"github.com/m3rciful/warnbot/core/telegram/netutil"
)

// summary names a handler run and optionally forces its logged status.
type summary struct {
	handler string
	status  string
	extras  []slog.Attr
}

// observe runs fn as the named handler and logs its outcome.
func observe(c tele.Context, s summary, fn func() error) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, s.handler)
	var err error
	if fn != nil {
		err = fn()
	}
	report(ctx, s, start, err)
	return err
}

func report(ctx context.Context, s summary, start time.Time, err error) {
	status := s.status
	if status == "" {
		status = logger.Status(err)
	}
	msgs, kb := tghelpers.Replies(ctx)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	attrs = append(attrs, s.extras...)

	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.TG, level, "handler.handled", attrs...)
}

// handlerName turns a command or callback key into a log-friendly name.
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers a code carried by the error and falls back to its
// transport class.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	return netutil.Classify(err)
}
