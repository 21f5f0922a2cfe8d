package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

type (
	loggerKey  struct{}
	requestKey struct{}
)

// Request identifies the update a record belongs to. Records logged with a
// context carrying a Request get its non-zero fields unless they set the
// same keys themselves.
type Request struct {
	RID      string
	UpdateID int
	UserID   int64
	ChatID   int64
	Handler  string
}

// WithRequest attaches req to ctx.
func WithRequest(ctx context.Context, req Request) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestKey{}, req)
}

// RequestFrom returns the request of ctx; the zero Request when there is none.
func RequestFrom(ctx context.Context) Request {
	if ctx == nil {
		return Request{}
	}
	req, _ := ctx.Value(requestKey{}).(Request)
	return req
}

// WithHandler names the handler serving the request of ctx.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	req := RequestFrom(ctx)
	req.Handler = handler
	return WithRequest(ctx, req)
}

func (r Request) fields() map[string]any {
	out := make(map[string]any, 5)
	if r.RID != "" {
		out["rid"] = r.RID
	}
	if r.UpdateID != 0 {
		out["update_id"] = r.UpdateID
	}
	if r.UserID != 0 {
		out["user_id"] = r.UserID
	}
	if r.ChatID != 0 {
		out["chat_id"] = r.ChatID
	}
	if r.Handler != "" {
		out["handler"] = r.Handler
	}
	return out
}

// WithLogger makes log the logger LogEvent falls back to for ctx.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext returns the logger stored by WithLogger, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// BuildRID correlates the records of one update: "update:chat:user".
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// compactRID renders a BuildRID value in base36 segments joined by dots.
// Anything else is returned unchanged.
func compactRID(rid string) string {
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
