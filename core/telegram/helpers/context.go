// Package helpers carries per-update request context and reply helpers
// shared by middlewares, routers and handlers.
package helpers

import (
	"context"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/warnbot/core/logger"
)

const (
	ctxKey = "request_ctx"
	// RIDKey is where the logging middleware leaves the request id.
	RIDKey = "rid"
)

// StoreContext attaches ctx to the update so later layers reuse it.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(ctxKey, ctx)
	}
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxKey).(context.Context)
	return ctx, ok && ctx != nil
}

// BuildContext returns the request context of the update, creating it on
// first use: rid, update, chat and user ids for logging, and reply stats.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}

	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	updateID := c.Update().ID

	rid, _ := c.Get(RIDKey).(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
		c.Set(RIDKey, rid)
	}

	ctx := logger.WithRequest(context.Background(), logger.Request{
		RID:      rid,
		UpdateID: updateID,
		UserID:   userID,
		ChatID:   chatID,
	})
	ctx = logger.WithLogger(ctx, logger.TG)
	ctx = context.WithValue(ctx, replyStatsKey{}, &replyStats{})
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the request context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler != "" {
		ctx = logger.WithHandler(ctx, handler)
		StoreContext(c, ctx)
	}
	return ctx
}

type replyStatsKey struct{}

type replyStats struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

// CountReply records one message sent or edited while handling the update of
// ctx. Contexts without stats are ignored.
func CountReply(ctx context.Context, withKeyboard bool) {
	stats, ok := ctx.Value(replyStatsKey{}).(*replyStats)
	if !ok {
		return
	}
	stats.messages.Add(1)
	if withKeyboard {
		stats.keyboard.Store(true)
	}
}

// Replies returns how many messages the update produced and whether any
// carried a keyboard.
func Replies(ctx context.Context) (int, bool) {
	stats, ok := ctx.Value(replyStatsKey{}).(*replyStats)
	if !ok {
		return 0, false
	}
	return int(stats.messages.Load()), stats.keyboard.Load()
}
