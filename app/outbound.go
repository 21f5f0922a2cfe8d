package app

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/warnbot/core/logger"
	tghelpers "github.com/m3rciful/warnbot/core/telegram/helpers"
	"github.com/m3rciful/warnbot/core/telegram/keyboard"
	"github.com/m3rciful/warnbot/core/telegram/netutil"
	"github.com/m3rciful/warnbot/warnings"
)

// callbackOnWarn is the callback key of the on-warn choice buttons.
const callbackOnWarn = "onwarn"

// BotAPI is the part of *tele.Bot the bot calls directly.
type BotAPI interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
	Edit(msg tele.Editable, what any, opts ...any) (*tele.Message, error)
	Delete(msg tele.Editable) error
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
	Ban(chat *tele.Chat, member *tele.ChatMember, revokeMessages ...bool) error
	Restrict(chat *tele.Chat, member *tele.ChatMember) error
}

// Outbound implements warnings.Effects over the Bot API. Calls are synchronous
// so failures reach the engine and the setup conversation.
type Outbound struct {
	api BotAPI
}

var _ warnings.Effects = (*Outbound)(nil)

// NewOutbound wraps api.
func NewOutbound(api BotAPI) *Outbound {
	return &Outbound{api: api}
}

func (o *Outbound) call(ctx context.Context, action string, chatID int64, fn func() error) error {
	start := time.Now()
	err := fn()
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("action", action),
		slog.Int64("target_chat", chatID),
		slog.Duration("took", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", netutil.Redact(err)),
			slog.String("err_kind", netutil.Classify(err)),
		)
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "tg.out", attrs...)
		return err
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "tg.out", attrs...)
	return nil
}

// send delivers a message and counts it as a reply of the current update.
func (o *Outbound) send(ctx context.Context, action string, chatID int64, what any, opts ...any) error {
	return o.call(ctx, action, chatID, func() error {
		if _, err := o.api.Send(&tele.Chat{ID: chatID}, what, opts...); err != nil {
			return err
		}
		tghelpers.CountReply(ctx, keyboard.HasKeyboard(opts...))
		return nil
	})
}

func storedMessage(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}

// SendText sends plain text to chatID.
func (o *Outbound) SendText(ctx context.Context, chatID int64, text string) error {
	return o.send(ctx, "send.text", chatID, text)
}

// SendChoice sends text with one inline button per choice.
func (o *Outbound) SendChoice(ctx context.Context, chatID int64, text string, choices []warnings.Choice) error {
	options := make([]keyboard.Option, 0, len(choices))
	for _, ch := range choices {
		options = append(options, keyboard.Option{Label: ch.Label, Data: ch.Data})
	}
	return o.send(ctx, "send.choice", chatID, text, keyboard.Column(callbackOnWarn, options...))
}

// DeleteMessage removes messageID from chatID.
func (o *Outbound) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return o.call(ctx, "delete", chatID, func() error {
		return o.api.Delete(storedMessage(chatID, messageID))
	})
}

// AnswerCallback acknowledges a button press.
func (o *Outbound) AnswerCallback(ctx context.Context, callbackID string) error {
	return o.call(ctx, "callback.answer", 0, func() error {
		return o.api.Respond(&tele.Callback{ID: callbackID})
	})
}

// EditText replaces the text of messageID and drops its keyboard.
func (o *Outbound) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	return o.call(ctx, "edit.text", chatID, func() error {
		if _, err := o.api.Edit(storedMessage(chatID, messageID), text); err != nil {
			return err
		}
		tghelpers.CountReply(ctx, false)
		return nil
	})
}

// Ban bans userID until the given time.
func (o *Outbound) Ban(ctx context.Context, chatID, userID int64, until time.Time) error {
	return o.call(ctx, "ban", chatID, func() error {
		return o.api.Ban(&tele.Chat{ID: chatID}, member(userID, tele.Rights{}, until))
	})
}

// Mute takes every right away from userID until the given time.
func (o *Outbound) Mute(ctx context.Context, chatID, userID int64, until time.Time) error {
	return o.call(ctx, "mute", chatID, func() error {
		return o.api.Restrict(&tele.Chat{ID: chatID}, member(userID, tele.NoRights(), until))
	})
}

// Restrict applies perms to userID until the given time.
func (o *Outbound) Restrict(ctx context.Context, chatID, userID int64, perms warnings.Permissions, until time.Time) error {
	return o.call(ctx, "restrict", chatID, func() error {
		return o.api.Restrict(&tele.Chat{ID: chatID}, member(userID, rightsOf(perms), until))
	})
}

func member(userID int64, rights tele.Rights, until time.Time) *tele.ChatMember {
	return &tele.ChatMember{
		User:            &tele.User{ID: userID},
		Rights:          rights,
		RestrictedUntil: until.Unix(),
	}
}

func rightsOf(p warnings.Permissions) tele.Rights {
	return tele.Rights{
		CanSendMessages: p.CanSendMessages,
		CanSendPolls:    p.CanSendPolls,
		CanSendOther:    p.CanSendOther,
		CanAddPreviews:  p.CanAddPreviews,
		CanChangeInfo:   p.CanChangeInfo,
		CanInviteUsers:  p.CanInviteUsers,
		CanPinMessages:  p.CanPinMessages,
	}
}
