package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/warnbot/core/logger"
	tghelpers "github.com/m3rciful/warnbot/core/telegram/helpers"
)

// reject logs the denial and hands the update to onReject, if any.
func reject(c tele.Context, check string, onReject tele.HandlerFunc) error {
	logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelDebug, "access.denied",
		slog.String("status", "rejected"),
		slog.String("check", check),
	)
	if onReject != nil {
		return onReject(c)
	}
	return nil
}

// AdminOptions configures AdminOnlyMiddleware.
type AdminOptions struct {
	// AdminID is the only user let through; 0 lets everyone through.
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware restricts a handler to the bot admin.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminID == 0 {
				return next(c)
			}
			if user := c.Sender(); user != nil && user.ID == opts.AdminID {
				return next(c)
			}
			return reject(c, "admin", opts.OnReject)
		}
	}
}

// MemberLookup resolves the membership of a user in a chat. *tele.Bot
// satisfies it.
type MemberLookup interface {
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// IsChatOwner reports whether userID is the creator of chatID.
func IsChatOwner(members MemberLookup, chatID, userID int64) (bool, error) {
	member, err := members.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return false, err
	}
	return member != nil && member.Role == tele.Creator, nil
}

// OwnerOptions configures ChatOwnerMiddleware.
type OwnerOptions struct {
	Members MemberLookup
	// AdminID passes without a lookup when non-zero.
	AdminID  int64
	OnReject tele.HandlerFunc
}

// ChatOwnerMiddleware lets through only the owner of the chat the update
// came from. Lookup failures count as "not an owner".
func ChatOwnerMiddleware(opts OwnerOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user, chat := c.Sender(), c.Chat()
			if user == nil || chat == nil {
				return nil
			}
			if opts.AdminID != 0 && user.ID == opts.AdminID {
				return next(c)
			}
			owner, err := IsChatOwner(opts.Members, chat.ID, user.ID)
			if err != nil {
				logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "access.owner_lookup",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
			if !owner {
				return reject(c, "owner", opts.OnReject)
			}
			return next(c)
		}
	}
}
