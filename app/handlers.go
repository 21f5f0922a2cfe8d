package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/m3rciful/warnbot/core/telegram"
	"github.com/m3rciful/warnbot/core/telegram/callbacks"
	"github.com/m3rciful/warnbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/warnbot/core/telegram/helpers"
	"github.com/m3rciful/warnbot/core/telegram/middleware"
	"github.com/m3rciful/warnbot/warnings"
)

// Replies of the warn commands.
const (
	msgReplyToWarn   = "Reply to a user message to warn."
	msgReplyToList   = "Reply to a user message to list their warnings."
	msgNoSuchWarning = "There are no such warning type."
	msgWarnUsage     = "Usage: /warn <trigger>"
	msgNotChatOwner  = "Only the owner of that chat can define its warnings."
)

// Handlers adapts Telegram updates to the warnings engine and setup
// conversation.
type Handlers struct {
	engine  *warnings.Engine
	setup   *warnings.Setup
	out     warnings.Effects
	members middleware.MemberLookup
	adminID int64
}

// NewHandlers builds the handlers. members resolves chat owners for /newwarn;
// adminID, when non-zero, passes every owner check.
func NewHandlers(engine *warnings.Engine, setup *warnings.Setup, out warnings.Effects, members middleware.MemberLookup, adminID int64) *Handlers {
	return &Handlers{engine: engine, setup: setup, out: out, members: members, adminID: adminID}
}

// Register adds the commands and callbacks to reg.
func (h *Handlers) Register(reg *coretelegram.Registry) error {
	cmds := []commands.Command{
		{Name: "/warn", Handler: h.Warn, OwnerOnly: true,
			Description: "warns the replied user: /warn <trigger>."},
		{Name: "/warns", Handler: h.Warns, OwnerOnly: true,
			Description: "shows active warnings of the replied user."},
		{Name: "/newwarn", Handler: h.NewWarn,
			Description: "defines a new warning type: /newwarn <chat_id>."},
		{Name: "/cancel", Handler: h.Cancel,
			Description: "cancels the warning type setup."},
		{Name: "/groups", Handler: h.Groups, AdminOnly: true,
			Description: "lists the warning groups."},
		{Name: "/chatid", Handler: h.ChatID, Description: "shows this chat ID."},
		{Name: "/myid", Handler: h.MyID, Description: "shows your ID."},
	}
	errs := make([]error, 0, len(cmds)+1)
	for _, cmd := range cmds {
		errs = append(errs, reg.RegisterCommand(cmd.Name, cmd))
	}
	errs = append(errs, reg.RegisterCallback(callbackOnWarn, h.OnWarnChoice))
	return errors.Join(errs...)
}

// Warn handles "/warn <trigger>" sent as a reply.
func (h *Handlers) Warn(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msg := c.Message()
	if msg == nil || msg.Chat == nil {
		return nil
	}
	trigger := strings.TrimSpace(msg.Payload)
	if trigger == "" {
		return h.out.SendText(ctx, msg.Chat.ID, msgWarnUsage)
	}

	req := warnings.WarnRequest{
		Trigger:    trigger,
		ChatID:     msg.Chat.ID,
		AnchorTime: msg.Time(),
	}
	if target := replyTarget(msg); target != nil {
		req.Target = target
		req.ReplyToMessageID = msg.ReplyTo.ID
	}

	_, err := h.engine.IssueWarning(ctx, h.out, req)
	switch {
	case errors.Is(err, warnings.ErrNoTargetUser):
		return h.out.SendText(ctx, msg.Chat.ID, msgReplyToWarn)
	case errors.Is(err, warnings.ErrUnknownTrigger):
		return h.out.SendText(ctx, msg.Chat.ID, msgNoSuchWarning)
	}
	return err
}

// Warns lists the active points of the replied user.
func (h *Handlers) Warns(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msg := c.Message()
	if msg == nil || msg.Chat == nil {
		return nil
	}
	target := replyTarget(msg)
	if target == nil {
		return h.out.SendText(ctx, msg.Chat.ID, msgReplyToList)
	}
	summary, err := h.engine.ActiveSummary(ctx, target.UserID)
	if err != nil {
		return err
	}
	return h.out.SendText(ctx, msg.Chat.ID, warnings.SummaryMessage(target.DisplayName, summary))
}

// Groups lists the warning groups a new warning type can join.
func (h *Handlers) Groups(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if c.Chat() == nil {
		return nil
	}
	groups, err := h.engine.Groups(ctx)
	if err != nil {
		return err
	}
	return h.out.SendText(ctx, c.Chat().ID, warnings.GroupsMessage(groups))
}

// NewWarn starts the setup conversation for the chat named in the payload.
// The sender must own that chat.
func (h *Handlers) NewWarn(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	msg := c.Message()
	if msg == nil || msg.Chat == nil || msg.Sender == nil {
		return nil
	}
	target, err := strconv.ParseInt(strings.TrimSpace(msg.Payload), 10, 64)
	if err != nil {
		target = 0
	}
	if target != 0 && !h.isAdmin(msg.Sender.ID) {
		owner, err := middleware.IsChatOwner(h.members, target, msg.Sender.ID)
		if err != nil || !owner {
			return h.out.SendText(ctx, msg.Chat.ID, msgNotChatOwner)
		}
	}
	return h.setup.Handle(ctx, h.out, msg.Chat.ID, warnings.NewWarn{TargetChatID: target, UserID: msg.Sender.ID})
}

// Cancel aborts the conversation of the current chat.
func (h *Handlers) Cancel(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	return h.setup.Handle(tghelpers.BuildContext(c), h.out, c.Chat().ID, warnings.Cancel{UserID: senderID(c)})
}

// OnWarnChoice handles a press on one of the on-warn buttons.
func (h *Handlers) OnWarnChoice(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	if cb.Message == nil || cb.Message.Chat == nil {
		return h.out.AnswerCallback(ctx, cb.ID)
	}
	return h.setup.Handle(ctx, h.out, cb.Message.Chat.ID, warnings.OnWarnChoice{
		CallbackID: cb.ID,
		MessageID:  cb.Message.ID,
		Data:       callbacks.CallbackPayload(c),
		UserID:     senderID(c),
	})
}

// InProgress reports whether chatID has a running setup conversation.
func (h *Handlers) InProgress(ctx context.Context, chatID int64) (bool, error) {
	return h.setup.InProgress(ctx, chatID)
}

// ManagerHandler feeds conversation text to the setup state machine.
func (h *Handlers) ManagerHandler(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	return h.setup.Handle(tghelpers.BuildContext(c), h.out, c.Chat().ID, warnings.Text{Body: c.Text(), UserID: senderID(c)})
}

// ChatID replies with the current chat id.
func (h *Handlers) ChatID(c tele.Context) error {
	if c.Chat() == nil {
		return nil
	}
	return tghelpers.ReplyMDV2(c, fmt.Sprintf("Chat ID: `%d`", c.Chat().ID))
}

// MyID replies with the sender's user id.
func (h *Handlers) MyID(c tele.Context) error {
	if c.Sender() == nil {
		return nil
	}
	return tghelpers.ReplyMDV2(c, fmt.Sprintf("Your ID: `%d`", c.Sender().ID))
}

func (h *Handlers) isAdmin(userID int64) bool {
	return h.adminID != 0 && userID == h.adminID
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

func replyTarget(msg *tele.Message) *warnings.Target {
	if msg.ReplyTo == nil || msg.ReplyTo.Sender == nil {
		return nil
	}
	u := msg.ReplyTo.Sender
	return &warnings.Target{UserID: u.ID, DisplayName: displayName(u)}
}

func displayName(u *tele.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}
