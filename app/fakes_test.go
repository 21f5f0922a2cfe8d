package app

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

type botCall struct {
	ChatID int64
	What   any
	Opts   []any
}

// fakeBot records the Bot API calls made by Outbound and the handlers.
type fakeBot struct {
	mu         sync.Mutex
	sent       []botCall
	edited     []botCall
	deleted    []tele.StoredMessage
	responded  []string
	banned     []*tele.ChatMember
	restricted []*tele.ChatMember

	role      tele.MemberStatus
	memberErr error
	sendErr   error
	banErr    error
}

func chatOf(r tele.Recipient) int64 {
	if chat, ok := r.(*tele.Chat); ok {
		return chat.ID
	}
	return 0
}

func (b *fakeBot) Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	b.sent = append(b.sent, botCall{ChatID: chatOf(to), What: what, Opts: opts})
	return &tele.Message{ID: len(b.sent)}, nil
}

func (b *fakeBot) Edit(msg tele.Editable, what any, opts ...any) (*tele.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, chatID := msg.MessageSig()
	b.edited = append(b.edited, botCall{ChatID: chatID, What: what, Opts: opts})
	return &tele.Message{}, nil
}

func (b *fakeBot) Delete(msg tele.Editable) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, chatID := msg.MessageSig()
	b.deleted = append(b.deleted, tele.StoredMessage{MessageID: id, ChatID: chatID})
	return nil
}

func (b *fakeBot) Respond(c *tele.Callback, _ ...*tele.CallbackResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responded = append(b.responded, c.ID)
	return nil
}

func (b *fakeBot) Ban(_ *tele.Chat, member *tele.ChatMember, _ ...bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.banErr != nil {
		return b.banErr
	}
	b.banned = append(b.banned, member)
	return nil
}

func (b *fakeBot) Restrict(_ *tele.Chat, member *tele.ChatMember) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restricted = append(b.restricted, member)
	return nil
}

func (b *fakeBot) ChatMemberOf(_, _ tele.Recipient) (*tele.ChatMember, error) {
	if b.memberErr != nil {
		return nil, b.memberErr
	}
	return &tele.ChatMember{Role: b.role}, nil
}

// texts returns the string payloads sent to chatID in order.
func (b *fakeBot) texts(chatID int64) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, call := range b.sent {
		if s, ok := call.What.(string); ok && call.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (b *fakeBot) lastText(chatID int64) string {
	texts := b.texts(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// fakeContext implements the parts of tele.Context the handlers touch.
type fakeContext struct {
	tele.Context
	update  tele.Update
	store   map[string]any
	replies []string
}

func newMessageContext(chatID, userID int64, text, payload string, replyTo *tele.Message) *fakeContext {
	msg := &tele.Message{
		ID:       100,
		Chat:     &tele.Chat{ID: chatID},
		Sender:   &tele.User{ID: userID, FirstName: "Owner"},
		Text:     text,
		Payload:  payload,
		ReplyTo:  replyTo,
		Unixtime: 1767225600,
	}
	return &fakeContext{update: tele.Update{ID: 1, Message: msg}, store: map[string]any{}}
}

func newCallbackContext(chatID, userID int64, messageID int, data string) *fakeContext {
	cb := &tele.Callback{
		ID:      "cb-1",
		Sender:  &tele.User{ID: userID},
		Message: &tele.Message{ID: messageID, Chat: &tele.Chat{ID: chatID}},
		Data:    data,
	}
	return &fakeContext{update: tele.Update{ID: 2, Callback: cb}, store: map[string]any{}}
}

func (f *fakeContext) Update() tele.Update      { return f.update }
func (f *fakeContext) Message() *tele.Message   { return f.update.Message }
func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }
func (f *fakeContext) Get(key string) any       { return f.store[key] }
func (f *fakeContext) Set(key string, v any)    { f.store[key] = v }

func (f *fakeContext) Sender() *tele.User {
	switch {
	case f.update.Message != nil:
		return f.update.Message.Sender
	case f.update.Callback != nil:
		return f.update.Callback.Sender
	}
	return nil
}

func (f *fakeContext) Chat() *tele.Chat {
	switch {
	case f.update.Message != nil:
		return f.update.Message.Chat
	case f.update.Callback != nil && f.update.Callback.Message != nil:
		return f.update.Callback.Message.Chat
	}
	return nil
}

func (f *fakeContext) Text() string {
	if f.update.Message == nil {
		return ""
	}
	return f.update.Message.Text
}

func (f *fakeContext) Send(what any, _ ...any) error {
	if s, ok := what.(string); ok {
		f.replies = append(f.replies, s)
	}
	return nil
}
