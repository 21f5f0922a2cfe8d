package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/m3rciful/warnbot/core/telegram"
	"github.com/m3rciful/warnbot/core/telegram/state"
	"github.com/m3rciful/warnbot/warnings"
	"github.com/m3rciful/warnbot/warnings/memstore"
)

const (
	groupChat  = int64(-1001)
	ownerID    = int64(1)
	offenderID = int64(77)
)

func testSeed() SeedConfig {
	return SeedConfig{
		Groups: []warnings.WarningGroup{{
			Name:       "царизм",
			MaxPoints:  100,
			Punishment: warnings.Punishment{Kind: warnings.PunishMute, Time: warnings.Forever()},
		}},
		WarningTypes: []SeedWarningType{{
			Trigger: "макака",
			Points:  30,
			Group:   "царизм",
			OnWarn:  warnings.OnWarnDeleteMessage,
		}},
	}
}

func newTestHandlers(t *testing.T, bot *fakeBot, adminID int64) (*Handlers, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	require.NoError(t, CatalogSeeder(testSeed()).Seed(context.Background(), store))
	engine := warnings.NewEngine(store, store)
	setup := warnings.NewSetup(store, state.NewMemoryStore[warnings.SetupWarnState](state.Options{}))
	return NewHandlers(engine, setup, NewOutbound(bot), bot, adminID), store
}

func offenderMessage() *tele.Message {
	return &tele.Message{ID: 555, Sender: &tele.User{ID: offenderID, FirstName: "Bob"}}
}

func TestWarnAccumulatesThenPunishes(t *testing.T) {
	bot := &fakeBot{}
	h, store := newTestHandlers(t, bot, 0)

	for i := 0; i < 3; i++ {
		c := newMessageContext(groupChat, ownerID, "/warn макака", "макака", offenderMessage())
		require.NoError(t, h.Warn(c))
	}
	assert.Equal(t, []string{
		warnings.WarnedMessage("Bob", 30, 100),
		warnings.WarnedMessage("Bob", 60, 100),
		warnings.WarnedMessage("Bob", 90, 100),
	}, bot.texts(groupChat))
	assert.Len(t, bot.deleted, 3)
	assert.Empty(t, bot.restricted)

	c := newMessageContext(groupChat, ownerID, "/warn макака", "макака", offenderMessage())
	require.NoError(t, h.Warn(c))

	assert.Equal(t, "User Bob has been muted forever!", bot.lastText(groupChat))
	require.Len(t, bot.restricted, 1)
	muted := bot.restricted[0]
	assert.Equal(t, offenderID, muted.User.ID)
	assert.Equal(t, c.Message().Time().Unix(), muted.RestrictedUntil)

	active, err := store.ActiveWarnings(context.Background(), offenderID)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Len(t, store.ArchivedWarnings(offenderID), 3)
}

func TestWarnReplies(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		replyTo *tele.Message
		want    string
	}{
		{name: "no reply", payload: "макака", want: msgReplyToWarn},
		{name: "unknown trigger", payload: "гусь", replyTo: offenderMessage(), want: msgNoSuchWarning},
		{name: "empty trigger", payload: "  ", replyTo: offenderMessage(), want: msgWarnUsage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bot := &fakeBot{}
			h, _ := newTestHandlers(t, bot, 0)

			require.NoError(t, h.Warn(newMessageContext(groupChat, ownerID, "/warn", tc.payload, tc.replyTo)))
			assert.Equal(t, []string{tc.want}, bot.texts(groupChat))
			assert.Empty(t, bot.deleted)
		})
	}
}

func TestWarnPunishmentFailureKeepsLedger(t *testing.T) {
	bot := &fakeBot{}
	h, store := newTestHandlers(t, bot, 0)
	ctx := context.Background()
	info, _, err := store.FindWarningType(ctx, "макака")
	require.NoError(t, err)
	info.Trigger = "бан"
	info.Points = 200
	info.Group.Punishment = warnings.Punishment{Kind: warnings.PunishBan, Time: warnings.Forever()}
	require.NoError(t, store.UpsertWarningType(ctx, info))
	bot.banErr = errors.New("not enough rights")

	err = h.Warn(newMessageContext(groupChat, ownerID, "/warn бан", "бан", offenderMessage()))
	assert.ErrorIs(t, err, warnings.ErrPunishmentApplyFailed)
	assert.Empty(t, bot.texts(groupChat))
	assert.Empty(t, store.ArchivedWarnings(offenderID))
}

func TestWarnsListsActivePoints(t *testing.T) {
	bot := &fakeBot{}
	h, _ := newTestHandlers(t, bot, 0)

	require.NoError(t, h.Warns(newMessageContext(groupChat, ownerID, "/warns", "", nil)))
	assert.Equal(t, msgReplyToList, bot.lastText(groupChat))

	require.NoError(t, h.Warn(newMessageContext(groupChat, ownerID, "/warn макака", "макака", offenderMessage())))
	require.NoError(t, h.Warns(newMessageContext(groupChat, ownerID, "/warns", "", offenderMessage())))

	want := warnings.SummaryMessage("Bob", []warnings.GroupPoints{
		{Group: "царизм", Points: 30, MaxPoints: 100, Warnings: 1},
	})
	assert.Equal(t, want, bot.lastText(groupChat))
}

func TestNewWarnConversationCreatesType(t *testing.T) {
	ctx := context.Background()
	bot := &fakeBot{role: tele.Creator}
	h, store := newTestHandlers(t, bot, 0)
	private := ownerID

	require.NoError(t, h.NewWarn(newMessageContext(private, ownerID, "/newwarn -1001", "-1001", nil)))
	inProgress, err := h.InProgress(ctx, private)
	require.NoError(t, err)
	assert.True(t, inProgress)

	for _, text := range []string{"нет такой", "царизм", "пятнадцать", "15", "шут"} {
		require.NoError(t, h.ManagerHandler(newMessageContext(private, ownerID, text, "", nil)))
	}
	require.NotEmpty(t, bot.sent)
	assert.NotEmpty(t, bot.sent[len(bot.sent)-1].Opts, "last prompt carries the on-warn buttons")

	cb := newCallbackContext(private, ownerID, 321, "\f"+callbackOnWarn+"|"+warnings.ChoiceNothing)
	require.NoError(t, h.OnWarnChoice(cb))

	info, ok, err := store.FindWarningType(ctx, "шут")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(15), info.Points)
	assert.Equal(t, "царизм", info.Group.Name)
	assert.Equal(t, warnings.OnWarnNothing, info.OnWarn)

	assert.Equal(t, []string{"cb-1"}, bot.responded)
	require.Len(t, bot.edited, 1)
	assert.Equal(t, warnings.CreatedMessage("шут"), bot.lastText(private))

	inProgress, err = h.InProgress(ctx, private)
	require.NoError(t, err)
	assert.False(t, inProgress)
}

func TestNewWarnRequiresChatOwner(t *testing.T) {
	cases := []struct {
		name      string
		bot       *fakeBot
		adminID   int64
		wantStart bool
	}{
		{name: "member", bot: &fakeBot{role: tele.Member}},
		{name: "administrator", bot: &fakeBot{role: tele.Administrator}},
		{name: "lookup failure", bot: &fakeBot{memberErr: errors.New("chat not found")}},
		{name: "creator", bot: &fakeBot{role: tele.Creator}, wantStart: true},
		{name: "bot admin", bot: &fakeBot{role: tele.Member}, adminID: ownerID, wantStart: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandlers(t, tc.bot, tc.adminID)

			require.NoError(t, h.NewWarn(newMessageContext(ownerID, ownerID, "/newwarn -1001", "-1001", nil)))
			inProgress, err := h.InProgress(context.Background(), ownerID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStart, inProgress)
			if !tc.wantStart {
				assert.Equal(t, []string{msgNotChatOwner}, tc.bot.texts(ownerID))
			}
		})
	}
}

func TestNewWarnConversationIgnoresOtherMembers(t *testing.T) {
	ctx := context.Background()
	bot := &fakeBot{role: tele.Creator}
	h, store := newTestHandlers(t, bot, 0)

	require.NoError(t, h.NewWarn(newMessageContext(groupChat, ownerID, "/newwarn -1001", "-1001", nil)))
	prompts := len(bot.sent)

	for _, text := range []string{"царизм", "1000", "hijacked"} {
		require.NoError(t, h.ManagerHandler(newMessageContext(groupChat, offenderID, text, "", nil)))
	}
	require.NoError(t, h.OnWarnChoice(newCallbackContext(groupChat, offenderID, 321, "\f"+callbackOnWarn+"|"+warnings.ChoiceNothing)))
	require.NoError(t, h.Cancel(newMessageContext(groupChat, offenderID, "/cancel", "", nil)))

	_, created, err := store.FindWarningType(ctx, "hijacked")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, bot.sent, prompts, "foreign input gets no prompts")
	assert.Equal(t, []string{"cb-1"}, bot.responded)
	inProgress, err := h.InProgress(ctx, groupChat)
	require.NoError(t, err)
	assert.True(t, inProgress)

	require.NoError(t, h.ManagerHandler(newMessageContext(groupChat, ownerID, "царизм", "", nil)))
	assert.Equal(t, "Good. Now send me amount of the points the user will receive by this warn.", bot.lastText(groupChat))
}

func TestCancelStopsConversation(t *testing.T) {
	bot := &fakeBot{role: tele.Creator}
	h, _ := newTestHandlers(t, bot, 0)

	require.NoError(t, h.NewWarn(newMessageContext(ownerID, ownerID, "/newwarn -1001", "-1001", nil)))
	require.NoError(t, h.Cancel(newMessageContext(ownerID, ownerID, "/cancel", "", nil)))

	inProgress, err := h.InProgress(context.Background(), ownerID)
	require.NoError(t, err)
	assert.False(t, inProgress)
	assert.Equal(t, "Cancelled.", bot.lastText(ownerID))
}

func TestOnWarnChoiceWithoutConversationAnswers(t *testing.T) {
	bot := &fakeBot{}
	h, _ := newTestHandlers(t, bot, 0)

	require.NoError(t, h.OnWarnChoice(newCallbackContext(ownerID, ownerID, 9, "\fonwarn|delete")))
	assert.Equal(t, []string{"cb-1"}, bot.responded)
	assert.Empty(t, bot.sent)
}

func TestIDCommands(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeBot{}, 0)

	c := newMessageContext(groupChat, ownerID, "/chatid", "", nil)
	require.NoError(t, h.ChatID(c))
	require.NoError(t, h.MyID(c))
	assert.Equal(t, []string{"Chat ID: `-1001`", "Your ID: `1`"}, c.replies)
}

func TestGroupsListsCatalog(t *testing.T) {
	bot := &fakeBot{}
	h, _ := newTestHandlers(t, bot, ownerID)

	require.NoError(t, h.Groups(newMessageContext(ownerID, ownerID, "/groups", "", nil)))
	assert.Equal(t, "Warning groups:\nцаризм: 100 points, mute forever!", bot.lastText(ownerID))
}

func TestRegisterMarksGroupsAdminOnly(t *testing.T) {
	h, _ := newTestHandlers(t, &fakeBot{}, ownerID)
	reg := coretelegram.NewRegistry()
	require.NoError(t, h.Register(reg))

	var adminOnly []string
	for _, cmd := range reg.Commands() {
		if cmd.AdminOnly {
			adminOnly = append(adminOnly, cmd.Name)
		}
	}
	assert.Equal(t, []string{"/groups"}, adminOnly)
	for _, item := range reg.Menu() {
		assert.NotEqual(t, "groups", item.Text)
	}
}
