package warnings_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/warnbot/core/telegram/state"
	"github.com/m3rciful/warnbot/warnings"
	"github.com/m3rciful/warnbot/warnings/memstore"
)

const convoKey = int64(500)

type setupFixture struct {
	ctx      context.Context
	store    *memstore.Store
	sessions *state.MemoryStore[warnings.SetupWarnState]
	setup    *warnings.Setup
	fx       *fakeEffects
}

func newSetupFixture(t *testing.T) *setupFixture {
	t.Helper()
	f := &setupFixture{
		ctx:      context.Background(),
		store:    memstore.New(),
		sessions: state.NewMemoryStore[warnings.SetupWarnState](state.Options{}),
		fx:       &fakeEffects{},
	}
	require.NoError(t, f.store.UpsertGroup(f.ctx, muteGroup("rules", 100, warnings.Forever())))
	f.setup = warnings.NewSetup(f.store, f.sessions)
	return f
}

func (f *setupFixture) send(t *testing.T, ev warnings.SetupEvent) {
	t.Helper()
	require.NoError(t, f.setup.Handle(f.ctx, f.fx, convoKey, ev))
}

func (f *setupFixture) session(t *testing.T) (warnings.SetupWarnState, bool) {
	t.Helper()
	st, ok, err := f.sessions.Get(f.ctx, convoKey)
	require.NoError(t, err)
	return st, ok
}

func (f *setupFixture) walkTo(t *testing.T, step warnings.SetupStep) {
	t.Helper()
	f.send(t, warnings.NewWarn{TargetChatID: 42})
	if step == warnings.StepWaitForWarnGroup {
		return
	}
	f.send(t, warnings.Text{Body: "rules"})
	if step == warnings.StepWaitForPoints {
		return
	}
	f.send(t, warnings.Text{Body: "30"})
	if step == warnings.StepWaitForTrigger {
		return
	}
	f.send(t, warnings.Text{Body: "foo"})
}

func TestSetupHappyPath(t *testing.T) {
	f := newSetupFixture(t)

	f.send(t, warnings.NewWarn{TargetChatID: 42})
	st, ok := f.session(t)
	require.True(t, ok)
	assert.Equal(t, warnings.SetupWarnState{Step: warnings.StepWaitForWarnGroup, ChatID: 42}, st)

	f.send(t, warnings.Text{Body: "rules"})
	st, _ = f.session(t)
	assert.Equal(t, warnings.StepWaitForPoints, st.Step)
	require.NotNil(t, st.Group)
	assert.Equal(t, "rules", st.Group.Name)

	f.send(t, warnings.Text{Body: "30"})
	st, _ = f.session(t)
	assert.Equal(t, warnings.StepWaitForTrigger, st.Step)
	assert.Equal(t, uint64(30), st.Points)

	f.send(t, warnings.Text{Body: "foo"})
	st, _ = f.session(t)
	assert.Equal(t, warnings.StepWaitForOnWarn, st.Step)
	assert.Equal(t, "foo", st.Trigger)
	assert.Equal(t, warnings.OnWarnChoices, f.fx.lastChoices())

	f.send(t, warnings.OnWarnChoice{CallbackID: "cb1", MessageID: 9, Data: warnings.ChoiceDelete})
	_, ok = f.session(t)
	assert.False(t, ok)

	info, found, err := f.store.FindWarningType(f.ctx, "foo")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(30), info.Points)
	assert.Equal(t, warnings.OnWarnDeleteMessage, info.OnWarn)
	assert.Equal(t, "rules", info.Group.Name)
	assert.Equal(t, uint64(100), info.Group.MaxPoints)

	assert.Equal(t, []string{"cb1"}, f.fx.answered)
	assert.Equal(t, []string{"Selected."}, f.fx.edited)
	assert.Equal(t, warnings.CreatedMessage("foo"), f.fx.lastText())
}

func TestSetupGroupSnapshotIsolatedFromLaterEdits(t *testing.T) {
	f := newSetupFixture(t)
	f.walkTo(t, warnings.StepWaitForOnWarn)
	f.send(t, warnings.OnWarnChoice{CallbackID: "cb", Data: warnings.ChoiceNothing})

	require.NoError(t, f.store.UpsertGroup(f.ctx, muteGroup("rules", 5, warnings.Forever())))
	info, _, err := f.store.FindWarningType(f.ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), info.Group.MaxPoints)
	assert.Equal(t, warnings.OnWarnNothing, info.OnWarn)
}

func TestSetupCancelFromEveryState(t *testing.T) {
	steps := []warnings.SetupStep{
		warnings.StepWaitForWarnGroup,
		warnings.StepWaitForPoints,
		warnings.StepWaitForTrigger,
		warnings.StepWaitForOnWarn,
	}
	for _, step := range steps {
		t.Run(string(step), func(t *testing.T) {
			f := newSetupFixture(t)
			f.walkTo(t, step)
			st, ok := f.session(t)
			require.True(t, ok)
			require.Equal(t, step, st.Step)

			f.send(t, warnings.Cancel{})
			_, ok = f.session(t)
			assert.False(t, ok)
			assert.Equal(t, "Cancelled.", f.fx.lastText())

			f.send(t, warnings.NewWarn{TargetChatID: 43})
			st, ok = f.session(t)
			require.True(t, ok)
			assert.Equal(t, warnings.SetupWarnState{Step: warnings.StepWaitForWarnGroup, ChatID: 43}, st)
		})
	}
}

func TestSetupSentinelSessionIsTreatedAsAbsent(t *testing.T) {
	f := newSetupFixture(t)
	require.NoError(t, f.sessions.Set(f.ctx, convoKey, warnings.SetupWarnState{Step: warnings.StepWaitForWarnGroup}))

	f.send(t, warnings.NewWarn{TargetChatID: 42})
	st, ok := f.session(t)
	require.True(t, ok)
	assert.Equal(t, int64(42), st.ChatID)
	assert.NotEqual(t, "You already setup new warn type.", f.fx.lastText())
}

func TestSetupSentinelClearedBeforeText(t *testing.T) {
	f := newSetupFixture(t)
	require.NoError(t, f.sessions.Set(f.ctx, convoKey, warnings.SetupWarnState{}))

	f.send(t, warnings.Text{Body: "rules"})
	_, ok := f.session(t)
	assert.False(t, ok)
	assert.Empty(t, f.fx.texts)

	inProgress, err := f.setup.InProgress(f.ctx, convoKey)
	require.NoError(t, err)
	assert.False(t, inProgress)
}

func TestSetupRejectsSecondNewWarn(t *testing.T) {
	f := newSetupFixture(t)
	f.walkTo(t, warnings.StepWaitForPoints)
	before, _ := f.session(t)

	f.send(t, warnings.NewWarn{TargetChatID: 99})
	after, _ := f.session(t)
	assert.Equal(t, before, after)
	assert.Equal(t, "You already setup new warn type.", f.fx.lastText())
}

func TestSetupNewWarnWithoutChatID(t *testing.T) {
	f := newSetupFixture(t)
	f.send(t, warnings.NewWarn{})
	_, ok := f.session(t)
	assert.False(t, ok)
}

func TestSetupRepromptsKeepState(t *testing.T) {
	f := newSetupFixture(t)

	f.walkTo(t, warnings.StepWaitForWarnGroup)
	before, _ := f.session(t)
	f.send(t, warnings.Text{Body: "nope"})
	after, _ := f.session(t)
	assert.Equal(t, before, after)

	f.send(t, warnings.Text{Body: "rules"})
	before, _ = f.session(t)
	for _, bad := range []string{"abc", "-3", "1.5", ""} {
		f.send(t, warnings.Text{Body: bad})
		after, _ = f.session(t)
		assert.Equal(t, before, after, bad)
	}

	f.send(t, warnings.Text{Body: "0"})
	st, _ := f.session(t)
	assert.Equal(t, warnings.StepWaitForTrigger, st.Step)
	assert.Zero(t, st.Points)
}

func TestSetupDuplicateTriggerRepromptsAndKeepsFields(t *testing.T) {
	f := newSetupFixture(t)
	require.NoError(t, f.store.UpsertWarningType(f.ctx, warnings.WarningInfo{Trigger: "taken", Points: 1}))
	f.walkTo(t, warnings.StepWaitForTrigger)
	before, _ := f.session(t)

	f.send(t, warnings.Text{Body: "taken"})
	after, _ := f.session(t)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(30), after.Points)
	require.NotNil(t, after.Group)
	assert.Equal(t, "rules", after.Group.Name)
	assert.Equal(t, "Warn with such trigger already exists.", f.fx.lastText())

	f.send(t, warnings.Text{Body: "fresh"})
	st, _ := f.session(t)
	assert.Equal(t, warnings.StepWaitForOnWarn, st.Step)
}

func TestSetupOnWarnRejectsFreeText(t *testing.T) {
	f := newSetupFixture(t)
	f.walkTo(t, warnings.StepWaitForOnWarn)
	before, _ := f.session(t)

	f.send(t, warnings.Text{Body: "delete"})
	after, _ := f.session(t)
	assert.Equal(t, before, after)
	assert.Equal(t, "Please, use one of the buttons above.", f.fx.lastText())
}

func TestSetupOnWarnChoiceEdgeCases(t *testing.T) {
	f := newSetupFixture(t)

	f.send(t, warnings.OnWarnChoice{CallbackID: "early", Data: warnings.ChoiceDelete})
	assert.Equal(t, []string{"early"}, f.fx.answered)

	f.walkTo(t, warnings.StepWaitForOnWarn)
	before, _ := f.session(t)
	f.send(t, warnings.OnWarnChoice{CallbackID: "junk", Data: "maybe"})
	after, _ := f.session(t)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"early", "junk"}, f.fx.answered)
}

func TestSetupTriggerTakenAtCreateStepsBack(t *testing.T) {
	f := newSetupFixture(t)
	f.setup = warnings.NewSetup(&failingCatalog{Catalog: f.store, createErr: warnings.ErrTriggerExists}, f.sessions)
	f.walkTo(t, warnings.StepWaitForOnWarn)

	f.send(t, warnings.OnWarnChoice{CallbackID: "cb", Data: warnings.ChoiceDelete})
	st, ok := f.session(t)
	require.True(t, ok)
	assert.Equal(t, warnings.StepWaitForTrigger, st.Step)
	assert.Empty(t, st.Trigger)
	assert.Equal(t, uint64(30), st.Points)
}

func TestSetupCatalogFailurePropagates(t *testing.T) {
	f := newSetupFixture(t)
	f.setup = warnings.NewSetup(&failingCatalog{Catalog: f.store, createErr: errStorage}, f.sessions)
	f.walkTo(t, warnings.StepWaitForOnWarn)

	err := f.setup.Handle(f.ctx, f.fx, convoKey, warnings.OnWarnChoice{CallbackID: "cb", Data: warnings.ChoiceDelete})
	require.ErrorIs(t, err, errStorage)
	st, ok := f.session(t)
	require.True(t, ok)
	assert.Equal(t, warnings.StepWaitForOnWarn, st.Step)
}

func TestSetupIgnoresEventsFromOtherUsers(t *testing.T) {
	f := newSetupFixture(t)
	const starter, stranger = int64(1), int64(2)

	f.send(t, warnings.NewWarn{TargetChatID: 42, UserID: starter})
	f.send(t, warnings.Text{Body: "rules", UserID: starter})
	f.send(t, warnings.Text{Body: "30", UserID: starter})
	f.send(t, warnings.Text{Body: "foo", UserID: starter})
	before, ok := f.session(t)
	require.True(t, ok)
	assert.Equal(t, starter, before.StartedBy)
	prompts := len(f.fx.texts)

	f.send(t, warnings.Text{Body: "bar", UserID: stranger})
	f.send(t, warnings.Cancel{UserID: stranger})
	f.send(t, warnings.OnWarnChoice{CallbackID: "foreign", Data: warnings.ChoiceDelete, UserID: stranger})

	after, ok := f.session(t)
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Len(t, f.fx.texts, prompts)
	assert.Equal(t, []string{"foreign"}, f.fx.answered)
	_, created, err := f.store.FindWarningType(f.ctx, "foo")
	require.NoError(t, err)
	assert.False(t, created)

	f.send(t, warnings.OnWarnChoice{CallbackID: "own", Data: warnings.ChoiceNothing, UserID: starter})
	_, ok = f.session(t)
	assert.False(t, ok)
	info, created, err := f.store.FindWarningType(f.ctx, "foo")
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, warnings.OnWarnNothing, info.OnWarn)
}

func TestSetupSerializesEventsPerConversation(t *testing.T) {
	f := newSetupFixture(t)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func() {
			defer wg.Done()
			var ev warnings.SetupEvent = warnings.NewWarn{TargetChatID: 42}
			if i%2 == 1 {
				ev = warnings.Text{Body: "rules"}
			}
			assert.NoError(t, f.setup.Handle(f.ctx, f.fx, convoKey, ev))
		}()
	}
	wg.Wait()

	starts := 0
	for _, s := range f.fx.texts {
		if s.Text == "Good. Send me the name of the warn group the warn must relate to." {
			starts++
		}
	}
	assert.Equal(t, 1, starts)

	st, ok := f.session(t)
	require.True(t, ok)
	assert.Equal(t, int64(42), st.ChatID)
	if st.Step == warnings.StepWaitForPoints {
		require.NotNil(t, st.Group)
		assert.Equal(t, "rules", st.Group.Name)
	} else {
		assert.Equal(t, warnings.StepWaitForWarnGroup, st.Step)
		assert.Nil(t, st.Group)
	}
}

func TestSetupInProgressClearsSentinel(t *testing.T) {
	f := newSetupFixture(t)
	require.NoError(t, f.sessions.Set(f.ctx, convoKey, warnings.SetupWarnState{Step: warnings.StepWaitForWarnGroup}))

	inProgress, err := f.setup.InProgress(f.ctx, convoKey)
	require.NoError(t, err)
	assert.False(t, inProgress)
	_, ok := f.session(t)
	assert.False(t, ok)
}
