package warnings_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/warnbot/warnings"
)

func TestExpiry(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, at, warnings.Expiry(warnings.Forever(), at))
	assert.Equal(t, at.Add(time.Hour), warnings.Expiry(warnings.PunishmentTime{Seconds: 3600}, at))
	assert.Equal(t, at, warnings.Expiry(warnings.PunishmentTime{}, at))
}

func TestApplyPunishmentDispatch(t *testing.T) {
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)
	for _, kind := range []warnings.PunishmentKind{warnings.PunishBan, warnings.PunishMute, warnings.PunishRestrict} {
		fx := &fakeEffects{}
		p := warnings.Punishment{Kind: kind, Time: warnings.For(time.Minute), Permissions: &warnings.Permissions{}}
		require.NoError(t, warnings.ApplyPunishment(ctx, fx, p, at, 1, 2))
		require.Len(t, fx.restrictions, 1)
		assert.Equal(t, kind, fx.restrictions[0].Kind)
		assert.Equal(t, at.Add(time.Minute), fx.restrictions[0].Until)
	}

	err := warnings.ApplyPunishment(ctx, &fakeEffects{}, warnings.Punishment{Kind: "kick"}, at, 1, 2)
	assert.ErrorIs(t, err, warnings.ErrPunishmentApplyFailed)

	boom := errors.New("boom")
	err = warnings.ApplyPunishment(ctx, &fakeEffects{restrictErr: boom}, warnings.Punishment{Kind: warnings.PunishBan}, at, 1, 2)
	assert.ErrorIs(t, err, warnings.ErrPunishmentApplyFailed)
	assert.ErrorIs(t, err, boom)
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Ann has been warned! 30/100 points.", warnings.WarnedMessage("Ann", 30, 100))
	assert.Equal(t, "User Ann has been banned for 60 seconds.",
		warnings.PunishedMessage("Ann", warnings.Punishment{Kind: warnings.PunishBan, Time: warnings.For(time.Minute)}))
	assert.Equal(t, "User Ann has been restricted forever!",
		warnings.PunishedMessage("Ann", warnings.Punishment{Kind: warnings.PunishRestrict, Time: warnings.Forever()}))
	assert.Equal(t, "Ann has no active warnings.", warnings.SummaryMessage("Ann", nil))
	assert.Equal(t, "There are no warning groups yet.", warnings.GroupsMessage(nil))
	assert.Equal(t, "Warning groups:\nrules: 100 points, mute forever!\nspam: 3 points, ban for 60 seconds.",
		warnings.GroupsMessage([]warnings.WarningGroup{
			{Name: "rules", MaxPoints: 100, Punishment: warnings.Punishment{Kind: warnings.PunishMute, Time: warnings.Forever()}},
			{Name: "spam", MaxPoints: 3, Punishment: warnings.Punishment{Kind: warnings.PunishBan, Time: warnings.For(time.Minute)}},
		}))
	assert.Equal(t, "Active warnings of Ann:\nrules: 30/100 points (1)",
		warnings.SummaryMessage("Ann", []warnings.GroupPoints{{Group: "rules", Points: 30, MaxPoints: 100, Warnings: 1}}))
}

func TestValidate(t *testing.T) {
	ok := warnings.WarningInfo{
		Trigger: "spam",
		OnWarn:  warnings.OnWarnNothing,
		Group:   warnings.WarningGroup{Name: "rules", Punishment: warnings.Punishment{Kind: warnings.PunishMute}},
	}
	require.NoError(t, ok.Validate())

	bad := ok
	bad.OnWarn = "explode"
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Group.Punishment.Kind = warnings.PunishRestrict
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Group.Name = ""
	assert.Error(t, bad.Validate())
}
