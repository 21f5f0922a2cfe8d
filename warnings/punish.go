package warnings

import (
	"context"
	"fmt"
	"time"
)

// Expiry returns when a punishment starting at anchor ends. Forever maps to
// anchor itself: Telegram treats a restriction until "now" as permanent.
func Expiry(t PunishmentTime, anchor time.Time) time.Time {
	if t.Forever {
		return anchor
	}
	return anchor.Add(time.Duration(t.Seconds) * time.Second)
}

// ApplyPunishment dispatches p to the matching restriction call. Failures
// wrap ErrPunishmentApplyFailed together with the collaborator error.
func ApplyPunishment(ctx context.Context, r Restrictor, p Punishment, anchor time.Time, chatID, userID int64) error {
	until := Expiry(p.Time, anchor)
	var err error
	switch p.Kind {
	case PunishBan:
		err = r.Ban(ctx, chatID, userID, until)
	case PunishMute:
		err = r.Mute(ctx, chatID, userID, until)
	case PunishRestrict:
		var perms Permissions
		if p.Permissions != nil {
			perms = *p.Permissions
		}
		err = r.Restrict(ctx, chatID, userID, perms, until)
	default:
		err = fmt.Errorf("unknown punishment kind %q", p.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPunishmentApplyFailed, p.Kind, err)
	}
	return nil
}
