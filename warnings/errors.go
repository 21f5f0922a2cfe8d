package warnings

import "errors"

var (
	// ErrNoTargetUser is returned when a warning has no replied-to user.
	ErrNoTargetUser = errors.New("warnings: no target user")
	// ErrUnknownTrigger is returned when no warning type matches the trigger.
	ErrUnknownTrigger = errors.New("warnings: unknown trigger")
	// ErrPunishmentApplyFailed wraps a rejected restriction call.
	ErrPunishmentApplyFailed = errors.New("warnings: punishment apply failed")
	// ErrTriggerExists is returned by catalogs when the trigger is taken.
	ErrTriggerExists = errors.New("warnings: trigger already exists")
)
