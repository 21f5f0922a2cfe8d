package warnings

import (
	"context"
	"time"
)

// Catalog stores warning groups and warning types.
type Catalog interface {
	// FindWarningType returns ok=false when no type uses trigger.
	FindWarningType(ctx context.Context, trigger string) (WarningInfo, bool, error)
	FindGroup(ctx context.Context, name string) (WarningGroup, bool, error)
	// CreateWarningType fails with ErrTriggerExists when the trigger is taken.
	CreateWarningType(ctx context.Context, info WarningInfo) error
	UpsertGroup(ctx context.Context, group WarningGroup) error
	UpsertWarningType(ctx context.Context, info WarningInfo) error
	ListGroups(ctx context.Context) ([]WarningGroup, error)
}

// Ledger stores active and archived infraction records.
type Ledger interface {
	SumActivePoints(ctx context.Context, userID int64, group string) (uint64, error)
	InsertActive(ctx context.Context, w UserWarning) error
	// ArchiveActive moves every active record of (userID, group) to the
	// archive as one observable step and reports how many moved.
	ArchiveActive(ctx context.Context, userID int64, group string) (int, error)
	ActiveWarnings(ctx context.Context, userID int64) ([]UserWarning, error)
}

// SessionStore keeps setup conversation state per conversation key.
type SessionStore interface {
	Get(ctx context.Context, key int64) (SetupWarnState, bool, error)
	Set(ctx context.Context, key int64, st SetupWarnState) error
	Clear(ctx context.Context, key int64) error
}

// Choice is one button of a choice prompt.
type Choice struct {
	Label string
	Data  string
}

// Messenger is the outbound chat surface.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendChoice(ctx context.Context, chatID int64, text string, choices []Choice) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string) error
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
}

// Restrictor applies restrictions to chat members until the given time.
type Restrictor interface {
	Ban(ctx context.Context, chatID, userID int64, until time.Time) error
	Mute(ctx context.Context, chatID, userID int64, until time.Time) error
	Restrict(ctx context.Context, chatID, userID int64, perms Permissions, until time.Time) error
}

// Effects bundles everything the engine may do outside storage.
type Effects interface {
	Messenger
	Restrictor
}
