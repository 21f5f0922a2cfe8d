// Package warnings implements the moderation core: accumulating warning
// points per user and warning group, punishing at the group threshold, and
// the setup conversation that defines new warning types.
package warnings

import (
	"errors"
	"fmt"
	"time"
)

// PunishmentKind selects the restriction applied when a group threshold is reached.
type PunishmentKind string

const (
	PunishBan      PunishmentKind = "ban"
	PunishMute     PunishmentKind = "mute"
	PunishRestrict PunishmentKind = "restrict"
)

// PunishmentTime is either a number of seconds or forever.
type PunishmentTime struct {
	Seconds uint64 `yaml:"seconds" json:"seconds" bson:"seconds"`
	Forever bool   `yaml:"forever" json:"forever" bson:"forever"`
}

// Forever returns the unbounded punishment duration.
func Forever() PunishmentTime { return PunishmentTime{Forever: true} }

// For returns a punishment duration of d, truncated to whole seconds.
func For(d time.Duration) PunishmentTime {
	if d <= 0 {
		return PunishmentTime{}
	}
	return PunishmentTime{Seconds: uint64(d / time.Second)}
}

// Permissions is the custom permission set applied by a restrict punishment.
type Permissions struct {
	CanSendMessages bool `yaml:"can_send_messages" json:"can_send_messages" bson:"can_send_messages"`
	CanSendPolls    bool `yaml:"can_send_polls" json:"can_send_polls" bson:"can_send_polls"`
	CanSendOther    bool `yaml:"can_send_other" json:"can_send_other" bson:"can_send_other"`
	CanAddPreviews  bool `yaml:"can_add_previews" json:"can_add_previews" bson:"can_add_previews"`
	CanChangeInfo   bool `yaml:"can_change_info" json:"can_change_info" bson:"can_change_info"`
	CanInviteUsers  bool `yaml:"can_invite_users" json:"can_invite_users" bson:"can_invite_users"`
	CanPinMessages  bool `yaml:"can_pin_messages" json:"can_pin_messages" bson:"can_pin_messages"`
}

// Punishment is embedded in a WarningGroup and never changes after creation.
type Punishment struct {
	Time        PunishmentTime `yaml:"time" json:"time" bson:"time"`
	Kind        PunishmentKind `yaml:"kind" json:"kind" bson:"kind"`
	Permissions *Permissions   `yaml:"permissions,omitempty" json:"permissions,omitempty" bson:"permissions,omitempty"`
}

// Validate checks that the kind is known and restrict carries permissions.
func (p Punishment) Validate() error {
	switch p.Kind {
	case PunishBan, PunishMute:
		return nil
	case PunishRestrict:
		if p.Permissions == nil {
			return errors.New("restrict punishment requires permissions")
		}
		return nil
	default:
		return fmt.Errorf("unknown punishment kind %q", p.Kind)
	}
}

// WarningGroup buckets warning types under a shared threshold and punishment.
// MaxPoints == 0 makes every warning of the group punish immediately.
type WarningGroup struct {
	Name       string     `yaml:"name" json:"name" bson:"name"`
	MaxPoints  uint64     `yaml:"max_points" json:"max_points" bson:"max_points"`
	Punishment Punishment `yaml:"punishment" json:"punishment" bson:"punishment"`
}

// Validate reports malformed group definitions.
func (g WarningGroup) Validate() error {
	if g.Name == "" {
		return errors.New("warning group name is required")
	}
	if err := g.Punishment.Validate(); err != nil {
		return fmt.Errorf("warning group %q: %w", g.Name, err)
	}
	return nil
}

// OnWarnAction is the side effect run after a warning is issued.
type OnWarnAction string

const (
	OnWarnDeleteMessage OnWarnAction = "delete_message"
	OnWarnNothing       OnWarnAction = "nothing"
)

// WarningInfo is a warning type. Group is a copy of the group taken when the
// type was created; later group changes do not affect it.
type WarningInfo struct {
	Trigger string       `yaml:"trigger" json:"trigger" bson:"trigger"`
	Points  uint64       `yaml:"points" json:"points" bson:"points"`
	Group   WarningGroup `yaml:"group" json:"group" bson:"group"`
	OnWarn  OnWarnAction `yaml:"on_warn" json:"on_warn" bson:"on_warn"`
}

// Validate reports malformed warning types.
func (w WarningInfo) Validate() error {
	if w.Trigger == "" {
		return errors.New("warning trigger is required")
	}
	switch w.OnWarn {
	case OnWarnDeleteMessage, OnWarnNothing:
	default:
		return fmt.Errorf("warning %q: unknown on_warn action %q", w.Trigger, w.OnWarn)
	}
	return w.Group.Validate()
}

// UserWarning is one infraction record, either active or archived.
type UserWarning struct {
	ID       string      `json:"id" bson:"_id"`
	UserID   int64       `json:"user_id" bson:"user_id"`
	ChatID   int64       `json:"chat_id" bson:"chat_id"`
	Info     WarningInfo `json:"info" bson:"info"`
	IssuedAt time.Time   `json:"issued_at" bson:"issued_at"`
}

// GroupPoints summarises a user's active points in one group.
type GroupPoints struct {
	Group     string
	Points    uint64
	MaxPoints uint64
	Warnings  int
}
