package warnings

import (
	"fmt"
	"strings"
)

// WarnedMessage reports an accumulated warning.
func WarnedMessage(name string, points, maxPoints uint64) string {
	return fmt.Sprintf("%s has been warned! %d/%d points.", name, points, maxPoints)
}

// PunishedMessage reports an applied punishment.
func PunishedMessage(name string, p Punishment) string {
	var verb string
	switch p.Kind {
	case PunishBan:
		verb = "banned"
	case PunishMute:
		verb = "muted"
	default:
		verb = "restricted"
	}
	return fmt.Sprintf("User %s has been %s %s", name, verb, DurationPhrase(p.Time))
}

// DurationPhrase renders a punishment time as "for N seconds." or "forever!".
func DurationPhrase(t PunishmentTime) string {
	if t.Forever {
		return "forever!"
	}
	return fmt.Sprintf("for %d seconds.", t.Seconds)
}

// GroupsMessage lists the warning groups of the catalog.
func GroupsMessage(groups []WarningGroup) string {
	if len(groups) == 0 {
		return "There are no warning groups yet."
	}
	var b strings.Builder
	b.WriteString("Warning groups:")
	for _, g := range groups {
		fmt.Fprintf(&b, "\n%s: %d points, %s %s", g.Name, g.MaxPoints, g.Punishment.Kind, DurationPhrase(g.Punishment.Time))
	}
	return b.String()
}

// SummaryMessage lists active points per group for one user.
func SummaryMessage(name string, groups []GroupPoints) string {
	if len(groups) == 0 {
		return fmt.Sprintf("%s has no active warnings.", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Active warnings of %s:", name)
	for _, g := range groups {
		fmt.Fprintf(&b, "\n%s: %d/%d points (%d)", g.Group, g.Points, g.MaxPoints, g.Warnings)
	}
	return b.String()
}
