package logger

import (
	"slices"
	"strings"
)

// Values the status and outcome attributes may take. Unknown statuses pass
// through; unknown outcomes are dropped.
var (
	knownStatus  = []string{"ok", "fail", "skip", "retry", "rate_limited", "cancelled", "rejected"}
	knownOutcome = []string{"ok", "fail", "cancelled", "rate_limited", "warned", "punished", "reprompt", "rejected"}
)

// defaultKeyOrder puts record identity first, then the request, then
// domain details; unlisted keys follow alphabetically.
var defaultKeyOrder = slices.Concat(
	[]string{"ts", "level", "component", "event", "status"},
	[]string{"rid", "rid_full", "ts_unix_nano", "update_id", "user_id", "chat_id", "chat_type", "handler", "cb_key"},
	[]string{"outcome", "duration_ms", "messages", "kb"},
	[]string{"conversation", "step", "next_step", "trigger", "group", "points", "max_points", "punishment", "expires_at", "archived"},
	[]string{"action", "target_chat", "payload", "username", "mode", "listen", "public_url", "driver", "db", "host", "port"},
	[]string{"err", "err_code", "err_kind", "cause", "attempts"},
)

func normalizeLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "":
		return "INFO"
	case "WARNING":
		return "WARN"
	default:
		return l
	}
}

func normalizeStatus(status string) string {
	status = strings.TrimSpace(status)
	if lower := strings.ToLower(status); slices.Contains(knownStatus, lower) {
		return lower
	}
	return status
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	return outcome, slices.Contains(knownOutcome, outcome)
}
