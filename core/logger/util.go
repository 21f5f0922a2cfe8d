package logger

import (
	"log/slog"
	"strings"
	"time"
	"unicode"
)

// Status is the status attribute for the outcome err.
func Status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// RoundMS rounds d to whole milliseconds; negative durations become 0.
func RoundMS(d time.Duration) time.Duration {
	return max(d, 0).Round(time.Millisecond)
}

// ListAttrs describes values as <key>_total and a preview of at most limit
// entries; <key>_truncated marks a cut preview.
func ListAttrs(key string, values []string, limit int) []slog.Attr {
	attrs := []slog.Attr{slog.Int(key+"_total", len(values))}
	if len(values) == 0 || limit <= 0 {
		return attrs
	}
	shown := values[:min(limit, len(values))]
	attrs = append(attrs, slog.String(key+"_preview", strings.Join(shown, ", ")))
	if len(shown) < len(values) {
		attrs = append(attrs, slog.Bool(key+"_truncated", true))
	}
	return attrs
}

// Sanitize drops control and format runes except tab and newline, so user
// text cannot forge log lines.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeLimit sanitizes s and keeps at most limit runes.
func SanitizeLimit(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	return string(r[:min(limit, len(r))])
}
