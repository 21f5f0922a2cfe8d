package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/warnbot/core/config"
)

// capture logs one event through a fresh handler and returns the line.
func capture(t *testing.T, format logFormat, ctx context.Context, component, event string, attrs ...slog.Attr) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: aw, format: format})
	LogEvent(ctx, slog.New(h).With("component", component), slog.LevelInfo, event, attrs...)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected a log line")
	}
	return line
}

func inOrder(t *testing.T, line string, parts ...string) {
	t.Helper()
	pos := -1
	for _, p := range parts {
		idx := strings.Index(line, p)
		if idx < 0 || idx < pos {
			t.Fatalf("%q missing or out of order in %s", p, line)
		}
		pos = idx
	}
}

func TestHandlerKeyOrder(t *testing.T) {
	ctx := WithRequest(context.Background(), Request{RID: "rid-123", UpdateID: 42, UserID: 7, ChatID: 9})

	kv := capture(t, formatKV, ctx, "warnings.engine", "warn.accumulate",
		slog.String("status", "ok"),
		slog.String("group", "spam"),
	)
	inOrder(t, kv, "ts=", "level=INFO", "component=warnings.engine", "event=warn.accumulate",
		"status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9", "group=spam")

	js := capture(t, formatJSON, ctx, "warnings.engine", "warn.punish",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
	)
	inOrder(t, js, `{"ts":`, `"level":"INFO"`, `"component":"warnings.engine"`,
		`"event":"warn.punish"`, `"status":"fail"`, `"rid":"rid-123"`, `"err":"boom"`)
}

func TestHandlerRecordOverridesRequest(t *testing.T) {
	ctx := WithHandler(WithRequest(context.Background(), Request{ChatID: 9}), "warn")
	line := capture(t, formatKV, ctx, "tg", "tg.out", slog.Int64("chat_id", 5))
	if !strings.Contains(line, "chat_id=5") || !strings.Contains(line, "handler=warn") {
		t.Fatalf("unexpected line %s", line)
	}
}

func TestHandlerCompactsRID(t *testing.T) {
	ctx := WithRequest(context.Background(), Request{RID: BuildRID(12, 34, 56)})

	kv := capture(t, formatKV, ctx, "app", "rid.test")
	if !strings.Contains(kv, "rid=c.y.1k ") && !strings.HasSuffix(kv, "rid=c.y.1k") {
		t.Fatalf("expected compact rid, got %s", kv)
	}
	if strings.Contains(kv, "rid_full=") || strings.Contains(kv, "ts_unix_nano=") {
		t.Fatalf("JSON-only keys leaked into KV output: %s", kv)
	}

	js := capture(t, formatJSON, ctx, "app", "rid.test")
	for _, want := range []string{`"rid":"c.y.1k"`, `"rid_full":"12:34:56"`, `"ts_unix_nano"`} {
		if !strings.Contains(js, want) {
			t.Fatalf("expected %s in %s", want, js)
		}
	}
}

func TestHandlerNormalizesValues(t *testing.T) {
	line := capture(t, formatKV, context.Background(), "warnings.setup", "setup.transition",
		slog.String("step", "wait_for_points"),
		slog.String("next_step", "wait_for_trigger"),
		slog.String("trigger", ""),
		slog.String("outcome", "bogus"),
		slog.String("status", "OK"),
		slog.Duration("took", 1500*time.Microsecond),
		slog.String("payload", "two words"),
	)
	inOrder(t, line, "status=ok", "step=", "next_step=")
	if strings.Contains(line, "trigger=") {
		t.Fatalf("empty values must be pruned: %s", line)
	}
	if strings.Contains(line, "outcome=") {
		t.Fatalf("unknown outcome must be dropped: %s", line)
	}
	if !strings.Contains(line, "took_ms=2") {
		t.Fatalf("durations are rendered in rounded ms: %s", line)
	}
	if !strings.Contains(line, `payload="two words"`) {
		t.Fatalf("values with spaces are quoted: %s", line)
	}
}

func TestAsyncWriterDropsAfterClose(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 16)
	if err := aw.Write([]byte("a\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := aw.Write([]byte("b\n")); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if got := buf.String(); got != "a\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestListAttrs(t *testing.T) {
	attrs := ListAttrs("files", []string{"a", "b", "c"}, 2)
	if len(attrs) != 3 || attrs[1].Value.String() != "a, b" || !attrs[2].Value.Bool() {
		t.Fatalf("unexpected attrs %v", attrs)
	}
	if attrs := ListAttrs("files", nil, 2); len(attrs) != 1 || attrs[0].Value.Int64() != 0 {
		t.Fatalf("unexpected attrs %v", attrs)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("a\x00b​c\nd", 4); got != "abc\n" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeLimit("abc", 0); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestSampler(t *testing.T) {
	var s sampler
	if !s.allow() {
		t.Fatal("an unset sampler passes everything")
	}
	s.set(1, 3)
	var passed int
	for range 9 {
		if s.allow() {
			passed++
		}
	}
	if passed != 3 {
		t.Fatalf("passed %d of 9, want 3", passed)
	}
}

func TestParseRatio(t *testing.T) {
	cases := map[string][2]int{"10": {1, 10}, "2/5": {2, 5}, " 1 / 4 ": {1, 4}}
	for raw, want := range cases {
		keep, of, ok := parseRatio(raw)
		if !ok || keep != want[0] || of != want[1] {
			t.Fatalf("parseRatio(%q) = %d/%d %v", raw, keep, of, ok)
		}
	}
	for _, raw := range []string{"", "x/2", "0/5", "-3"} {
		if _, _, ok := parseRatio(raw); ok {
			t.Fatalf("parseRatio(%q) accepted", raw)
		}
	}
}

func TestResolveSettings(t *testing.T) {
	s := resolve(nil)
	if s.format != formatJSON || s.level != slog.LevelInfo || s.sample != [2]int{1, defaultSampleOf} {
		t.Fatalf("unexpected defaults %+v", s)
	}

	cfg := &coreconfig.Config{}
	cfg.Logging.Profile = "Dev"
	cfg.Logging.Level = "warning"
	cfg.Logging.KeysOrder = "event, ts"
	cfg.Logging.DebugSample = "1/5"
	cfg.Logging.Dir = "logs"
	cfg.Logging.BotFile = "bot.log"
	s = resolve(cfg)
	if s.format != formatKV || s.level != slog.LevelWarn || s.profile != "dev" {
		t.Fatalf("unexpected settings %+v", s)
	}
	if len(s.keyOrder) != 2 || s.keyOrder[0] != "event" || s.sample != [2]int{1, 5} {
		t.Fatalf("unexpected settings %+v", s)
	}
	if s.filePath != filepath.Join("logs", "bot.log") {
		t.Fatalf("unexpected file path %q", s.filePath)
	}
}
