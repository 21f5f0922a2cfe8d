package logger

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

// jsonOnlyKeys duplicate other keys in a machine friendly form; key=value
// lines skip them.
var jsonOnlyKeys = map[string]bool{"rid_full": true, "ts_unix_nano": true}

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler flattens a record into one field map and renders it as
// a single line with well-known keys first.
type structuredHandler struct {
	cfg    handlerConfig
	rank   map[string]int
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if len(cfg.keyOrder) == 0 {
		cfg.keyOrder = defaultKeyOrder
	}
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, key := range cfg.keyOrder {
		if _, dup := rank[key]; !dup {
			rank[key] = i
		}
	}
	return &structuredHandler{cfg: cfg, rank: rank}
}

// Enabled implements slog.Handler.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle implements slog.Handler.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	fields := h.fields(ctx, r)
	var (
		line []byte
		err  error
	)
	if h.cfg.format == formatJSON {
		line, err = h.renderJSON(fields)
	} else {
		line = h.renderKV(fields)
	}
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

// WithAttrs implements slog.Handler.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clip(h.attrs), attrs...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

// fields collects the record, handler attrs and request identifiers, then
// normalises well-known values and prunes empty ones.
func (h *structuredHandler) fields(ctx context.Context, r slog.Record) map[string]any {
	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = normalizeLevel(r.Level.String())
	if h.cfg.format == formatJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}

	prefix := strings.Join(h.groups, ".")
	put := func(key string, v slog.Value) {
		if key, val, ok := fieldValue(key, v); ok {
			fields[key] = val
		}
	}
	for _, a := range h.attrs {
		flatten(prefix, a, put)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(prefix, a, put)
		return true
	})
	addRequestFields(ctx, fields)

	if rid, _ := fields["rid"].(string); rid != "" {
		if short := compactRID(rid); short != rid {
			fields["rid"] = short
			fields["rid_full"] = rid
		}
	}
	if event, _ := fields["event"].(string); event == "" {
		fields["event"] = cmp.Or(r.Message, "unknown")
	}
	if component, _ := fields["component"].(string); component == "" {
		fields["component"] = "app"
	}
	normalizeEnumerations(fields)

	for key, val := range fields {
		if s, isString := val.(string); val == nil || (isString && s == "") {
			delete(fields, key)
		}
	}
	return fields
}

// flatten walks groups depth first, joining keys with dots.
func flatten(prefix string, attr slog.Attr, put func(string, slog.Value)) {
	key := attr.Key
	switch {
	case prefix == "":
	case key == "":
		key = prefix
	default:
		key = prefix + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, child := range attr.Value.Group() {
			flatten(key, child, put)
		}
		return
	}
	put(key, attr.Value.Resolve())
}

// fieldValue converts v to a plain value. Durations become whole
// milliseconds under a key ending in "_ms".
func fieldValue(key string, v slog.Value) (string, any, bool) {
	if key == "" {
		return "", nil, false
	}
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func msKey(key string) string {
	if key == "duration" {
		return "duration_ms"
	}
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func normalizeEnumerations(fields map[string]any) {
	if s, ok := fields["status"].(string); ok && s != "" {
		fields["status"] = normalizeStatus(s)
	}
	if o, ok := fields["outcome"].(string); ok && o != "" {
		if normalized, valid := normalizeOutcome(o); valid {
			fields["outcome"] = normalized
		} else {
			delete(fields, "outcome")
		}
	}
}

// sortedKeys puts ranked keys first in rank order and the rest alphabetically.
func (h *structuredHandler) sortedKeys(fields map[string]any) []string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		ra, rankedA := h.rank[a]
		rb, rankedB := h.rank[b]
		switch {
		case rankedA && rankedB:
			return ra - rb
		case rankedA:
			return -1
		case rankedB:
			return 1
		}
		return strings.Compare(a, b)
	})
	return keys
}

func (h *structuredHandler) renderJSON(fields map[string]any) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, key := range h.sortedKeys(fields) {
		val, err := json.Marshal(fields[key])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(key))
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (h *structuredHandler) renderKV(fields map[string]any) []byte {
	var b bytes.Buffer
	for _, key := range h.sortedKeys(fields) {
		if jsonOnlyKeys[key] {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		val := fmt.Sprint(fields[key])
		if strings.IndexFunc(val, needsQuote) >= 0 {
			val = strconv.Quote(val)
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(val)
	}
	return b.Bytes()
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

// addRequestFields fills the identifiers of the request of ctx the record
// did not set itself.
func addRequestFields(ctx context.Context, fields map[string]any) {
	for key, val := range RequestFrom(ctx).fields() {
		if _, set := fields[key]; !set {
			fields[key] = val
		}
	}
}
