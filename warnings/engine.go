package warnings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/warnbot/core/logger"
)

// Target is the user a warning is issued against.
type Target struct {
	UserID      int64
	DisplayName string
}

// WarnRequest is a parsed "/warn <trigger>" issued as a reply.
type WarnRequest struct {
	Trigger string
	ChatID  int64
	// Target is nil when the command did not reply to a user message.
	Target           *Target
	ReplyToMessageID int
	// AnchorTime is the time of the triggering message; punishment expiry is
	// computed from it.
	AnchorTime time.Time
}

// Outcome describes what IssueWarning did.
type Outcome struct {
	Group     string
	Punished  bool
	Points    uint64
	MaxPoints uint64
	Archived  int
}

// Engine evaluates warnings against the catalog and ledger.
type Engine struct {
	catalog Catalog
	ledger  Ledger
	locks   *keyedMutex
	newID   func() string
	now     func() time.Time
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithClock overrides the clock used when a request carries no anchor time.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides infraction record id generation.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) { e.newID = gen }
}

// NewEngine builds an Engine over the given stores.
func NewEngine(catalog Catalog, ledger Ledger, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: catalog,
		ledger:  ledger,
		locks:   newKeyedMutex(),
		newID:   func() string { return uuid.NewString() },
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IssueWarning warns req.Target with the warning type named by req.Trigger.
// Reaching the group threshold punishes first and archives the active
// records afterwards, so a failed punishment leaves the ledger untouched.
func (e *Engine) IssueWarning(ctx context.Context, fx Effects, req WarnRequest) (Outcome, error) {
	if req.Target == nil {
		return Outcome{}, ErrNoTargetUser
	}
	info, ok, err := e.catalog.FindWarningType(ctx, req.Trigger)
	if err != nil {
		return Outcome{}, fmt.Errorf("warnings: find warning type: %w", err)
	}
	if !ok {
		return Outcome{}, ErrUnknownTrigger
	}
	if req.AnchorTime.IsZero() {
		req.AnchorTime = e.now()
	}

	out, err := e.evaluate(ctx, fx, req, info)
	if err != nil {
		return out, err
	}

	var text string
	if out.Punished {
		text = PunishedMessage(req.Target.DisplayName, info.Group.Punishment)
	} else {
		text = WarnedMessage(req.Target.DisplayName, out.Points, out.MaxPoints)
	}
	notifyErr := fx.SendText(ctx, req.ChatID, text)

	var onWarnErr error
	if info.OnWarn == OnWarnDeleteMessage && req.ReplyToMessageID != 0 {
		onWarnErr = fx.DeleteMessage(ctx, req.ChatID, req.ReplyToMessageID)
	}
	if err := errors.Join(notifyErr, onWarnErr); err != nil {
		return out, fmt.Errorf("warnings: notify: %w", err)
	}
	return out, nil
}

// evaluate runs the read-decide-write step under the (user, group) lock.
func (e *Engine) evaluate(ctx context.Context, fx Restrictor, req WarnRequest, info WarningInfo) (Outcome, error) {
	group := info.Group
	userID := req.Target.UserID
	unlock := e.locks.Lock(strconv.FormatInt(userID, 10) + ":" + group.Name)
	defer unlock()

	current, err := e.ledger.SumActivePoints(ctx, userID, group.Name)
	if err != nil {
		return Outcome{}, fmt.Errorf("warnings: sum active points: %w", err)
	}
	out := Outcome{
		Group:     group.Name,
		Points:    current + info.Points,
		MaxPoints: group.MaxPoints,
	}
	attrs := []slog.Attr{
		slog.Int64("user_id", userID),
		slog.Int64("chat_id", req.ChatID),
		slog.String("trigger", info.Trigger),
		slog.String("group", group.Name),
		slog.Uint64("points", out.Points),
		slog.Uint64("max_points", out.MaxPoints),
	}

	if out.Points < group.MaxPoints {
		rec := UserWarning{
			ID:       e.newID(),
			UserID:   userID,
			ChatID:   req.ChatID,
			Info:     info,
			IssuedAt: req.AnchorTime,
		}
		if err := e.ledger.InsertActive(ctx, rec); err != nil {
			return Outcome{}, fmt.Errorf("warnings: insert active: %w", err)
		}
		logger.LogEvent(ctx, logger.Warn, slog.LevelInfo, "warn.accumulate",
			append(attrs, slog.String("status", "ok"), slog.String("outcome", "warned"))...)
		return out, nil
	}

	p := group.Punishment
	attrs = append(attrs,
		slog.String("punishment", string(p.Kind)),
		slog.Time("expires_at", Expiry(p.Time, req.AnchorTime)),
	)
	if err := ApplyPunishment(ctx, fx, p, req.AnchorTime, req.ChatID, userID); err != nil {
		logger.LogEvent(ctx, logger.Warn, slog.LevelError, "warn.punish",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return Outcome{}, err
	}
	archived, err := e.ledger.ArchiveActive(ctx, userID, group.Name)
	if err != nil {
		logger.LogEvent(ctx, logger.Warn, slog.LevelError, "warn.archive",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return Outcome{}, fmt.Errorf("warnings: archive active: %w", err)
	}
	out.Punished = true
	out.Archived = archived
	logger.LogEvent(ctx, logger.Warn, slog.LevelInfo, "warn.punish",
		append(attrs,
			slog.String("status", "ok"),
			slog.String("outcome", "punished"),
			slog.Int("archived", archived),
		)...)
	return out, nil
}

// Groups returns the warning groups of the catalog.
func (e *Engine) Groups(ctx context.Context) ([]WarningGroup, error) {
	groups, err := e.catalog.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("warnings: list groups: %w", err)
	}
	return groups, nil
}

// ActiveSummary returns the user's active points per group, sorted by group name.
func (e *Engine) ActiveSummary(ctx context.Context, userID int64) ([]GroupPoints, error) {
	active, err := e.ledger.ActiveWarnings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("warnings: active warnings: %w", err)
	}
	byGroup := make(map[string]*GroupPoints)
	for _, w := range active {
		g := w.Info.Group
		gp, ok := byGroup[g.Name]
		if !ok {
			gp = &GroupPoints{Group: g.Name}
			byGroup[g.Name] = gp
		}
		gp.Points += w.Info.Points
		gp.Warnings++
		if g.MaxPoints > gp.MaxPoints {
			gp.MaxPoints = g.MaxPoints
		}
	}
	out := make([]GroupPoints, 0, len(byGroup))
	for _, gp := range byGroup {
		out = append(out, *gp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out, nil
}
