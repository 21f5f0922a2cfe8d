package warnings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/warnbot/core/logger"
)

// SetupEvent is an input of the setup conversation: NewWarn, Cancel, Text or
// OnWarnChoice. Every event carries the id of the user who sent it.
type SetupEvent interface {
	sender() int64
}

// NewWarn starts a conversation defining a warning type for TargetChatID.
type NewWarn struct {
	TargetChatID int64
	UserID       int64
}

// Cancel aborts the conversation in any state.
type Cancel struct {
	UserID int64
}

// Text is free text sent inside the conversation.
type Text struct {
	Body   string
	UserID int64
}

// OnWarnChoice is a press on one of the on-warn buttons.
type OnWarnChoice struct {
	CallbackID string
	MessageID  int
	Data       string
	UserID     int64
}

func (e NewWarn) sender() int64      { return e.UserID }
func (e Cancel) sender() int64       { return e.UserID }
func (e Text) sender() int64         { return e.UserID }
func (e OnWarnChoice) sender() int64 { return e.UserID }

// Setup drives the warning type setup conversation. Each conversation key is
// the chat the conversation takes place in.
type Setup struct {
	catalog  Catalog
	sessions SessionStore
	locks    *keyedMutex
}

// NewSetup builds the conversation handler.
func NewSetup(catalog Catalog, sessions SessionStore) *Setup {
	return &Setup{catalog: catalog, sessions: sessions, locks: newKeyedMutex()}
}

// InProgress reports whether key has a live conversation. A sentinel
// session found on the way is cleared.
func (s *Setup) InProgress(ctx context.Context, key int64) (bool, error) {
	unlock := s.locks.Lock(strconv.FormatInt(key, 10))
	defer unlock()

	cur, err := s.load(ctx, key)
	return cur != nil, err
}

// load returns the live session of key, nil when there is none. Sentinel
// sessions are cleared first. The caller holds the key lock.
func (s *Setup) load(ctx context.Context, key int64) (*SetupWarnState, error) {
	st, ok, err := s.sessions.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("warnings: load session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	if st.IsSentinel() {
		if err := s.sessions.Clear(ctx, key); err != nil {
			return nil, fmt.Errorf("warnings: clear sentinel session: %w", err)
		}
		logger.LogEvent(ctx, logger.Setup, slog.LevelWarn, "setup.sentinel_reset",
			slog.Int64("chat_id", key))
		return nil, nil
	}
	return &st, nil
}

// Handle applies ev to the conversation of key. Invalid input re-prompts and
// keeps the state; only store and messenger failures are returned. Events
// from anyone but the user who started the conversation leave it as it is.
func (s *Setup) Handle(ctx context.Context, m Messenger, key int64, ev SetupEvent) error {
	unlock := s.locks.Lock(strconv.FormatInt(key, 10))
	defer unlock()

	cur, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	if _, starting := ev.(NewWarn); !starting && cur != nil && !cur.acceptsFrom(ev.sender()) {
		s.transition(ctx, key, cur, cur.Step, "rejected")
		if choice, ok := ev.(OnWarnChoice); ok {
			return m.AnswerCallback(ctx, choice.CallbackID)
		}
		return nil
	}

	switch ev := ev.(type) {
	case NewWarn:
		return s.newWarn(ctx, m, key, cur, ev)
	case Cancel:
		if err := s.sessions.Clear(ctx, key); err != nil {
			return fmt.Errorf("warnings: clear session: %w", err)
		}
		s.transition(ctx, key, cur, "", "cancelled")
		return m.SendText(ctx, key, msgCancelled)
	case Text:
		if cur == nil {
			return nil
		}
		return s.text(ctx, m, key, *cur, strings.TrimSpace(ev.Body))
	case OnWarnChoice:
		return s.onWarnChoice(ctx, m, key, cur, ev)
	default:
		return fmt.Errorf("warnings: unsupported setup event %T", ev)
	}
}

func (s *Setup) newWarn(ctx context.Context, m Messenger, key int64, cur *SetupWarnState, ev NewWarn) error {
	if cur != nil {
		s.transition(ctx, key, cur, cur.Step, "rejected")
		return m.SendText(ctx, key, msgAlreadyInProgress)
	}
	if ev.TargetChatID == 0 {
		return m.SendText(ctx, key, msgNewWarnUsage)
	}
	next := SetupWarnState{Step: StepWaitForWarnGroup, ChatID: ev.TargetChatID, StartedBy: ev.UserID}
	if err := s.save(ctx, key, cur, next); err != nil {
		return err
	}
	return m.SendText(ctx, key, msgAskGroup)
}

func (s *Setup) text(ctx context.Context, m Messenger, key int64, st SetupWarnState, body string) error {
	switch st.Step {
	case StepWaitForWarnGroup:
		group, found, err := s.catalog.FindGroup(ctx, body)
		if err != nil {
			return fmt.Errorf("warnings: find group: %w", err)
		}
		if !found {
			s.transition(ctx, key, &st, st.Step, "reprompt")
			return m.SendText(ctx, key, msgUnknownGroup)
		}
		next := st
		next.Step = StepWaitForPoints
		next.Group = &group
		if err := s.save(ctx, key, &st, next); err != nil {
			return err
		}
		return m.SendText(ctx, key, msgAskPoints)

	case StepWaitForPoints:
		points, err := strconv.ParseUint(body, 10, 64)
		if err != nil {
			s.transition(ctx, key, &st, st.Step, "reprompt")
			return m.SendText(ctx, key, msgBadPoints)
		}
		next := st
		next.Step = StepWaitForTrigger
		next.Points = points
		if err := s.save(ctx, key, &st, next); err != nil {
			return err
		}
		return m.SendText(ctx, key, msgAskTrigger)

	case StepWaitForTrigger:
		if body == "" {
			s.transition(ctx, key, &st, st.Step, "reprompt")
			return m.SendText(ctx, key, msgEmptyTrigger)
		}
		_, taken, err := s.catalog.FindWarningType(ctx, body)
		if err != nil {
			return fmt.Errorf("warnings: find warning type: %w", err)
		}
		if taken {
			s.transition(ctx, key, &st, st.Step, "reprompt")
			return m.SendText(ctx, key, msgTriggerExists)
		}
		next := st
		next.Step = StepWaitForOnWarn
		next.Trigger = body
		if err := s.save(ctx, key, &st, next); err != nil {
			return err
		}
		return m.SendChoice(ctx, key, msgAskOnWarn, OnWarnChoices)

	case StepWaitForOnWarn:
		s.transition(ctx, key, &st, st.Step, "reprompt")
		return m.SendText(ctx, key, msgUseButtons)

	default:
		// Unknown steps come from foreign or corrupt stores; drop them.
		logger.LogEvent(ctx, logger.Setup, slog.LevelWarn, "setup.unknown_step",
			slog.Int64("chat_id", key), slog.String("step", string(st.Step)))
		return s.sessions.Clear(ctx, key)
	}
}

func (s *Setup) onWarnChoice(ctx context.Context, m Messenger, key int64, cur *SetupWarnState, ev OnWarnChoice) error {
	if cur == nil || cur.Step != StepWaitForOnWarn {
		return m.AnswerCallback(ctx, ev.CallbackID)
	}
	var action OnWarnAction
	switch ev.Data {
	case ChoiceDelete:
		action = OnWarnDeleteMessage
	case ChoiceNothing:
		action = OnWarnNothing
	default:
		logger.LogEvent(ctx, logger.Setup, slog.LevelWarn, "setup.unexpected_choice",
			slog.Int64("chat_id", key), slog.String("payload", logger.SanitizeLimit(ev.Data, 64)))
		return m.AnswerCallback(ctx, ev.CallbackID)
	}

	info := WarningInfo{
		Trigger: cur.Trigger,
		Points:  cur.Points,
		OnWarn:  action,
	}
	if cur.Group != nil {
		info.Group = *cur.Group
	}
	if err := s.catalog.CreateWarningType(ctx, info); err != nil {
		if !errors.Is(err, ErrTriggerExists) {
			return fmt.Errorf("warnings: create warning type: %w", err)
		}
		// Someone else took the trigger since it was checked.
		back := *cur
		back.Step = StepWaitForTrigger
		back.Trigger = ""
		if err := s.save(ctx, key, cur, back); err != nil {
			return err
		}
		return errors.Join(
			m.AnswerCallback(ctx, ev.CallbackID),
			m.SendText(ctx, key, msgTriggerTaken),
		)
	}
	if err := s.sessions.Clear(ctx, key); err != nil {
		return fmt.Errorf("warnings: clear session: %w", err)
	}
	s.transition(ctx, key, cur, "", "ok")

	if err := m.AnswerCallback(ctx, ev.CallbackID); err != nil {
		return err
	}
	if ev.MessageID != 0 {
		if err := m.EditText(ctx, key, ev.MessageID, msgSelected); err != nil {
			return err
		}
	}
	return m.SendText(ctx, key, CreatedMessage(info.Trigger))
}

func (s *Setup) save(ctx context.Context, key int64, cur *SetupWarnState, next SetupWarnState) error {
	if err := s.sessions.Set(ctx, key, next); err != nil {
		return fmt.Errorf("warnings: save session: %w", err)
	}
	s.transition(ctx, key, cur, next.Step, "ok")
	return nil
}

func (s *Setup) transition(ctx context.Context, key int64, cur *SetupWarnState, next SetupStep, outcome string) {
	var step SetupStep
	if cur != nil {
		step = cur.Step
	}
	logger.LogEvent(ctx, logger.Setup, slog.LevelDebug, "setup.transition",
		slog.Int64("chat_id", key),
		slog.String("step", string(step)),
		slog.String("next_step", string(next)),
		slog.String("outcome", outcome),
	)
}
