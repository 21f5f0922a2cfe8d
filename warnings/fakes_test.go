package warnings_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m3rciful/warnbot/warnings"
)

type restriction struct {
	Kind   warnings.PunishmentKind
	ChatID int64
	UserID int64
	Perms  *warnings.Permissions
	Until  time.Time
}

type sent struct {
	ChatID  int64
	Text    string
	Choices []warnings.Choice
}

type fakeEffects struct {
	mu           sync.Mutex
	texts        []sent
	deleted      []int
	answered     []string
	edited       []string
	restrictions []restriction
	restrictErr  error
}

func (f *fakeEffects) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sent{ChatID: chatID, Text: text})
	return nil
}

func (f *fakeEffects) SendChoice(_ context.Context, chatID int64, text string, choices []warnings.Choice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sent{ChatID: chatID, Text: text, Choices: choices})
	return nil
}

func (f *fakeEffects) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeEffects) AnswerCallback(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeEffects) EditText(_ context.Context, _ int64, _ int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, text)
	return nil
}

func (f *fakeEffects) record(r restriction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restrictErr != nil {
		return f.restrictErr
	}
	f.restrictions = append(f.restrictions, r)
	return nil
}

func (f *fakeEffects) Ban(_ context.Context, chatID, userID int64, until time.Time) error {
	return f.record(restriction{Kind: warnings.PunishBan, ChatID: chatID, UserID: userID, Until: until})
}

func (f *fakeEffects) Mute(_ context.Context, chatID, userID int64, until time.Time) error {
	return f.record(restriction{Kind: warnings.PunishMute, ChatID: chatID, UserID: userID, Until: until})
}

func (f *fakeEffects) Restrict(_ context.Context, chatID, userID int64, perms warnings.Permissions, until time.Time) error {
	return f.record(restriction{Kind: warnings.PunishRestrict, ChatID: chatID, UserID: userID, Perms: &perms, Until: until})
}

func (f *fakeEffects) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1].Text
}

func (f *fakeEffects) lastChoices() []warnings.Choice {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return nil
	}
	return f.texts[len(f.texts)-1].Choices
}

// failingCatalog wraps a catalog and fails CreateWarningType once with err.
type failingCatalog struct {
	warnings.Catalog
	createErr error
}

func (c *failingCatalog) CreateWarningType(ctx context.Context, info warnings.WarningInfo) error {
	if err := c.createErr; err != nil {
		c.createErr = nil
		return err
	}
	return c.Catalog.CreateWarningType(ctx, info)
}

var errStorage = errors.New("storage down")
