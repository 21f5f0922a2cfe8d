package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/warnbot/core/logger"
	"github.com/m3rciful/warnbot/core/telegram/commands"
)

var (
	// ErrInvalidRegistration is returned for a command or callback without
	// a name, handler or description.
	ErrInvalidRegistration = errors.New("telegram: invalid registration")
	// ErrDuplicateRegistration is returned when a name or callback key is taken.
	ErrDuplicateRegistration = errors.New("telegram: duplicate registration")
)

// Registry collects the commands and callback handlers of a bot. Routes are
// built from it once every module has registered.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	callbacks map[string]tele.HandlerFunc
	unknownCb tele.HandlerFunc
}

// NewRegistry creates an empty Registry. Presses on unknown buttons are
// answered with a short notice.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		unknownCb: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "This button is no longer active."})
		},
	}
}

// RegisterCommand adds cmd under name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "/") || len(name) < 2 || cmd.Handler == nil || cmd.Description == "" {
		r.logSkip("register.command.skip", name, ErrInvalidRegistration)
		return fmt.Errorf("%w: command %q", ErrInvalidRegistration, name)
	}
	cmd.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.commands[name]; taken {
		r.logSkip("register.command.skip", name, ErrDuplicateRegistration)
		return fmt.Errorf("%w: command %q", ErrDuplicateRegistration, name)
	}
	r.commands[name] = cmd
	return nil
}

// RegisterCallback maps a button's unique key to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		r.logSkip("register.callback.skip", key, ErrInvalidRegistration)
		return fmt.Errorf("%w: callback %q", ErrInvalidRegistration, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.callbacks[key]; taken {
		r.logSkip("register.callback.skip", key, ErrDuplicateRegistration)
		return fmt.Errorf("%w: callback %q", ErrDuplicateRegistration, key)
	}
	r.callbacks[key] = handler
	return nil
}

func (r *Registry) logSkip(event, name string, reason error) {
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, event,
		slog.String("status", "skip"),
		slog.String("name", name),
		slog.String("reason", reason.Error()),
	)
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]commands.Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Callback returns the handler of key. Unknown keys get the fallback with
// ok=false.
func (r *Registry) Callback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.callbacks[key]; ok {
		return h, true
	}
	return r.unknownCb, false
}

// CallbackCount reports how many callback keys are registered.
func (r *Registry) CallbackCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.callbacks)
}

// Menu lists the commands every user should see.
func (r *Registry) Menu() []tele.Command {
	var menu []tele.Command
	for _, cmd := range r.Commands() {
		if cmd.InMenu() {
			menu = append(menu, tele.Command{Text: strings.TrimPrefix(cmd.Name, "/"), Description: cmd.Description})
		}
	}
	return menu
}

// CommandSetter publishes the command menu. *tele.Bot satisfies it.
type CommandSetter interface {
	SetCommands(opts ...any) error
}

// PublishMenu sends the registry menu to Telegram. A failure only costs the
// menu, so it is logged and not returned.
func PublishMenu(ctx context.Context, bot CommandSetter, reg *Registry) {
	menu := reg.Menu()
	if len(menu) == 0 {
		return
	}
	if err := bot.SetCommands(menu); err != nil {
		logger.LogEvent(ctx, logger.TWire, slog.LevelError, "menu.publish",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.LogEvent(ctx, logger.TWire, slog.LevelInfo, "menu.publish",
		slog.String("status", "ok"),
		slog.Int("commands", len(menu)),
	)
}
