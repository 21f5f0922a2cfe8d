// Package commands describes bot command metadata kept in the registry.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and access flags.
type Command struct {
	// Name includes the leading slash, e.g. "/warn". The registry fills it.
	Name        string
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly restricts the command to the configured bot admin.
	AdminOnly bool
	// OwnerOnly restricts the command to the owner of the chat it is sent in.
	// The bot admin passes as well.
	OwnerOnly bool
	Aliases   []string
}

// Endpoints returns the telebot endpoints of the command and its aliases.
func (c Command) Endpoints() []string {
	out := make([]string, 0, 1+len(c.Aliases))
	for _, name := range append([]string{c.Name}, c.Aliases...) {
		if name == "" {
			continue
		}
		if name[0] != '/' {
			name = "/" + name
		}
		out = append(out, name)
	}
	return out
}

// InMenu reports whether the command belongs in the menu shown to every user.
func (c Command) InMenu() bool {
	return !c.AdminOnly
}
