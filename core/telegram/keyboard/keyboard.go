// Package keyboard builds inline reply markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// Option is one button of a keyboard; Data travels back in the callback.
type Option struct {
	Label string
	Data  string
}

// Column lays options out one per row. Every button carries the callback
// key unique, so a single registry handler serves the whole keyboard.
func Column(unique string, options ...Option) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(options))
	for _, opt := range options {
		rows = append(rows, markup.Row(markup.Data(opt.Label, unique, opt.Data)))
	}
	markup.Inline(rows...)
	return markup
}

// HasKeyboard reports whether any of the send options carries a markup.
func HasKeyboard(opts ...any) bool {
	for _, opt := range opts {
		switch v := opt.(type) {
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}
