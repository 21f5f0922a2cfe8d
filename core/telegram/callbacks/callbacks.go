// Package callbacks decodes the data of inline button presses.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits telebot's "\f<unique>|<payload>" encoding.
// Data without a separator is all key.
func ParseCallbackData(cb *tele.Callback) (unique, payload string) {
	if cb == nil {
		return "", ""
	}
	unique, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(unique), payload
}

// CallbackKey returns the unique key of the pressed button. Generic
// OnCallback handlers see it only inside Data.
func CallbackKey(c tele.Context) string {
	cb := c.Callback()
	if cb != nil && cb.Unique != "" {
		return cb.Unique
	}
	key, _ := ParseCallbackData(cb)
	return key
}

// CallbackPayload returns the data the button was built with.
func CallbackPayload(c tele.Context) string {
	cb := c.Callback()
	if cb != nil && cb.Unique != "" {
		return cb.Data
	}
	_, payload := ParseCallbackData(cb)
	return payload
}
