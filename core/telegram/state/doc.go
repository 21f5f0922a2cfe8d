// Package state stores per-conversation session values for Telegram bots.
// It is domain-agnostic: the stored value type is chosen by the caller.
package state
