package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestColumnOnePerRow(t *testing.T) {
	markup := Column("onwarn",
		Option{Label: "Delete message", Data: "delete"},
		Option{Label: "Do nothing", Data: "nothing"},
	)

	require.Len(t, markup.InlineKeyboard, 2)
	first := markup.InlineKeyboard[0]
	require.Len(t, first, 1)
	assert.Equal(t, "Delete message", first[0].Text)
	assert.Equal(t, "onwarn", first[0].Unique)
	assert.Equal(t, "delete", first[0].Data)
	assert.Equal(t, "nothing", markup.InlineKeyboard[1][0].Data)
}

func TestColumnEmpty(t *testing.T) {
	assert.Empty(t, Column("onwarn").InlineKeyboard)
}

func TestHasKeyboard(t *testing.T) {
	assert.True(t, HasKeyboard(Column("k", Option{Label: "a"})))
	assert.True(t, HasKeyboard("x", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}}))
	assert.False(t, HasKeyboard(&tele.SendOptions{ParseMode: tele.ModeMarkdownV2}))
	assert.False(t, HasKeyboard())
}
