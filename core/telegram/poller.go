package telegram

import (
	"net"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/warnbot/core/config"
)

// allowedUpdates are the only update types the bot handles.
var allowedUpdates = []string{"message", "callback_query"}

const defaultLongPollTimeout = 10 * time.Second

// NewPoller returns the update source for the configured run mode: a webhook
// listener or a long poller. cfg must already be validated.
func NewPoller(cfg *coreconfig.Config) tele.Poller {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		return &tele.Webhook{
			Listen:         net.JoinHostPort(cfg.Webhook.Listen, strconv.Itoa(cfg.Webhook.Port)),
			Endpoint:       &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
			AllowedUpdates: allowedUpdates,
		}
	}
	timeout := defaultLongPollTimeout
	if secs := cfg.Telegram.LongPollTimeoutSeconds; secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}
	return &tele.LongPoller{Timeout: timeout, AllowedUpdates: allowedUpdates}
}
