package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/warnbot/core/config"
	"github.com/m3rciful/warnbot/core/telegram/middleware"
)

// DefaultMiddlewares returns the global chain, outermost first: panic
// recovery, the request logger and, when configured, the per-user rate limit.
func DefaultMiddlewares(cfg *coreconfig.Config) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return mws
	}

	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[kind] = struct{}{}
	}
	return append(mws, Middleware{
		Name: "rate_limit",
		Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
			Exclude:  exclude,
		}),
	})
}
