package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/aviabot/core/config"
	"github.com/m3rciful/aviabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions tunes DefaultMiddlewares.
type MiddlewareOptions struct {
	OnLimited tele.HandlerFunc
	OnPanic   tele.HandlerFunc
	Observer  middleware.Observer
}

// DefaultMiddlewares builds the shared middleware chain: recover, rate limit,
// request logging and metrics, in that order.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware(opts.OnPanic)},
	}

	if cfg != nil {
		if interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond; interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware()},
		Middleware{Name: "metrics", Use: middleware.MetricsMiddleware(opts.Observer)},
	)
}
