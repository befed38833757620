package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/aviabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const receiptTTL = 10 * time.Second

// receipts remembers recently logged update ids so nested handler groups log once.
type receipts struct {
	mu   sync.Mutex
	seen map[int]time.Time
}

func (r *receipts) first(updateID int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ts := range r.seen {
		if now.Sub(ts) > receiptTTL {
			delete(r.seen, id)
		}
	}
	if _, ok := r.seen[updateID]; ok {
		return false
	}
	r.seen[updateID] = now
	return true
}

// LoggerMiddleware builds the request context (rid plus update metadata) and
// logs a sampled debug receipt per update.
func LoggerMiddleware() tele.MiddlewareFunc {
	rec := &receipts{seen: make(map[int]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set("update_start", time.Now())
			ctx := tghelpers.BuildContext(c)

			upd := c.Update()
			if logger.ShouldSampleDebug("update.received") && rec.first(upd.ID, time.Now()) {
				attrs := []slog.Attr{slog.String("status", "ok")}
				if chat := c.Chat(); chat != nil {
					attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
				}
				if user := c.Sender(); user != nil {
					if user.Username != "" {
						attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
					}
					if user.LanguageCode != "" {
						attrs = append(attrs, slog.String("lang", user.LanguageCode))
					}
				}
				switch {
				case upd.Callback != nil:
					key, payload := callbacks.ParseCallbackData(upd.Callback)
					attrs = append(attrs,
						slog.String("cb_key", logger.SanitizeLimit(key, 128)),
						slog.String("payload", logger.SanitizeLimit(payload, 256)),
					)
				case upd.Message != nil:
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
				}
				logger.LogEvent(ctx, logger.Component(logger.CompTGWire), slog.LevelDebug, "update.received", attrs...)
			}
			return next(c)
		}
	}
}
