package router

import (
	"time"

	tg "github.com/m3rciful/aviabot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// Dialog is the part of the conversation engine the text router needs.
type Dialog interface {
	Active(userID int64) bool
	HandleText(c tele.Context) error
}

// TextRoutes routes free text: dialog input first, then commands typed
// without telebot's endpoint match, then the registry fallback.
func TextRoutes(dlg Dialog, reg *tg.Registry) []tg.Route {
	handler := func(c tele.Context) error {
		if user := c.Sender(); dlg != nil && user != nil && dlg.Active(user.ID) {
			return handleWithSummary(c, "dialog", func() error {
				return dlg.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", func() error { return fb(c) })
			}
		}

		logHandlerSummary(c, "unknown_text", time.Now(), "skip", nil)
		return nil
	}

	return []tg.Route{{Endpoint: tele.OnText, Handler: handler}}
}
