package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/aviabot/core/logger"
	"github.com/m3rciful/aviabot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.CompTGSender, "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendText sends plain text to the current chat.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{DisableWebPagePreview: true}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		return c.Send(text, opts)
	})
}

// SendTexts sends messages one after another in a single job so the chat
// receives them in order. A retried job resumes after the last delivered message.
func SendTexts(c tele.Context, texts []string) error {
	if len(texts) == 0 {
		return nil
	}
	msgs := append([]string(nil), texts...)
	next := 0
	return sendAsync(c, "send.batch", "sendMessage", func() error {
		for ; next < len(msgs); next++ {
			if err := c.Send(msgs[next], &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
				return err
			}
		}
		return nil
	})
}

// EditText replaces the text of the message the callback came from, or sends
// a new one when there is nothing to edit.
func EditText(c tele.Context, text string) error {
	return c.EditOrSend(text, &tele.SendOptions{DisableWebPagePreview: true})
}
