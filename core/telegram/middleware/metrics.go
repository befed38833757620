package middleware

import (
	"time"

	tele "gopkg.in/telebot.v4"
)

const (
	keyMessages = "messages"
	keyKeyboard = "kb"
)

// Observer receives one observation per handled update.
type Observer interface {
	ObserveUpdate(kind string, failed bool, took time.Duration, messages int)
}

// countingContext wraps tele.Context to count outgoing messages and keyboard usage.
type countingContext struct{ tele.Context }

func (m countingContext) inc(opts []any) {
	n, _ := m.Get(keyMessages).(int)
	m.Set(keyMessages, n+1)
	if hasKeyboard(opts) {
		m.Set(keyKeyboard, true)
	}
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m countingContext) Send(what any, opts ...any) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.inc(opts)
	}
	return err
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m countingContext) Reply(what any, opts ...any) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.inc(opts)
	}
	return err
}

// Edit proxies tele.Context.Edit while updating message counters.
func (m countingContext) Edit(what any, opts ...any) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.inc(opts)
	}
	return err
}

// EditOrSend proxies tele.Context.EditOrSend while updating message counters.
func (m countingContext) EditOrSend(what any, opts ...any) error {
	err := m.Context.EditOrSend(what, opts...)
	if err == nil {
		m.inc(opts)
	}
	return err
}

// MetricsMiddleware counts messages sent while handling an update and reports
// the update to obs when it is non-nil.
func MetricsMiddleware(obs Observer) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(keyMessages, 0)
			c.Set(keyKeyboard, false)
			start := time.Now()
			err := next(countingContext{Context: c})
			if obs != nil {
				msgs, _ := GetCounters(c)
				obs.ObserveUpdate(UpdateKind(c.Update()), err != nil, time.Since(start), msgs)
			}
			return err
		}
	}
}

// GetCounters reads message count and keyboard presence from context.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get(keyMessages).(int)
	kb, _ := c.Get(keyKeyboard).(bool)
	return msgs, kb
}
