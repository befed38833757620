package middleware

import tele "gopkg.in/telebot.v4"

// AdminOnly wraps h so that only adminID may run it. With adminID zero the
// handler is closed to everyone; onReject, when set, answers other users.
func AdminOnly(adminID int64, h tele.HandlerFunc, onReject tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if user := c.Sender(); adminID == 0 || user == nil || user.ID != adminID {
			if onReject != nil {
				return onReject(c)
			}
			return nil
		}
		return h(c)
	}
}
