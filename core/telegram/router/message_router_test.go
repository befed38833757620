package router

import (
	"testing"

	tg "github.com/m3rciful/aviabot/core/telegram"
	"github.com/m3rciful/aviabot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type textContext struct {
	tele.Context
	text   string
	values map[string]any
}

func newTextContext(text string) *textContext {
	return &textContext{text: text, values: map[string]any{}}
}

func (c *textContext) Text() string              { return c.text }
func (c *textContext) Sender() *tele.User        { return &tele.User{ID: 5} }
func (c *textContext) Chat() *tele.Chat          { return &tele.Chat{ID: 5} }
func (c *textContext) Update() tele.Update       { return tele.Update{ID: 1} }
func (c *textContext) Get(key string) any        { return c.values[key] }
func (c *textContext) Set(key string, value any) { c.values[key] = value }

type idleDialog struct{ handled int }

func (d *idleDialog) Active(int64) bool             { return false }
func (d *idleDialog) HandleText(tele.Context) error { d.handled++; return nil }

func TestTextRoutesFreeTextGoesToFallback(t *testing.T) {
	reg := tg.NewRegistry()
	history := 0
	if err := reg.RegisterCommand("/history", commands.Command{
		Handler:     func(tele.Context) error { history++; return nil },
		Description: "history",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	fallback := 0
	reg.SetTextFallback(func(tele.Context) error { fallback++; return nil })

	dlg := &idleDialog{}
	h := TextRoutes(dlg, reg)[0].Handler

	for _, text := range []string{"history of my trips", "history"} {
		if err := h(newTextContext(text)); err != nil {
			t.Fatalf("handler(%q): %v", text, err)
		}
	}
	if history != 0 || fallback != 2 {
		t.Fatalf("history=%d fallback=%d, want 0 and 2", history, fallback)
	}

	if err := h(newTextContext("/history@aviabot")); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if history != 1 {
		t.Fatalf("slash command not dispatched, history=%d", history)
	}
	if dlg.handled != 0 {
		t.Fatalf("idle dialog received %d texts", dlg.handled)
	}
}
