// Package bot connects the Telegram transport to the dialog engine, the
// history log and the search services.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/aviabot/core/logger"
	tg "github.com/m3rciful/aviabot/core/telegram"
	"github.com/m3rciful/aviabot/core/telegram/callbacks"
	"github.com/m3rciful/aviabot/core/telegram/commands"
	tghelpers "github.com/m3rciful/aviabot/core/telegram/helpers"
	"github.com/m3rciful/aviabot/core/telegram/keyboard"
	"github.com/m3rciful/aviabot/internal/dialog"

	tele "gopkg.in/telebot.v4"
)

// Callback keys of the confirm-to-discard keyboard.
const (
	cbDialogRestart = "dialog_restart"
	cbDialogKeep    = "dialog_keep"
)

// Engine is the conversation engine as seen by the handlers.
type Engine interface {
	Start(ctx context.Context, userID int64, kind dialog.Kind) (dialog.Reply, error)
	Restart(ctx context.Context, userID int64, kind dialog.Kind) (dialog.Reply, error)
	Submit(ctx context.Context, userID int64, text string) (dialog.Reply, error)
	Cancel(ctx context.Context, userID int64) bool
	Current(ctx context.Context, userID int64) (dialog.Reply, error)
	Active(userID int64) bool
	ActiveCount() int
}

// History records and lists user commands.
type History interface {
	Record(ctx context.Context, userID int64, command string) error
	List(ctx context.Context, userID int64) ([]string, error)
}

// Stats is the snapshot shown by the admin /stats command.
type Stats struct {
	ActiveDialogs int
	SendErrors    uint64
}

// Handlers holds the Telegram handlers of the bot.
type Handlers struct {
	engine     Engine
	history    History
	sendErrors func() uint64
}

// NewHandlers builds the handlers. sendErrors may be nil.
func NewHandlers(engine Engine, hist History, sendErrors func() uint64) *Handlers {
	return &Handlers{engine: engine, history: hist, sendErrors: sendErrors}
}

// Register adds all commands and callbacks to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: h.Start, Description: "запустить бота"}},
		{"/help", commands.Command{Handler: h.Help, Description: "посмотреть доступные команды"}},
		{"/low", commands.Command{Handler: h.Dialog(dialog.KindLow), Description: "найти самые дешевые авиабилеты", Dialog: true}},
		{"/high", commands.Command{Handler: h.Dialog(dialog.KindHigh), Description: "найти самые поздние даты вылета", Dialog: true}},
		{"/custom", commands.Command{Handler: h.Dialog(dialog.KindCustom), Description: "найти билеты в диапазоне цен", Dialog: true}},
		{"/weather", commands.Command{Handler: h.Dialog(dialog.KindWeather), Description: "узнать погоду на ближайшие 21 день", Dialog: true}},
		{"/history", commands.Command{Handler: h.History, Description: "показать последние 10 запросов"}},
		{"/cancel", commands.Command{Handler: h.Cancel, Description: "отменить текущий запрос"}},
		{"/stats", commands.Command{Handler: h.Stats, Description: "состояние бота", AdminOnly: true, Hidden: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}
	reg.SetTextFallback(h.Unknown)
	if err := reg.RegisterCallback(cbDialogRestart, h.RestartDialog); err != nil {
		return err
	}
	return reg.RegisterCallback(cbDialogKeep, h.KeepDialog)
}

// Start greets the user.
func (h *Handlers) Start(c tele.Context) error {
	h.record(c)
	name := ""
	if u := c.Sender(); u != nil {
		name = u.FirstName
	}
	return tghelpers.SendText(c, greeting(name))
}

// Help lists the commands.
func (h *Handlers) Help(c tele.Context) error {
	h.record(c)
	return tghelpers.SendText(c, helpText())
}

// History records the command itself and then lists the user's history.
func (h *Handlers) History(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	h.record(c)
	list, err := h.history.List(ctx, userID(c))
	if err != nil {
		_ = tghelpers.SendText(c, textGenericFailure)
		return err
	}
	return tghelpers.SendText(c, historyText(list))
}

// Dialog returns the handler opening a dialog of kind. A user already in a
// dialog is asked whether to discard it.
func (h *Handlers) Dialog(kind dialog.Kind) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		h.record(c)

		reply, err := h.engine.Start(ctx, userID(c), kind)
		if errors.Is(err, dialog.ErrDialogInProgress) {
			logger.Info(logger.WithDialogID(ctx, reply.SessionID), logger.CompDialog, "dialog.confirm",
				slog.String("kind", string(reply.Kind)),
				slog.String("requested", string(kind)),
				slog.String("step", string(reply.Step)),
			)
			return tghelpers.SendText(c, textDialogBusy, confirmKeyboard(kind))
		}
		if err != nil {
			_ = tghelpers.SendText(c, textGenericFailure)
			return err
		}
		tghelpers.WithDialog(c, reply.SessionID)
		return tghelpers.SendTexts(c, reply.Messages)
	}
}

// RestartDialog discards the current dialog and opens the kind carried in the payload.
func (h *Handlers) RestartDialog(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	kind := dialog.Kind(callbacks.CallbackPayload(c))
	reply, err := h.engine.Restart(ctx, userID(c), kind)
	if err != nil {
		_ = tghelpers.EditText(c, textGenericFailure)
		return err
	}
	tghelpers.WithDialog(c, reply.SessionID)
	if len(reply.Messages) == 0 {
		return nil
	}
	if err := tghelpers.EditText(c, reply.Messages[0]); err != nil {
		return err
	}
	return tghelpers.SendTexts(c, reply.Messages[1:])
}

// KeepDialog leaves the current dialog untouched and repeats the prompt it
// is waiting on.
func (h *Handlers) KeepDialog(c tele.Context) error {
	reply, err := h.engine.Current(tghelpers.BuildContext(c), userID(c))
	if errors.Is(err, dialog.ErrNoDialog) {
		return tghelpers.EditText(c, textNothingActive)
	}
	if err != nil {
		_ = tghelpers.EditText(c, textGenericFailure)
		return err
	}
	if err := tghelpers.EditText(c, textDialogKept); err != nil {
		return err
	}
	return tghelpers.SendTexts(c, reply.Messages)
}

// Cancel drops the user's dialog.
func (h *Handlers) Cancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	h.record(c)
	if h.engine.Cancel(ctx, userID(c)) {
		return tghelpers.SendText(c, textCancelled)
	}
	return tghelpers.SendText(c, textNothingActive)
}

// Stats reports runtime counters to the admin.
func (h *Handlers) Stats(c tele.Context) error {
	s := Stats{ActiveDialogs: h.engine.ActiveCount()}
	if h.sendErrors != nil {
		s.SendErrors = h.sendErrors()
	}
	return tghelpers.SendText(c, fmt.Sprintf("Активных диалогов: %d\nОшибок отправки: %d", s.ActiveDialogs, s.SendErrors))
}

// Active reports whether the user has an open dialog.
func (h *Handlers) Active(userID int64) bool {
	return h.engine.Active(userID)
}

// HandleText feeds free text to the user's dialog.
func (h *Handlers) HandleText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	reply, err := h.engine.Submit(ctx, userID(c), c.Text())
	if reply.SessionID != "" {
		tghelpers.WithDialog(c, reply.SessionID)
	}
	switch {
	case errors.Is(err, dialog.ErrNoDialog):
		return tghelpers.SendText(c, textUnknown)
	case err != nil:
		_ = tghelpers.SendText(c, textGenericFailure)
		return err
	}
	return tghelpers.SendTexts(c, reply.Messages)
}

// Unknown answers text that is neither a command nor dialog input.
func (h *Handlers) Unknown(c tele.Context) error {
	return tghelpers.SendText(c, textUnknown)
}

// RateLimited answers a throttled update.
func (h *Handlers) RateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: textRateLimited})
	}
	return tghelpers.SendText(c, textRateLimited)
}

// Panicked tells the user the request failed after a recovered panic.
func (h *Handlers) Panicked(c tele.Context) error {
	return tghelpers.SendText(c, textGenericFailure)
}

// NotAllowed answers non-admins calling an admin command.
func (h *Handlers) NotAllowed(c tele.Context) error {
	return tghelpers.SendText(c, textNotAllowed)
}

// record writes the command to history. Failures are logged by the log and
// never block the command.
func (h *Handlers) record(c tele.Context) {
	if h.history == nil {
		return
	}
	_ = h.history.Record(tghelpers.BuildContext(c), userID(c), c.Text())
}

func confirmKeyboard(kind dialog.Kind) *tele.ReplyMarkup {
	return keyboard.InlineRow(
		keyboard.InlineBtn{Text: btnRestart, Unique: cbDialogRestart, Data: string(kind)},
		keyboard.InlineBtn{Text: btnKeep, Unique: cbDialogKeep},
	)
}

func userID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
