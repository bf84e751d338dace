// Package bot wires the command surface of the privilege bot: a dispatcher
// routing inbound gateway events and the handlers installed behind the
// access guard.
package bot

import (
	"context"

	"github.com/dmitrijs2005/privgate/internal/logging"
	"github.com/dmitrijs2005/privgate/internal/server/command"
)

const (
	unknownCommandText = "Unknown command. Type /help to list available commands."
	internalErrorText  = "Something went wrong, please try again later."
)

type Dispatcher struct {
	handlers  map[string]command.HandlerFunc
	messenger command.Messenger
	logger    logging.Logger
}

func NewDispatcher(messenger command.Messenger, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		handlers:  map[string]command.HandlerFunc{},
		messenger: messenger,
		logger:    logger.With("module", "dispatcher"),
	}
}

// Handle registers a handler under the given command name. Registration
// happens once at startup, before any event is dispatched.
func (d *Dispatcher) Handle(name string, h command.HandlerFunc) {
	d.handlers[name] = h
}

// Dispatch routes one inbound event. Handler errors are logged and answered
// with a generic failure text; they never propagate to the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *command.Event) {
	h, ok := d.handlers[ev.Name]
	if !ok {
		if err := d.messenger.SendMessage(ctx, ev.ChatID, unknownCommandText); err != nil {
			d.logger.Error(ctx, "reply failed", "chat_id", ev.ChatID, "err", err.Error())
		}
		return
	}

	if err := h(ctx, ev); err != nil {
		d.logger.Error(ctx, "command failed",
			"command", ev.Name, "principal_id", ev.PrincipalID, "err", err.Error())
		if err := d.messenger.SendMessage(ctx, ev.ChatID, internalErrorText); err != nil {
			d.logger.Error(ctx, "reply failed", "chat_id", ev.ChatID, "err", err.Error())
		}
	}
}
