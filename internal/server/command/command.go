// Package command defines the transport-facing command event model shared
// by the gateway, the access guard, the dispatcher and the handlers.
package command

import (
	"context"

	"github.com/dmitrijs2005/privgate/internal/server/models"
)

// Event is a single inbound command invocation delivered by the chat
// gateway: who sent it, where to reply, and the parsed command line.
type Event struct {
	ChatID      int64
	PrincipalID int64
	DisplayName string
	Name        string
	Args        []string
}

// HandlerFunc processes one command event.
type HandlerFunc func(ctx context.Context, ev *Event) error

// Messenger is the outbound half of the chat gateway. The core only ever
// sends plain text, plus one markdown mode used by the help listing. For
// direct messages the chat id equals the recipient's principal id.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMarkdown(ctx context.Context, chatID int64, text string) error
}

type ctxKey string

const accountKey ctxKey = "account"

// WithAccount returns a context carrying the account resolved by the access
// guard.
func WithAccount(ctx context.Context, account *models.Account) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// AccountFromContext returns the account resolved by the access guard, or
// nil for open-mode commands.
func AccountFromContext(ctx context.Context) *models.Account {
	account, _ := ctx.Value(accountKey).(*models.Account)
	return account
}
