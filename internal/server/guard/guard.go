// Package guard implements the access-control middleware gating every
// command invocation by principal identity and declared privilege
// requirement. A denial is handled entirely inside the guard: one audit
// event plus one refusal reply, and the wrapped handler never runs. No
// decision is cached; every invocation re-evaluates against the store.
package guard

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/privgate/internal/common"
	"github.com/dmitrijs2005/privgate/internal/logging"
	"github.com/dmitrijs2005/privgate/internal/server/command"
	"github.com/dmitrijs2005/privgate/internal/server/models"
)

// Mode selects the authorization policy applied to a command.
type Mode int

const (
	// Open skips identity resolution entirely.
	Open Mode = iota
	// KnownAccount requires the principal to resolve to a stored account.
	KnownAccount
	// AdminOnly requires the resolved account to carry the admin flag.
	AdminOnly
	// Privileges requires the admin flag or the full required set.
	Privileges
)

const refusalText = "Sorry, you don't have the required permissions to do that. " +
	"Try to contact the administrator of this bot."

// Resolver is the slice of the account service the guard depends on.
type Resolver interface {
	FindByPrincipalID(ctx context.Context, principalID int64) (*models.Account, error)
	SyncDisplayName(ctx context.Context, account *models.Account, displayName string) error
}

type Guard struct {
	accounts  Resolver
	messenger command.Messenger
	auditor   Auditor
	logger    logging.Logger
}

// New builds a Guard. A nil auditor falls back to logging denials through
// the provided logger.
func New(accounts Resolver, messenger command.Messenger, auditor Auditor, logger logging.Logger) *Guard {
	if auditor == nil {
		auditor = NewLogAuditor(logger)
	}
	return &Guard{
		accounts:  accounts,
		messenger: messenger,
		auditor:   auditor,
		logger:    logger.With("module", "guard"),
	}
}

// Wrap returns a handler that enforces mode (and, for Privileges, the
// required set) before invoking next. The resolved account is made
// available to next through the context; open-mode handlers see no account.
// Denials never surface as errors to the caller.
func (g *Guard) Wrap(mode Mode, required []string, next command.HandlerFunc) command.HandlerFunc {
	return func(ctx context.Context, ev *command.Event) error {
		if mode == Open {
			return next(ctx, ev)
		}

		account, err := g.accounts.FindByPrincipalID(ctx, ev.PrincipalID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				g.deny(ctx, ev)
				return nil
			}
			return err
		}

		// best-effort identity sync, a persistence failure must not
		// abort the invocation
		if ev.DisplayName != "" && account.DisplayName != ev.DisplayName {
			if err := g.accounts.SyncDisplayName(ctx, account, ev.DisplayName); err != nil {
				g.logger.Warn(ctx, "display name sync failed",
					"principal_id", ev.PrincipalID, "err", err.Error())
			}
		}

		switch mode {
		case AdminOnly:
			if !account.IsAdmin {
				g.deny(ctx, ev)
				return nil
			}
		case Privileges:
			// privilege checks are for basic accounts only: admins bypass
			if !account.IsAdmin && !account.HasAllPrivileges(required) {
				g.deny(ctx, ev)
				return nil
			}
		}

		return next(command.WithAccount(ctx, account), ev)
	}
}

func (g *Guard) deny(ctx context.Context, ev *command.Event) {
	g.auditor.Denied(ctx, AuditEvent{
		ID:          uuid.NewString(),
		PrincipalID: ev.PrincipalID,
		DisplayName: ev.DisplayName,
		Command:     ev.Name,
		Time:        time.Now(),
	})
	if err := g.messenger.SendMessage(ctx, ev.ChatID, refusalText); err != nil {
		g.logger.Error(ctx, "refusal reply failed",
			"principal_id", ev.PrincipalID, "err", err.Error())
	}
}
