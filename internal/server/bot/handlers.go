package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/privgate/internal/common"
	"github.com/dmitrijs2005/privgate/internal/logging"
	"github.com/dmitrijs2005/privgate/internal/server/command"
	"github.com/dmitrijs2005/privgate/internal/server/guard"
	"github.com/dmitrijs2005/privgate/internal/server/models"
	"github.com/dmitrijs2005/privgate/internal/server/privileges"
	"github.com/dmitrijs2005/privgate/internal/server/services"
)

const (
	grantUsage  = "Usage is /grant <ID_OR_USERNAME> <PRIVILEGE>"
	revokeUsage = "Usage is /revoke <ID_OR_USERNAME> <PRIVILEGE>"

	unknownTargetText = "I don't know that user, please ask them to send '/requestAccess' to me."

	notifyTimeout = 10 * time.Second
)

// accountOps is the slice of the account service used by the handlers.
type accountOps interface {
	FindByPrincipalID(ctx context.Context, principalID int64) (*models.Account, error)
	Register(ctx context.Context, principalID int64, displayName string) (*models.Account, error)
	ResolveTarget(ctx context.Context, identifier string) (*models.Account, error)
	Grant(ctx context.Context, account *models.Account, privilege string) (services.Outcome, error)
	Revoke(ctx context.Context, account *models.Account, privilege string) (services.Outcome, error)
	ListAll(ctx context.Context) ([]*models.Account, error)
}

type Handlers struct {
	accounts  accountOps
	registry  *privileges.Registry
	messenger command.Messenger
	botName   string
	logger    logging.Logger
}

func NewHandlers(accounts accountOps, registry *privileges.Registry, messenger command.Messenger, botName string, logger logging.Logger) *Handlers {
	return &Handlers{
		accounts:  accounts,
		registry:  registry,
		messenger: messenger,
		botName:   botName,
		logger:    logger.With("module", "bot"),
	}
}

// Register installs every bot command on the dispatcher behind its guard
// mode.
func (h *Handlers) Register(d *Dispatcher, g *guard.Guard) {
	d.Handle("start", g.Wrap(guard.Open, nil, h.Start))
	d.Handle("help", g.Wrap(guard.Privileges, nil, h.Help))
	d.Handle("myPrivileges", g.Wrap(guard.KnownAccount, nil, h.MyPrivileges))
	d.Handle("requestAccess", g.Wrap(guard.Open, nil, h.RequestAccess))
	d.Handle("grant", g.Wrap(guard.AdminOnly, nil, h.Grant))
	d.Handle("revoke", g.Wrap(guard.AdminOnly, nil, h.Revoke))
	d.Handle("users", g.Wrap(guard.AdminOnly, nil, h.Users))
}

func (h *Handlers) Start(ctx context.Context, ev *command.Event) error {
	h.logger.Info(ctx, "called /start", "display_name", ev.DisplayName, "principal_id", ev.PrincipalID)

	_, err := h.accounts.FindByPrincipalID(ctx, ev.PrincipalID)
	if errors.Is(err, common.ErrorNotFound) {
		text := fmt.Sprintf("Hi @%s,\n\n"+
			"Sorry, but you have not been granted access to my commands.\n"+
			"Please use the command /requestAccess or contact my administrator.", ev.DisplayName)
		return h.messenger.SendMessage(ctx, ev.ChatID, text)
	}
	if err != nil {
		return err
	}

	text := fmt.Sprintf("Nice to meet you, @%s!\n\n"+
		"I'm the privilege bot!\n\n"+
		"Type the command /help to learn how to use my commands!", ev.DisplayName)
	return h.messenger.SendMessage(ctx, ev.ChatID, text)
}

func (h *Handlers) Help(ctx context.Context, ev *command.Event) error {
	h.logger.Info(ctx, "called /help", "display_name", ev.DisplayName, "principal_id", ev.PrincipalID)

	var b strings.Builder
	b.WriteString("/start - To get an introduction.\n")
	b.WriteString("/help - To print this help.\n")
	b.WriteString("/requestAccess - To request access to my commands.\n")
	b.WriteString("/myPrivileges - To show your current privileges.\n")
	b.WriteString("/grant - To grant a privilege to a user.\n")
	b.WriteString("/revoke - To revoke a privilege from a user.\n")
	b.WriteString("/users - To list known users.\n")

	if defs := h.registry.All(); len(defs) > 0 {
		b.WriteString("\nKnown privileges:\n")
		for _, d := range defs {
			fmt.Fprintf(&b, "*%s* (%s) - %s\n", d.VerboseName, d.Name, d.Description)
		}
	}

	return h.messenger.SendMarkdown(ctx, ev.ChatID, b.String())
}

func (h *Handlers) MyPrivileges(ctx context.Context, ev *command.Event) error {
	h.logger.Info(ctx, "called /myPrivileges", "display_name", ev.DisplayName, "principal_id", ev.PrincipalID)

	account := command.AccountFromContext(ctx)

	var b strings.Builder
	if account.IsAdmin {
		b.WriteString("You are an administrator: you have full access to all commands.\n")
	}
	if len(account.Privileges) > 0 {
		b.WriteString("\n" + strings.Join(account.Privileges, "\n"))
	} else {
		b.WriteString("You have zero privileges.")
	}

	return h.messenger.SendMessage(ctx, ev.ChatID, b.String())
}

func (h *Handlers) RequestAccess(ctx context.Context, ev *command.Event) error {
	h.logger.Info(ctx, "called /requestAccess", "display_name", ev.DisplayName, "principal_id", ev.PrincipalID)

	alreadyKnown := fmt.Sprintf("I already know you %s! No need to request access!", ev.DisplayName)

	_, err := h.accounts.FindByPrincipalID(ctx, ev.PrincipalID)
	if err == nil {
		return h.messenger.SendMessage(ctx, ev.ChatID, alreadyKnown)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	if _, err := h.accounts.Register(ctx, ev.PrincipalID, ev.DisplayName); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			// lost a race with a concurrent self-registration
			return h.messenger.SendMessage(ctx, ev.ChatID, alreadyKnown)
		}
		return err
	}

	return h.messenger.SendMessage(ctx, ev.ChatID, "I received your request. Please wait for feedback.")
}

func (h *Handlers) Grant(ctx context.Context, ev *command.Event) error {
	h.logger.Info(ctx, "called /grant", "display_name", ev.DisplayName, "principal_id", ev.PrincipalID)

	if len(ev.Args) != 2 {
		return h.messenger.SendMessage(ctx, ev.ChatID, grantUsage)
	}
	identifier, privilege := ev.Args[0], ev.Args[1]

	if _, ok := h.registry.Lookup(privilege); !ok {
		text := fmt.Sprintf("I don't know the privilege '%s'. See /help for the list.", privilege)
		return h.messenger.SendMessage(ctx, ev.ChatID, text)
	}

	target, err := h.accounts.ResolveTarget(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return h.messenger.SendMessage(ctx, ev.ChatID, unknownTargetText)
		}
		return err
	}

	outcome, err := h.accounts.Grant(ctx, target, privilege)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			// a concurrent grant won, the privilege is held either way
			outcome = services.OutcomeNoOp
		} else {
			return err
		}
	}

	if outcome == services.OutcomeNoOp {
		text := fmt.Sprintf("User %s (%d) already has privilege '%s'.", target.DisplayName, target.PrincipalID, privilege)
		return h.messenger.SendMessage(ctx, ev.ChatID, text)
	}

	text := fmt.Sprintf("Done! User %s (%d) now has privilege '%s'.", target.DisplayName, target.PrincipalID, privilege)
	if err := h.messenger.SendMessage(ctx, ev.ChatID, text); err != nil {
		return err
	}

	h.notify(ev, target, fmt.Sprintf("Hi! You've been granted the privilege '%s' just now by %s "+
		"on the bot called '%s'. If you don't know what this means, just ignore this message!",
		privilege, ev.DisplayName, h.botName))
	return nil
}

func (h *Handlers) Revoke(ctx context.Context, ev *command.Event) error {
	h.logger.Info(ctx, "called /revoke", "display_name", ev.DisplayName, "principal_id", ev.PrincipalID)

	if len(ev.Args) != 2 {
		return h.messenger.SendMessage(ctx, ev.ChatID, revokeUsage)
	}
	identifier, privilege := ev.Args[0], ev.Args[1]

	target, err := h.accounts.ResolveTarget(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return h.messenger.SendMessage(ctx, ev.ChatID, unknownTargetText)
		}
		return err
	}

	outcome, err := h.accounts.Revoke(ctx, target, privilege)
	if err != nil {
		return err
	}

	if outcome == services.OutcomeNoOp {
		text := fmt.Sprintf("User %s (%d) does not have privilege '%s'.", target.DisplayName, target.PrincipalID, privilege)
		return h.messenger.SendMessage(ctx, ev.ChatID, text)
	}

	text := fmt.Sprintf("Done! User %s (%d) just lost privilege '%s'.", target.DisplayName, target.PrincipalID, privilege)
	if err := h.messenger.SendMessage(ctx, ev.ChatID, text); err != nil {
		return err
	}

	h.notify(ev, target, fmt.Sprintf("Hi! You've been revoked the privilege '%s' just now by %s "+
		"on the bot called '%s'. If you don't know what this means, just ignore this message!",
		privilege, ev.DisplayName, h.botName))
	return nil
}

func (h *Handlers) Users(ctx context.Context, ev *command.Event) error {
	h.logger.Info(ctx, "called /users", "display_name", ev.DisplayName, "principal_id", ev.PrincipalID)

	all, err := h.accounts.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return h.messenger.SendMessage(ctx, ev.ChatID, "I don't know any users yet.")
	}

	var b strings.Builder
	for _, a := range all {
		fmt.Fprintf(&b, "%s (%d)", a.DisplayName, a.PrincipalID)
		if a.IsAdmin {
			b.WriteString(" [admin]")
		}
		if len(a.Privileges) > 0 {
			fmt.Fprintf(&b, ": %s", strings.Join(a.Privileges, ", "))
		}
		b.WriteString("\n")
	}

	return h.messenger.SendMessage(ctx, ev.ChatID, b.String())
}

// notify sends a fire-and-forget direct message to the target principal.
// The actor is not notified about changes to their own account, and a
// failed send never affects the outcome of the command that triggered it.
func (h *Handlers) notify(ev *command.Event, target *models.Account, text string) {
	if ev.PrincipalID == target.PrincipalID {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := h.messenger.SendMessage(ctx, target.PrincipalID, text); err != nil {
			h.logger.Warn(ctx, "notification failed",
				"principal_id", target.PrincipalID, "err", err.Error())
		}
	}()
}
