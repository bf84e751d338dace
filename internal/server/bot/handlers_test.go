package bot

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/privgate/internal/common"
	"github.com/dmitrijs2005/privgate/internal/logging"
	"github.com/dmitrijs2005/privgate/internal/server/command"
	"github.com/dmitrijs2005/privgate/internal/server/models"
	"github.com/dmitrijs2005/privgate/internal/server/privileges"
	"github.com/dmitrijs2005/privgate/internal/server/services"
)

// --- fakes ---

type sentMessage struct {
	chatID   int64
	text     string
	markdown bool
}

type chanMessenger struct {
	sent    chan sentMessage
	sendErr error
}

func newChanMessenger() *chanMessenger {
	return &chanMessenger{sent: make(chan sentMessage, 16)}
}

func (m *chanMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.sent <- sentMessage{chatID: chatID, text: text}
	return m.sendErr
}

func (m *chanMessenger) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	m.sent <- sentMessage{chatID: chatID, text: text, markdown: true}
	return m.sendErr
}

// next returns the next sent message, failing the test after a timeout.
// The timeout matters for the fire-and-forget notifications, which are
// delivered from their own goroutine.
func (m *chanMessenger) next(t *testing.T) sentMessage {
	t.Helper()
	select {
	case msg := <-m.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a message")
		return sentMessage{}
	}
}

func (m *chanMessenger) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-m.sent:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeOps struct {
	accounts map[int64]*models.Account

	registered []*models.Account

	resolveOut *models.Account
	resolveErr error

	grantOutcome services.Outcome
	grantErr     error

	revokeOutcome services.Outcome
	revokeErr     error

	listOut []*models.Account
}

func newFakeOps() *fakeOps {
	return &fakeOps{accounts: map[int64]*models.Account{}}
}

func (f *fakeOps) FindByPrincipalID(ctx context.Context, principalID int64) (*models.Account, error) {
	a, ok := f.accounts[principalID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a, nil
}

func (f *fakeOps) Register(ctx context.Context, principalID int64, displayName string) (*models.Account, error) {
	a := &models.Account{PrincipalID: principalID, DisplayName: displayName}
	f.accounts[principalID] = a
	f.registered = append(f.registered, a)
	return a, nil
}

func (f *fakeOps) ResolveTarget(ctx context.Context, identifier string) (*models.Account, error) {
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return f.resolveOut, nil
}

func (f *fakeOps) Grant(ctx context.Context, account *models.Account, privilege string) (services.Outcome, error) {
	return f.grantOutcome, f.grantErr
}

func (f *fakeOps) Revoke(ctx context.Context, account *models.Account, privilege string) (services.Outcome, error) {
	return f.revokeOutcome, f.revokeErr
}

func (f *fakeOps) ListAll(ctx context.Context) ([]*models.Account, error) {
	return f.listOut, nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1})))
}

func testRegistry(t *testing.T) *privileges.Registry {
	t.Helper()
	r, err := privileges.NewRegistry(
		privileges.Definition{Name: "reports", VerboseName: "Reports", Description: "Request usage reports."},
		privileges.Definition{Name: "manage_users", VerboseName: "Manage users", Description: "Manage user accounts."},
	)
	if err != nil {
		t.Fatalf("NewRegistry error: %v", err)
	}
	return r
}

func newHandlers(t *testing.T, ops accountOps, m command.Messenger) *Handlers {
	t.Helper()
	return NewHandlers(ops, testRegistry(t), m, "privgate", testLogger())
}

func adminEvent(name string, args ...string) *command.Event {
	return &command.Event{ChatID: 5, PrincipalID: 1, DisplayName: "root", Name: name, Args: args}
}

// --- tests ---

func TestStart_UnknownPrincipal(t *testing.T) {
	m := newChanMessenger()
	h := newHandlers(t, newFakeOps(), m)

	ev := &command.Event{ChatID: 9, PrincipalID: 999, DisplayName: "mallory", Name: "start"}
	if err := h.Start(context.Background(), ev); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	msg := m.next(t)
	if msg.chatID != 9 || !strings.Contains(msg.text, "/requestAccess") {
		t.Fatalf("unexpected reply: %+v", msg)
	}
}

func TestStart_KnownPrincipal(t *testing.T) {
	ops := newFakeOps()
	ops.accounts[42] = &models.Account{PrincipalID: 42, DisplayName: "alice"}
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	ev := &command.Event{ChatID: 9, PrincipalID: 42, DisplayName: "alice", Name: "start"}
	if err := h.Start(context.Background(), ev); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	msg := m.next(t)
	if !strings.Contains(msg.text, "Nice to meet you, @alice!") {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
}

func TestHelp_ListsCommandsAndCatalog(t *testing.T) {
	m := newChanMessenger()
	h := newHandlers(t, newFakeOps(), m)

	if err := h.Help(context.Background(), adminEvent("help")); err != nil {
		t.Fatalf("Help error: %v", err)
	}

	msg := m.next(t)
	if !msg.markdown {
		t.Fatalf("help must use the markdown mode")
	}
	for _, want := range []string{"/grant", "/revoke", "*Reports* (reports)", "*Manage users* (manage_users)"} {
		if !strings.Contains(msg.text, want) {
			t.Fatalf("help text missing %q:\n%s", want, msg.text)
		}
	}
}

func TestMyPrivileges(t *testing.T) {
	tests := []struct {
		name    string
		account *models.Account
		want    string
	}{
		{
			name:    "admin with no explicit privileges",
			account: &models.Account{IsAdmin: true},
			want:    "You are an administrator",
		},
		{
			name:    "plain account with privileges",
			account: &models.Account{Privileges: []string{"reports"}},
			want:    "reports",
		},
		{
			name:    "plain account without privileges",
			account: &models.Account{},
			want:    "You have zero privileges.",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := newChanMessenger()
			h := newHandlers(t, newFakeOps(), m)

			ctx := command.WithAccount(context.Background(), tc.account)
			ev := &command.Event{ChatID: 9, PrincipalID: 42, Name: "myPrivileges"}
			if err := h.MyPrivileges(ctx, ev); err != nil {
				t.Fatalf("MyPrivileges error: %v", err)
			}

			if msg := m.next(t); !strings.Contains(msg.text, tc.want) {
				t.Fatalf("reply %q missing %q", msg.text, tc.want)
			}
		})
	}
}

func TestRequestAccess_RegistersOnce(t *testing.T) {
	ops := newFakeOps()
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	ev := &command.Event{ChatID: 9, PrincipalID: 999, DisplayName: "mallory", Name: "requestAccess"}
	if err := h.RequestAccess(context.Background(), ev); err != nil {
		t.Fatalf("RequestAccess error: %v", err)
	}
	if msg := m.next(t); !strings.Contains(msg.text, "I received your request") {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
	if len(ops.registered) != 1 || ops.registered[0].PrincipalID != 999 {
		t.Fatalf("account must be registered: %+v", ops.registered)
	}

	// second request must not register again
	if err := h.RequestAccess(context.Background(), ev); err != nil {
		t.Fatalf("RequestAccess error: %v", err)
	}
	if msg := m.next(t); !strings.Contains(msg.text, "I already know you") {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
	if len(ops.registered) != 1 {
		t.Fatalf("repeat request must be a no-op")
	}
}

func TestGrant_WrongArity_Usage(t *testing.T) {
	m := newChanMessenger()
	h := newHandlers(t, newFakeOps(), m)

	for _, args := range [][]string{nil, {"42"}, {"42", "reports", "extra"}} {
		if err := h.Grant(context.Background(), adminEvent("grant", args...)); err != nil {
			t.Fatalf("Grant error: %v", err)
		}
		if msg := m.next(t); msg.text != grantUsage {
			t.Fatalf("want usage reply, got %q", msg.text)
		}
	}
}

func TestGrant_UnknownPrivilege(t *testing.T) {
	m := newChanMessenger()
	h := newHandlers(t, newFakeOps(), m)

	if err := h.Grant(context.Background(), adminEvent("grant", "42", "deploy")); err != nil {
		t.Fatalf("Grant error: %v", err)
	}
	if msg := m.next(t); !strings.Contains(msg.text, "I don't know the privilege 'deploy'") {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
}

func TestGrant_UnknownNameTarget(t *testing.T) {
	ops := newFakeOps()
	ops.resolveErr = common.ErrorNotFound
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	if err := h.Grant(context.Background(), adminEvent("grant", "ghost", "reports")); err != nil {
		t.Fatalf("Grant error: %v", err)
	}
	if msg := m.next(t); msg.text != unknownTargetText {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
}

func TestGrant_AlreadyHeld_ReportsNoOp(t *testing.T) {
	ops := newFakeOps()
	ops.resolveOut = &models.Account{PrincipalID: 999, DisplayName: "mallory", Privileges: []string{"reports"}}
	ops.grantOutcome = services.OutcomeNoOp
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	if err := h.Grant(context.Background(), adminEvent("grant", "999", "reports")); err != nil {
		t.Fatalf("Grant error: %v", err)
	}
	if msg := m.next(t); !strings.Contains(msg.text, "already has privilege 'reports'") {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
	// no-op outcomes must not notify the target
	m.expectNone(t)
}

func TestGrant_Success_NotifiesAdminAndTarget(t *testing.T) {
	ops := newFakeOps()
	ops.resolveOut = &models.Account{PrincipalID: 999, DisplayName: "mallory"}
	ops.grantOutcome = services.OutcomeApplied
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	if err := h.Grant(context.Background(), adminEvent("grant", "999", "reports")); err != nil {
		t.Fatalf("Grant error: %v", err)
	}

	reply := m.next(t)
	if reply.chatID != 5 || !strings.Contains(reply.text, "Done! User mallory (999) now has privilege 'reports'.") {
		t.Fatalf("unexpected admin reply: %+v", reply)
	}

	notification := m.next(t)
	if notification.chatID != 999 {
		t.Fatalf("notification must go to the target principal, got chat %d", notification.chatID)
	}
	if !strings.Contains(notification.text, "granted the privilege 'reports'") ||
		!strings.Contains(notification.text, "by root") ||
		!strings.Contains(notification.text, "'privgate'") {
		t.Fatalf("unexpected notification: %q", notification.text)
	}
}

func TestGrant_SelfTarget_NoNotification(t *testing.T) {
	ops := newFakeOps()
	ops.resolveOut = &models.Account{PrincipalID: 1, DisplayName: "root", IsAdmin: true}
	ops.grantOutcome = services.OutcomeApplied
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	if err := h.Grant(context.Background(), adminEvent("grant", "1", "reports")); err != nil {
		t.Fatalf("Grant error: %v", err)
	}

	if msg := m.next(t); !strings.Contains(msg.text, "Done!") {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
	m.expectNone(t)
}

func TestGrant_ConcurrentConflict_ReportsAlreadyHeld(t *testing.T) {
	ops := newFakeOps()
	ops.resolveOut = &models.Account{PrincipalID: 999, DisplayName: "mallory"}
	ops.grantOutcome = services.OutcomeApplied
	ops.grantErr = common.ErrorConflict
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	if err := h.Grant(context.Background(), adminEvent("grant", "999", "reports")); err != nil {
		t.Fatalf("conflict must be handled, got %v", err)
	}
	if msg := m.next(t); !strings.Contains(msg.text, "already has privilege") {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
}

func TestRevoke_WrongArity_Usage(t *testing.T) {
	m := newChanMessenger()
	h := newHandlers(t, newFakeOps(), m)

	if err := h.Revoke(context.Background(), adminEvent("revoke", "42")); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if msg := m.next(t); msg.text != revokeUsage {
		t.Fatalf("want usage reply, got %q", msg.text)
	}
}

func TestRevoke_NotHeld_ReportsNoOp(t *testing.T) {
	ops := newFakeOps()
	ops.resolveOut = &models.Account{PrincipalID: 999, DisplayName: "mallory"}
	ops.revokeOutcome = services.OutcomeNoOp
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	if err := h.Revoke(context.Background(), adminEvent("revoke", "999", "reports")); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if msg := m.next(t); !strings.Contains(msg.text, "does not have privilege 'reports'") {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
	m.expectNone(t)
}

func TestRevoke_Success_NotifiesTarget(t *testing.T) {
	ops := newFakeOps()
	ops.resolveOut = &models.Account{PrincipalID: 999, DisplayName: "mallory", Privileges: []string{"reports"}}
	ops.revokeOutcome = services.OutcomeApplied
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	if err := h.Revoke(context.Background(), adminEvent("revoke", "999", "reports")); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}

	if msg := m.next(t); !strings.Contains(msg.text, "just lost privilege 'reports'") {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
	notification := m.next(t)
	if notification.chatID != 999 || !strings.Contains(notification.text, "revoked the privilege 'reports'") {
		t.Fatalf("unexpected notification: %+v", notification)
	}
}

func TestUsers_ListsAccounts(t *testing.T) {
	ops := newFakeOps()
	ops.listOut = []*models.Account{
		{PrincipalID: 1, DisplayName: "root", IsAdmin: true},
		{PrincipalID: 999, DisplayName: "mallory", Privileges: []string{"reports"}},
	}
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	if err := h.Users(context.Background(), adminEvent("users")); err != nil {
		t.Fatalf("Users error: %v", err)
	}

	msg := m.next(t)
	for _, want := range []string{"root (1) [admin]", "mallory (999): reports"} {
		if !strings.Contains(msg.text, want) {
			t.Fatalf("listing missing %q:\n%s", want, msg.text)
		}
	}
}

func TestUsers_Empty(t *testing.T) {
	m := newChanMessenger()
	h := newHandlers(t, newFakeOps(), m)

	if err := h.Users(context.Background(), adminEvent("users")); err != nil {
		t.Fatalf("Users error: %v", err)
	}
	if msg := m.next(t); !strings.Contains(msg.text, "I don't know any users yet.") {
		t.Fatalf("unexpected reply: %q", msg.text)
	}
}

func TestGrant_StoreError_Propagates(t *testing.T) {
	ops := newFakeOps()
	ops.resolveOut = &models.Account{PrincipalID: 999, DisplayName: "mallory"}
	ops.grantErr = errors.New("db down")
	m := newChanMessenger()
	h := newHandlers(t, ops, m)

	if err := h.Grant(context.Background(), adminEvent("grant", "999", "reports")); err == nil {
		t.Fatalf("store errors must propagate to the dispatcher")
	}
}
