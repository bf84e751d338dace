// Package services contains the application services sitting between the
// command handlers and the repositories.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/privgate/internal/common"
	"github.com/dmitrijs2005/privgate/internal/dbx"
	"github.com/dmitrijs2005/privgate/internal/logging"
	"github.com/dmitrijs2005/privgate/internal/server/models"
	"github.com/dmitrijs2005/privgate/internal/server/repositories/repomanager"
)

// Outcome reports whether a grant or revoke call changed the store.
type Outcome int

const (
	// OutcomeNoOp means the store already was in the requested state.
	OutcomeNoOp Outcome = iota
	// OutcomeApplied means the mutation was persisted.
	OutcomeApplied
)

type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "accounts"),
	}
}

func (s *AccountService) FindByPrincipalID(ctx context.Context, principalID int64) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)
	return repo.GetByPrincipalID(ctx, principalID)
}

// FindByIdentifier resolves an account from either a numeric principal id
// or a display name. A numeric parse is attempted first; identifiers that
// parse as integers are never treated as display names.
func (s *AccountService) FindByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)
	if principalID, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return repo.GetByPrincipalID(ctx, principalID)
	}
	return repo.GetByDisplayName(ctx, identifier)
}

// Register creates an unprivileged, non-admin account for the principal.
func (s *AccountService) Register(ctx context.Context, principalID int64, displayName string) (*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)
	return repo.Create(ctx, principalID, displayName, false)
}

// SyncDisplayName persists the display name observed on inbound traffic.
func (s *AccountService) SyncDisplayName(ctx context.Context, account *models.Account, displayName string) error {
	repo := s.repomanager.Accounts(s.db)
	if err := repo.UpdateDisplayName(ctx, account.ID, displayName); err != nil {
		return err
	}
	account.DisplayName = displayName
	return nil
}

// ResolveTarget resolves a grant/revoke target identifier. Unknown
// identifiers that parse as a principal id are provisioned as empty
// accounts; unknown display names cannot be guessed and resolve to
// common.ErrorNotFound.
func (s *AccountService) ResolveTarget(ctx context.Context, identifier string) (*models.Account, error) {
	account, err := s.FindByIdentifier(ctx, identifier)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	principalID, perr := strconv.ParseInt(identifier, 10, 64)
	if perr != nil {
		return nil, common.ErrorNotFound
	}

	repo := s.repomanager.Accounts(s.db)
	account, err = repo.Create(ctx, principalID, "", false)
	if errors.Is(err, common.ErrorConflict) {
		// lost a race with a concurrent provision, the account exists now
		return repo.GetByPrincipalID(ctx, principalID)
	}
	return account, err
}

// Grant adds the named privilege to the account. Granting a privilege the
// account already holds is a no-op. A concurrent duplicate grant surfaces
// the store's common.ErrorConflict unchanged.
func (s *AccountService) Grant(ctx context.Context, account *models.Account, privilege string) (Outcome, error) {
	if account.HasPrivilege(privilege) {
		return OutcomeNoOp, nil
	}

	repo := s.repomanager.Accounts(s.db)
	if err := repo.Grant(ctx, account.ID, privilege); err != nil {
		return OutcomeNoOp, err
	}

	account.Privileges = append(account.Privileges, privilege)
	return OutcomeApplied, nil
}

// Revoke removes the named privilege from the account. Revoking a privilege
// the account does not hold is a no-op.
func (s *AccountService) Revoke(ctx context.Context, account *models.Account, privilege string) (Outcome, error) {
	if !account.HasPrivilege(privilege) {
		return OutcomeNoOp, nil
	}

	repo := s.repomanager.Accounts(s.db)
	if err := repo.Revoke(ctx, account.ID, privilege); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// lost a race with a concurrent revoke
			return OutcomeNoOp, nil
		}
		return OutcomeNoOp, err
	}

	kept := account.Privileges[:0]
	for _, p := range account.Privileges {
		if p != privilege {
			kept = append(kept, p)
		}
	}
	account.Privileges = kept
	return OutcomeApplied, nil
}

func (s *AccountService) ListAll(ctx context.Context) ([]*models.Account, error) {
	repo := s.repomanager.Accounts(s.db)
	return repo.ListAll(ctx)
}

// EnsureAdmin provisions (or flags) the bootstrap administrator account so
// a fresh deployment has at least one principal able to run grant/revoke.
func (s *AccountService) EnsureAdmin(ctx context.Context, principalID int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Accounts(tx)

		account, err := repo.GetByPrincipalID(ctx, principalID)
		if errors.Is(err, common.ErrorNotFound) {
			_, err = repo.Create(ctx, principalID, "", true)
			return err
		}
		if err != nil {
			return err
		}
		if account.IsAdmin {
			return nil
		}
		return repo.SetAdmin(ctx, account.ID, true)
	})
	if err != nil {
		return fmt.Errorf("error ensuring admin account: %w", err)
	}
	return nil
}
