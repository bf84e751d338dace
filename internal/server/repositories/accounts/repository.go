// Package accounts persists principal accounts and their privilege grants.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/privgate/internal/server/models"
)

// Repository is the account store contract. Lookups return
// common.ErrorNotFound when nothing resolves; mutations that hit a
// uniqueness constraint return common.ErrorConflict. Every mutation is a
// single auto-committed statement, so callers observe durable state as soon
// as a call returns.
type Repository interface {
	GetByPrincipalID(ctx context.Context, principalID int64) (*models.Account, error)
	GetByDisplayName(ctx context.Context, displayName string) (*models.Account, error)
	Create(ctx context.Context, principalID int64, displayName string, isAdmin bool) (*models.Account, error)
	UpdateDisplayName(ctx context.Context, accountID int64, displayName string) error
	SetAdmin(ctx context.Context, accountID int64, isAdmin bool) error

	// Grant is an unconditional insert: granting an already-held privilege
	// returns common.ErrorConflict. The service layer owns the no-op check.
	Grant(ctx context.Context, accountID int64, privilege string) error

	// Revoke returns common.ErrorNotFound when the grant row is absent.
	Revoke(ctx context.Context, accountID int64, privilege string) error

	ListAll(ctx context.Context) ([]*models.Account, error)
}
