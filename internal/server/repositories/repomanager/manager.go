// Package repomanager wires repository constructors and database schema
// migrations behind a single injectable interface.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/privgate/internal/dbx"
	"github.com/dmitrijs2005/privgate/internal/server/repositories/accounts"
)

// RepositoryManager vends repository implementations bound to a DBTX and
// exposes a schema migration hook. Passing an *sql.Tx yields repositories
// that take part in the surrounding transaction.
type RepositoryManager interface {
	Accounts(db dbx.DBTX) accounts.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
