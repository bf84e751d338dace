package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/privgate/internal/common"
	"github.com/dmitrijs2005/privgate/internal/dbx"
	"github.com/dmitrijs2005/privgate/internal/server/models"
)

// DefaultDisplayName is stored when an account is provisioned before its
// display name is known (e.g. an admin grants to a bare principal id).
const DefaultDisplayName = "???"

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (r *PostgresRepository) GetByPrincipalID(ctx context.Context, principalID int64) (*models.Account, error) {
	query :=
		`SELECT id, principal_id, display_name, is_admin, created_at FROM accounts
		 WHERE principal_id = $1
		 `
	return r.getAccount(ctx, query, principalID)
}

func (r *PostgresRepository) GetByDisplayName(ctx context.Context, displayName string) (*models.Account, error) {
	// display names are not unique; resolve to the oldest match
	query :=
		`SELECT id, principal_id, display_name, is_admin, created_at FROM accounts
		 WHERE display_name = $1
		 ORDER BY id
		 LIMIT 1
		 `
	return r.getAccount(ctx, query, displayName)
}

func (r *PostgresRepository) getAccount(ctx context.Context, query string, arg any) (*models.Account, error) {
	account := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&account.ID, &account.PrincipalID, &account.DisplayName, &account.IsAdmin, &account.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	privileges, err := r.listPrivileges(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	account.Privileges = privileges

	return account, nil
}

func (r *PostgresRepository) listPrivileges(ctx context.Context, accountID int64) ([]string, error) {
	query :=
		`SELECT privilege FROM account_privileges
		 WHERE account_id = $1
		 ORDER BY privilege
		 `

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var privileges []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		privileges = append(privileges, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return privileges, nil
}

func (r *PostgresRepository) Create(ctx context.Context, principalID int64, displayName string, isAdmin bool) (*models.Account, error) {
	if displayName == "" {
		displayName = DefaultDisplayName
	}

	query :=
		`INSERT INTO accounts (principal_id, display_name, is_admin)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	account := &models.Account{PrincipalID: principalID, DisplayName: displayName, IsAdmin: isAdmin}
	err := r.db.QueryRowContext(ctx, query, principalID, displayName, isAdmin).
		Scan(&account.ID, &account.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return account, nil
}

func (r *PostgresRepository) UpdateDisplayName(ctx context.Context, accountID int64, displayName string) error {
	query :=
		`UPDATE accounts SET display_name = $2
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, accountID, displayName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) SetAdmin(ctx context.Context, accountID int64, isAdmin bool) error {
	query :=
		`UPDATE accounts SET is_admin = $2
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, accountID, isAdmin)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) Grant(ctx context.Context, accountID int64, privilege string) error {
	query :=
		`INSERT INTO account_privileges (account_id, privilege)
		 VALUES ($1, $2)
		 `

	if _, err := r.db.ExecContext(ctx, query, accountID, privilege); err != nil {
		if isUniqueViolation(err) {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, accountID int64, privilege string) error {
	query :=
		`DELETE FROM account_privileges
		 WHERE account_id = $1 AND privilege = $2
		 `

	res, err := r.db.ExecContext(ctx, query, accountID, privilege)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Account, error) {
	query :=
		`SELECT id, principal_id, display_name, is_admin, created_at FROM accounts
		 ORDER BY principal_id
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Account
	for rows.Next() {
		account := &models.Account{}
		if err := rows.Scan(&account.ID, &account.PrincipalID, &account.DisplayName, &account.IsAdmin, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	for _, account := range result {
		privileges, err := r.listPrivileges(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		account.Privileges = privileges
	}

	return result, nil
}
