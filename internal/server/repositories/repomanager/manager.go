// Package repomanager wires concrete repositories to a database handle and
// owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/avelichko/linkvault/internal/dbx"
	"github.com/avelichko/linkvault/internal/server/repositories/accounts"
	"github.com/avelichko/linkvault/internal/server/repositories/links"
)

// RepositoryManager hands out repositories bound to the given handle, which
// may be a *sql.DB or a transaction.
type RepositoryManager interface {
	Accounts(db dbx.DBTX) accounts.Repository
	Links(db dbx.DBTX) links.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
