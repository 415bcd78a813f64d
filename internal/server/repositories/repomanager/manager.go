// Package repomanager vends repository implementations bound to a database
// handle and owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/avoronin/authkeeper/internal/dbx"
	"github.com/avoronin/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/avoronin/authkeeper/internal/server/repositories/users"
)

// RepositoryManager produces repositories bound to the given DBTX, so the
// same repository code runs against *sql.DB or inside a transaction.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
