package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/contactkeeper/internal/dbx"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/contactkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a handle, so services can
// run them against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Contacts(db dbx.DBTX) contacts.Repository
}
