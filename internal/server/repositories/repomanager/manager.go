package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/addonkeeper/internal/dbx"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/addons"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/groups"
	"github.com/dmitrijs2005/addonkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a connection or a
// transaction, so services can group several repository calls in one
// dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Addons(db dbx.DBTX) addons.Repository
	Groups(db dbx.DBTX) groups.Repository
	Users(db dbx.DBTX) users.Repository
}
