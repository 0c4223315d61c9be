// Package repomanager vends repositories bound to a storage backend and
// runs multi-statement work in a transaction.
package repomanager

import (
	"context"

	"github.com/woodraft/draftauth/internal/server/repositories/users"
)

// TxFunc is the unit of work executed by RunInTx. The repository passed to
// it is bound to the transaction.
type TxFunc func(ctx context.Context, users users.Repository) error

type RepositoryManager interface {
	// RunMigrations brings the schema up to date.
	RunMigrations(ctx context.Context) error
	// Users returns a repository outside any transaction.
	Users() users.Repository
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn TxFunc) error
	Close() error
}
