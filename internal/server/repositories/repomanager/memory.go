package repomanager

import (
	"context"
	"sync"

	"github.com/woodraft/draftauth/internal/server/repositories/users"
)

// MemoryRepositoryManager serves an in-process users store. Transactions
// are serialized among themselves; a failed one undoes only its own writes.
type MemoryRepositoryManager struct {
	txMu sync.Mutex
	repo *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{repo: users.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Users() users.Repository { return m.repo }

func (m *MemoryRepositoryManager) RunInTx(ctx context.Context, fn TxFunc) (err error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := m.repo.Begin()
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	return fn(ctx, tx)
}

func (m *MemoryRepositoryManager) Close() error { return nil }
