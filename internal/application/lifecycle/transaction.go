package lifecycle

import (
	"context"
	"time"

	domainErrors "ifsync/internal/domain/errors"
)

// ChangeBegin snapshots the native configuration files. flags must be 0.
func (m *Manager) ChangeBegin(ctx context.Context, flags uint) error {
	start := time.Now()
	if err := checkChangeFlags(flags); err != nil {
		return m.finish("change_begin", start, err)
	}
	return m.finish("change_begin", start, m.transactor.Begin(ctx))
}

// ChangeRollback restores the snapshot taken by ChangeBegin and reloads the
// store from the restored files
func (m *Manager) ChangeRollback(ctx context.Context, flags uint) error {
	start := time.Now()
	if err := checkChangeFlags(flags); err != nil {
		return m.finish("change_rollback", start, err)
	}
	if err := m.transactor.Rollback(ctx); err != nil {
		return m.finish("change_rollback", start, err)
	}
	m.store.Invalidate()
	return m.finish("change_rollback", start, m.refresh())
}

// ChangeCommit keeps the current files and drops the snapshot
func (m *Manager) ChangeCommit(ctx context.Context, flags uint) error {
	start := time.Now()
	if err := checkChangeFlags(flags); err != nil {
		return m.finish("change_commit", start, err)
	}
	return m.finish("change_commit", start, m.transactor.Commit(ctx))
}

func checkChangeFlags(flags uint) error {
	if flags != 0 {
		return domainErrors.NewOtherError("unsupported flags for a configuration change", nil)
	}
	return nil
}
