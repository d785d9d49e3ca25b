package storage

import (
	"context"

	"vet/internal/core"
)

// RecordStore is the on-device transactional mapping from id to Expense.
// Every operation is atomic with respect to concurrent readers. Faults
// surface wrapped in core.ErrStorageUnavailable.
type RecordStore interface {
	// Add inserts a new record and fails with core.ErrDuplicateKey when the
	// id is already stored.
	Add(ctx context.Context, e core.Expense) error

	// Put inserts or replaces the record keyed by its id.
	Put(ctx context.Context, e core.Expense) error

	// Get returns one record or core.ErrNotFound.
	Get(ctx context.Context, id string) (core.Expense, error)

	// GetAll returns every record as of a single point in time, unordered.
	GetAll(ctx context.Context) ([]core.Expense, error)

	// MarkSynced sets Synced on the given ids in one transaction. Unknown
	// ids are ignored. It returns how many records were updated.
	MarkSynced(ctx context.Context, ids []string) (int, error)

	Close() error
}

var (
	_ RecordStore = (*SQLiteRepository)(nil)
	_ RecordStore = (*MemoryStore)(nil)
)
