package persistence

import (
	"context"
	"time"
)

// RecordReader exposes the lookups used by the scheduling core.
type RecordReader interface {
	FindOwnerByID(ctx context.Context, id string) (Owner, error)
	FindCategoryByID(ctx context.Context, id string) (Category, error)
	FindByID(ctx context.Context, id string) (Record, error)
	FindInstancesByMasterID(ctx context.Context, masterID string) ([]Record, error)
	// MaxDisplayNumber returns 0 when the owner has no records of kind.
	MaxDisplayNumber(ctx context.Context, ownerID string, kind Kind) (int64, error)
	// ListInRange returns records whose occurrence time lies within
	// [start, end], ordered by time then display number.
	ListInRange(ctx context.Context, ownerID string, kind Kind, start, end time.Time) ([]Record, error)
	// FindOrphanedInstances returns instances whose master no longer exists.
	FindOrphanedInstances(ctx context.Context) ([]Record, error)
}

// RecordWriter persists records. Save and SaveAll assign ids when empty.
type RecordWriter interface {
	Save(ctx context.Context, record Record) (Record, error)
	SaveAll(ctx context.Context, records []Record) ([]Record, error)
	Delete(ctx context.Context, record Record) error
	DeleteAll(ctx context.Context, records []Record) error
}

// SequenceReserver atomically reserves the next display number for
// (ownerID, kind): max(last reserved, max persisted) + 1.
type SequenceReserver interface {
	ReserveDisplayNumber(ctx context.Context, ownerID string, kind Kind) (int64, error)
}

// RecordTx is the view of the store available inside a unit of work.
type RecordTx interface {
	RecordReader
	RecordWriter
	SequenceReserver
}

// TxFunc runs inside a unit of work.
type TxFunc func(ctx context.Context, tx RecordTx) error

// RecordStore is the persistence port of the scheduling core.
type RecordStore interface {
	RecordReader
	SequenceReserver
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn TxFunc) error
}

// Provisioner creates owners and categories. Both are managed by external
// collaborators; the core only reads them.
type Provisioner interface {
	CreateOwner(ctx context.Context, owner Owner) (Owner, error)
	CreateCategory(ctx context.Context, category Category) (Category, error)
}
