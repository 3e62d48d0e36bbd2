package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/taskhub/internal/persistence"
	"github.com/example/taskhub/internal/persistence/memory"
	"github.com/example/taskhub/internal/persistence/sqlite"
	"github.com/example/taskhub/internal/persistence/sqlite/migration"
	"github.com/example/taskhub/internal/sequence"
)

// Seeder is implemented by every store that can provision owners.
type Seeder interface {
	persistence.Provisioner
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// FastRetryPolicy keeps allocation retries quick in tests.
func FastRetryPolicy() sequence.RetryPolicy {
	return sequence.RetryPolicy{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

// NewAllocator builds an allocator over reserver with FastRetryPolicy.
func NewAllocator(reserver persistence.SequenceReserver) *sequence.Allocator {
	return sequence.NewAllocator(reserver, FastRetryPolicy(), DiscardLogger())
}

// NewMemoryStore returns an in-memory store seeded with the given owners.
func NewMemoryStore(tb testing.TB, ownerIDs ...string) *memory.Storage {
	tb.Helper()

	store := memory.New(memory.WithIDGenerator(NewIDGenerator("rec").Next))
	SeedOwners(tb, store, ownerIDs...)
	return store
}

// NewSQLiteStore opens a migrated SQLite store in a temporary directory and
// seeds it with the given owners. The store is closed when the test ends.
func NewSQLiteStore(tb testing.TB, ownerIDs ...string) *sqlite.Store {
	tb.Helper()

	cfg := migration.DefaultSQLiteConfig(filepath.Join(tb.TempDir(), "taskhub.db"))
	store, err := sqlite.Open(context.Background(), cfg, DiscardLogger(),
		sqlite.WithIDGenerator(NewIDGenerator("rec").Next))
	if err != nil {
		tb.Fatalf("failed to open sqlite store: %v", err)
	}
	tb.Cleanup(func() {
		_ = store.Close()
	})

	SeedOwners(tb, store, ownerIDs...)
	return store
}

// SeedOwners provisions owners named by id.
func SeedOwners(tb testing.TB, seeder Seeder, ownerIDs ...string) {
	tb.Helper()

	for _, id := range ownerIDs {
		owner := persistence.Owner{ID: id, DisplayName: id, CreatedAt: ReferenceTime()}
		if _, err := seeder.CreateOwner(context.Background(), owner); err != nil {
			tb.Fatalf("failed to seed owner %s: %v", id, err)
		}
	}
}

// SeedCategory provisions a category for ownerID and returns its id.
func SeedCategory(tb testing.TB, seeder Seeder, ownerID, name string) string {
	tb.Helper()

	category, err := seeder.CreateCategory(context.Background(), persistence.Category{
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: ReferenceTime(),
	})
	if err != nil {
		tb.Fatalf("failed to seed category %s: %v", name, err)
	}
	return category.ID
}
