package testfixtures

import (
	"context"
	"testing"

	"github.com/example/taskhub/internal/persistence"
)

func TestSeededStores(t *testing.T) {
	stores := map[string]interface {
		Seeder
		persistence.RecordStore
	}{
		"memory": NewMemoryStore(t, "alice"),
		"sqlite": NewSQLiteStore(t, "alice"),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.FindOwnerByID(ctx, "alice"); err != nil {
				t.Fatalf("expected seeded owner: %v", err)
			}

			categoryID := SeedCategory(t, store, "alice", "Work")
			category, err := store.FindCategoryByID(ctx, categoryID)
			if err != nil || category.OwnerID != "alice" {
				t.Fatalf("unexpected category %#v (%v)", category, err)
			}

			n, err := NewAllocator(store).Next(ctx, "alice", persistence.KindTask)
			if err != nil || n != 1 {
				t.Fatalf("expected first number 1, got %d (%v)", n, err)
			}
		})
	}
}
