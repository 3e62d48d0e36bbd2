package testfixtures

import (
	"sync"
	"testing"
)

func TestIDGeneratorSequence(t *testing.T) {
	gen := NewIDGenerator("rec")
	if got := gen.Next(); got != "rec-001" {
		t.Fatalf("unexpected first id %q", got)
	}
	if got := gen.NextFunc()(); got != "rec-002" {
		t.Fatalf("unexpected second id %q", got)
	}
	if gen.Issued() != 2 {
		t.Fatalf("expected 2 issued ids, got %d", gen.Issued())
	}

	if got := NewIDGenerator("").Next(); got != "id-001" {
		t.Fatalf("expected default prefix, got %q", got)
	}
}

func TestIDGeneratorConcurrent(t *testing.T) {
	gen := NewIDGenerator("c")
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := gen.Next()
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate id %s", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()
	if len(seen) != 50 {
		t.Fatalf("expected 50 ids, got %d", len(seen))
	}
}
