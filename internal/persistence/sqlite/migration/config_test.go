package migration

import (
	"context"
	"strings"
	"testing"
)

func TestSQLiteConfigValidate(t *testing.T) {
	valid := DefaultSQLiteConfig("data/app.db")
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected default config to be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*SQLiteConfig)
	}{
		{"empty path", func(c *SQLiteConfig) { c.Path = "  " }},
		{"negative timeout", func(c *SQLiteConfig) { c.BusyTimeout = -1 }},
		{"bad journal", func(c *SQLiteConfig) { c.JournalMode = "SIDEWAYS" }},
		{"bad sync", func(c *SQLiteConfig) { c.Synchronous = "SOMETIMES" }},
		{"negative pool", func(c *SQLiteConfig) { c.MaxOpenConns = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSQLiteConfig("data/app.db")
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSQLiteConfigDSN(t *testing.T) {
	dsn := DefaultSQLiteConfig("data/app.db").DSN()

	if !strings.HasPrefix(dsn, "file:data/app.db?") {
		t.Fatalf("unexpected DSN prefix: %s", dsn)
	}
	for _, want := range []string{"busy_timeout%285000%29", "foreign_keys%281%29", "journal_mode%28WAL%29", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("expected DSN to contain %q: %s", want, dsn)
		}
	}
}

func TestConnectInMemory(t *testing.T) {
	cfg := DefaultSQLiteConfig(":memory:")
	db, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer db.Close()

	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("expected foreign keys enabled, got %d", enabled)
	}
}
