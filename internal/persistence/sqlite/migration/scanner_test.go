package migration

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestScannerScan(t *testing.T) {
	tests := []struct {
		name          string
		files         fstest.MapFS
		expectedOrder []string
		expectError   error
		errorContains string
	}{
		{
			name: "sorted by numeric version",
			files: fstest.MapFS{
				"migrations/010_add_indexes.sql":    {Data: []byte("CREATE INDEX idx ON t(a);")},
				"migrations/001_initial_schema.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
				"migrations/002_add_owner.sql":      {Data: []byte("ALTER TABLE t ADD COLUMN b TEXT;")},
			},
			expectedOrder: []string{"001", "002", "010"},
		},
		{
			name: "non sql files ignored",
			files: fstest.MapFS{
				"migrations/001_initial_schema.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
				"migrations/README.md":              {Data: []byte("# notes")},
			},
			expectedOrder: []string{"001"},
		},
		{
			name: "invalid filename",
			files: fstest.MapFS{
				"migrations/initial.sql": {Data: []byte("CREATE TABLE t (a TEXT);")},
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "does not match pattern",
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"migrations/001_a.sql":  {Data: []byte("CREATE TABLE a (x TEXT);")},
				"migrations/0001_b.sql": {Data: []byte("CREATE TABLE b (x TEXT);")},
			},
			expectError: ErrDuplicateVersion,
		},
		{
			name: "comment only file",
			files: fstest.MapFS{
				"migrations/001_empty.sql": {Data: []byte("-- nothing here\n")},
			},
			expectError: ErrInvalidMigrationFile,
		},
		{
			name: "unbalanced parentheses",
			files: fstest.MapFS{
				"migrations/001_broken.sql": {Data: []byte("CREATE TABLE t (a TEXT;")},
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "parenthesis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			migrations, err := NewScanner(tt.files, "migrations").Scan()
			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected %v, got %v", tt.expectError, err)
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("expected error to contain %q, got %q", tt.errorContains, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Fatalf("position %d: expected version %s, got %s", i, version, migrations[i].Version)
				}
				if migrations[i].Checksum == "" {
					t.Fatalf("expected checksum for %s", version)
				}
			}
		})
	}
}

func TestScannerDescription(t *testing.T) {
	files := fstest.MapFS{
		"m/001_initial_schema.sql": {Data: []byte("-- Description: Owners and records\nCREATE TABLE t (a TEXT);")},
		"m/002_add_index.sql":      {Data: []byte("CREATE INDEX i ON t(a);")},
	}

	migrations, err := NewScanner(files, "m").Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if migrations[0].Description != "Owners and records" {
		t.Fatalf("unexpected description %q", migrations[0].Description)
	}
	if migrations[1].Description != "add index" {
		t.Fatalf("unexpected fallback description %q", migrations[1].Description)
	}
}

func TestScannerMissingDirectory(t *testing.T) {
	if _, err := NewScanner(fstest.MapFS{}, "nope").Scan(); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `
-- leading comment
CREATE TABLE a (x TEXT);

-- second
CREATE INDEX idx_a ON a(x);
-- trailing`

	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if !strings.HasPrefix(statements[1], "CREATE INDEX") {
		t.Fatalf("unexpected statement %q", statements[1])
	}
}
