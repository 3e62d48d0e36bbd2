// Package migration applies versioned SQL schema files to a SQLite database.
//
// Migration files live in an fs.FS (usually an embed.FS) and follow the
// naming convention {version}_{description}.sql, for example
// "001_initial_schema.sql". Applied versions are tracked in the
// schema_migrations table; each file runs in its own transaction together
// with its bookkeeping row.
//
// Example usage:
//
//	manager := NewManager(NewScanner(files, "migrations"), NewExecutor(db), logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
