package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager applies pending migrations in version order.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	logger   *slog.Logger
}

// NewManager wires a scanner and an executor.
func NewManager(scanner *Scanner, executor *Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{scanner: scanner, executor: executor, logger: logger}
}

// Run applies every pending migration. A failing migration aborts the run;
// migrations applied before it stay committed.
func (m *Manager) Run(ctx context.Context) error {
	started := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.DebugContext(ctx, "database schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations",
		"current_version", status.CurrentVersion, "pending", len(status.Pending))

	for _, migration := range status.Pending {
		if err := m.executor.Execute(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "path", migration.Path, "error", err)
			return NewMigrationError(migration.Version, migration.Path, "execute migration",
				fmt.Errorf("%w: %w", ErrMigrationFailed, err))
		}
		m.logger.InfoContext(ctx, "migration applied", "version", migration.Version, "description", migration.Description)
	}

	m.logger.InfoContext(ctx, "migrations complete",
		"applied", len(status.Pending), "duration", time.Since(started))
	return nil
}

// Status compares the files with schema_migrations and validates the
// sequence.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("initialize version table: %w", err)
	}

	available, err := m.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("scan migrations: %w", err)
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("load applied migrations: %w", err)
	}
	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, record := range applied {
		appliedByVersion[versionNumber(record.Version)] = record
	}

	status := &Status{Applied: applied}
	for _, migration := range available {
		if _, ok := appliedByVersion[versionNumber(migration.Version)]; ok {
			status.CurrentVersion = migration.Version
			continue
		}
		status.Pending = append(status.Pending, migration)
	}
	return status, nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		number := versionNumber(migration.Version)
		if i > 0 && number != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, versionNumber(available[i-1].Version)+1)
		}
		byVersion[number] = migration
	}

	for _, record := range applied {
		migration, ok := byVersion[versionNumber(record.Version)]
		if !ok {
			return fmt.Errorf("%w: applied migration %s has no file", ErrVersionConflict, record.Version)
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return NewMigrationError(migration.Version, migration.Path, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
